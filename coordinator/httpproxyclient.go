package coordinator

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/clustermeta/broker/meta"
	"github.com/clustermeta/broker/migration"
)

// HTTPProxyClient is a minimal concrete ProxyClient speaking a small JSON
// control surface over HTTP. Serving client traffic and the shard wire
// protocol are out of scope for this repository — there is no "real"
// proxy binary here to match wire formats with — so this is the simplest
// concrete transport that exercises the ProxyClient boundary end to end; a
// deployment with an actual proxy implementation swaps this for one
// speaking that proxy's real control protocol.
type HTTPProxyClient struct {
	Client *http.Client
}

func NewHTTPProxyClient(timeout time.Duration) *HTTPProxyClient {
	return &HTTPProxyClient{Client: &http.Client{Timeout: timeout}}
}

func (c *HTTPProxyClient) get(ctx context.Context, addr, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errors.Errorf("proxy %s%s: status %d", addr, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *HTTPProxyClient) Ping(ctx context.Context, proxyAddr string) error {
	return c.get(ctx, proxyAddr, "/ping", nil)
}

func (c *HTTPProxyClient) GetEpoch(ctx context.Context, proxyAddr string) (int64, error) {
	var body struct {
		Epoch int64 `json:"epoch"`
	}
	err := c.get(ctx, proxyAddr, "/epoch", &body)
	return body.Epoch, err
}

func (c *HTTPProxyClient) PushClusterState(ctx context.Context, proxyAddr string, cluster *meta.Cluster, nodes []*meta.Node) error {
	body, err := json.Marshal(struct {
		Cluster *meta.Cluster `json:"cluster"`
		Nodes   []*meta.Node  `json:"nodes"`
	}{cluster, nodes})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, proxyAddr+"/cluster", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errors.Errorf("proxy %s/cluster: status %d", proxyAddr, resp.StatusCode)
	}
	return nil
}

func (c *HTTPProxyClient) MigrationState(ctx context.Context, proxyAddr string, mm meta.MigrationMeta) (migration.State, error) {
	body, err := json.Marshal(mm)
	if err != nil {
		return migration.Aborted, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, proxyAddr+"/migration/state", bytes.NewReader(body))
	if err != nil {
		return migration.Aborted, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.Client.Do(req)
	if err != nil {
		return migration.Aborted, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return migration.Aborted, errors.Errorf("proxy %s/migration/state: status %d", proxyAddr, resp.StatusCode)
	}
	var out struct {
		State migration.State `json:"state"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return migration.Aborted, err
	}
	return out.State, nil
}
