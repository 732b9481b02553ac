// Package coordinator drives the broker's /api/v2 surface from the outside:
// it detects proxy failures, pushes cluster metadata to proxies, reacts to
// failures the broker has already quorum-confirmed, and finalizes migrations
// once every proxy involved reports completion. It never touches a
// meta.MetaStore directly — everything goes through BrokerClient, the same
// boundary an operator's own tooling would use.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package coordinator

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/clustermeta/broker/meta"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// BrokerClient is the coordinator's view of the broker: enough of the
// /api/v2 surface to drive the four control loops. Defined as an interface
// so loop logic can be tested against a fake without an HTTP server.
type BrokerClient interface {
	ClusterNames(ctx context.Context) ([]string, error)
	Cluster(ctx context.Context, name string) (*meta.Cluster, []*meta.Node, error)
	ProxyAddresses(ctx context.Context) ([]string, error)
	Proxy(ctx context.Context, addr string) (*meta.Proxy, error)
	ReportFailure(ctx context.Context, addr, reporter string) error
	FailedProxies(ctx context.Context) ([]string, error)
	ReplaceFailedProxy(ctx context.Context, addr string) (string, error)
	CommitMigration(ctx context.Context, mm meta.MigrationMeta) error
}

// HTTPBrokerClient is the real BrokerClient, talking JSON-over-HTTP to one
// broker instance the way broker/replicator.go's HTTPReplicator talks to
// replicas — same client-with-timeout shape, same jsoniter codec.
type HTTPBrokerClient struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPBrokerClient builds a client with a bounded per-call timeout.
func NewHTTPBrokerClient(baseURL string, timeout time.Duration) *HTTPBrokerClient {
	return &HTTPBrokerClient{BaseURL: baseURL, Client: &http.Client{Timeout: timeout}}
}

func (c *HTTPBrokerClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "marshal request")
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var errBody struct{ Error, Message string }
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return fmt.Errorf("%s %s: status %d: %s: %s", method, path, resp.StatusCode, errBody.Error, errBody.Message)
	}
	if out == nil {
		return nil
	}
	return errors.Wrap(json.NewDecoder(resp.Body).Decode(out), "decode response")
}

func (c *HTTPBrokerClient) ClusterNames(ctx context.Context) ([]string, error) {
	var names []string
	err := c.do(ctx, http.MethodGet, "/api/v2/clusters/names", nil, &names)
	return names, err
}

func (c *HTTPBrokerClient) Cluster(ctx context.Context, name string) (*meta.Cluster, []*meta.Node, error) {
	var body struct {
		Cluster *meta.Cluster         `json:"cluster"`
		Nodes   map[string]*meta.Node `json:"nodes"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v2/clusters/meta/"+name, nil, &body); err != nil {
		return nil, nil, err
	}
	nodes := make([]*meta.Node, 0, len(body.Nodes))
	for _, n := range body.Nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Address < nodes[j].Address })
	return body.Cluster, nodes, nil
}

func (c *HTTPBrokerClient) ProxyAddresses(ctx context.Context) ([]string, error) {
	var addrs []string
	err := c.do(ctx, http.MethodGet, "/api/v2/proxies/addresses?limit=0", nil, &addrs)
	return addrs, err
}

func (c *HTTPBrokerClient) Proxy(ctx context.Context, addr string) (*meta.Proxy, error) {
	var p meta.Proxy
	err := c.do(ctx, http.MethodGet, "/api/v2/proxies/meta/"+addr, nil, &p)
	return &p, err
}

func (c *HTTPBrokerClient) ReportFailure(ctx context.Context, addr, reporter string) error {
	return c.do(ctx, http.MethodPost, "/api/v2/failures/"+addr+"/"+reporter, struct{}{}, nil)
}

func (c *HTTPBrokerClient) FailedProxies(ctx context.Context) ([]string, error) {
	var addrs []string
	err := c.do(ctx, http.MethodGet, "/api/v2/proxies/failed/addresses", nil, &addrs)
	return addrs, err
}

func (c *HTTPBrokerClient) ReplaceFailedProxy(ctx context.Context, addr string) (string, error) {
	var body struct {
		Proxy *meta.Proxy `json:"proxy"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v2/proxies/failover/"+addr, struct{}{}, &body); err != nil {
		return "", err
	}
	if body.Proxy == nil {
		return "", nil
	}
	return body.Proxy.Address, nil
}

func (c *HTTPBrokerClient) CommitMigration(ctx context.Context, mm meta.MigrationMeta) error {
	return c.do(ctx, http.MethodPut, "/api/v2/clusters/migrations", mm, nil)
}
