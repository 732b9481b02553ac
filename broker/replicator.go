package broker

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"

	"github.com/clustermeta/broker/meta"
)

// MetaReplicator pushes a freshly committed snapshot to every configured
// replica. It is best-effort: a per-replica failure is logged and does not
// fail the caller. This is deliberately not a consensus protocol.
type MetaReplicator interface {
	SyncMeta(ctx context.Context, snap *meta.Snapshot) error
}

// HTTPReplicator posts the snapshot JSON to PUT /api/v2/metadata on every
// replica address, bounding fan-out with an errgroup the way the
// coordinator loops bound their own per-proxy fan-out.
type HTTPReplicator struct {
	Client  *http.Client
	Timeout time.Duration
}

// maxReplicaFanOut caps concurrent replica pushes, the same ceiling the
// coordinator loops use for their per-proxy fan-out.
const maxReplicaFanOut = 16

func NewHTTPReplicator() *HTTPReplicator {
	return &HTTPReplicator{Client: &http.Client{}, Timeout: 5 * time.Second}
}

func (r *HTTPReplicator) SyncMeta(ctx context.Context, snap *meta.Snapshot) error {
	addrs := meta.GCO.Get().ReplicaAddresses
	if len(addrs) == 0 {
		return nil
	}
	body, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxReplicaFanOut)
	for _, addr := range addrs {
		addr := addr
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, r.Timeout)
			defer cancel()
			req, err := http.NewRequestWithContext(callCtx, http.MethodPut, addr+"/api/v2/metadata", bytes.NewReader(body))
			if err != nil {
				glog.Warningf("replicator: building request for %s: %v", addr, err)
				return nil
			}
			req.Header.Set("Content-Type", "application/json")
			resp, err := r.Client.Do(req)
			if err != nil {
				glog.Warningf("replicator: push to %s failed: %v", addr, err)
				return nil
			}
			resp.Body.Close()
			if resp.StatusCode >= 300 {
				glog.Warningf("replicator: push to %s returned %d", addr, resp.StatusCode)
			}
			return nil
		})
	}
	return g.Wait()
}
