package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Coordinator runs the four control loops (failure detection, metadata
// sync, failure handling, migration sync) against one broker. It holds no state of its own beyond its collaborators and
// metrics — everything observable lives in the broker or in the proxies.
type Coordinator struct {
	Broker BrokerClient
	Proxy  ProxyClient
	Metrics *Metrics

	// ReporterID identifies this coordinator instance in failure witnesses
	// posted to the broker (FailureTracker keys on reporter identity).
	ReporterID string

	// CallTimeout bounds every individual proxy/broker RPC a loop makes.
	CallTimeout time.Duration

	// Interval is how often each loop re-runs after a clean iteration.
	Interval time.Duration
}

// New wires a Coordinator with conservative defaults: a 3s interval
// between clean iterations and a 2s per-call timeout, both overridable by
// setting the fields directly before calling Run.
func New(broker BrokerClient, proxy ProxyClient, reporterID string, reg prometheus.Registerer) *Coordinator {
	return &Coordinator{
		Broker:      broker,
		Proxy:       proxy,
		Metrics:     NewMetrics(reg),
		ReporterID:  reporterID,
		CallTimeout: 2 * time.Second,
		Interval:    3 * time.Second,
	}
}

// Run starts all four loops and blocks until ctx is cancelled. Loops are
// independent of one another and each is single-flight; Run itself
// returns only once every loop has observed ctx.Done().
func (c *Coordinator) Run(ctx context.Context) {
	var wg sync.WaitGroup
	loops := map[string]func(context.Context) error{
		"failure_detection": c.failureDetectionLoop,
		"metadata_sync":     c.metadataSyncLoop,
		"failure_handling":  c.failureHandlingLoop,
		"migration_sync":    c.migrationSyncLoop,
	}
	for name, fn := range loops {
		name, fn := name, fn
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.runLoop(ctx, name, c.Interval, fn)
		}()
	}
	wg.Wait()
}
