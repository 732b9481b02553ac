package coordinator

import (
	"context"
	"time"

	"github.com/golang/glog"
	"golang.org/x/sync/semaphore"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/clustermeta/broker/meta"
	"github.com/clustermeta/broker/migration"
)

// backoff is the fixed retry delay every loop waits after a transient
// error before trying again. Loops never terminate on their own; only
// context cancellation (process shutdown) ends one.
const backoff = time.Second

// maxLoopFanOut bounds per-loop concurrent proxy calls, same ceiling
// epochgossip.FetchMaxEpoch uses for the same reason: don't open the whole
// proxy fleet's worth of sockets from one iteration.
const maxLoopFanOut = 16

// runLoop drives fn every interval until ctx is cancelled. fn's errors are
// always transient here: runLoop logs, bumps LoopErrors, and retries after
// backoff rather than giving up — matching the "never terminate" rule.
func (c *Coordinator) runLoop(ctx context.Context, name string, interval time.Duration, fn func(context.Context) error) {
	_ = wait.PollUntilContextCancel(ctx, interval, true, func(ctx context.Context) (bool, error) {
		c.Metrics.LoopIterations.WithLabelValues(name).Inc()
		if err := fn(ctx); err != nil {
			c.Metrics.LoopErrors.WithLabelValues(name).Inc()
			glog.Errorf("coordinator: %s loop: %v", name, err)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
			}
		}
		return false, nil // never stop on our own; only ctx cancellation ends the loop
	})
}

// failureDetectionLoop fetches the proxy list, pings each with bounded
// parallelism, and reports a witness for every ping that fails. Detections
// are independent of one another; there's no cross-proxy barrier.
func (c *Coordinator) failureDetectionLoop(ctx context.Context) error {
	addrs, err := c.Broker.ProxyAddresses(ctx)
	if err != nil {
		return err
	}
	sem := semaphore.NewWeighted(maxLoopFanOut)
	for _, addr := range addrs {
		addr := addr
		if err := sem.Acquire(ctx, 1); err != nil {
			return err
		}
		go func() {
			defer sem.Release(1)
			pingCtx, cancel := context.WithTimeout(ctx, c.CallTimeout)
			defer cancel()
			if err := c.Proxy.Ping(pingCtx, addr); err != nil {
				glog.Warningf("coordinator: proxy %s failed liveness ping: %v", addr, err)
				c.Metrics.FailuresFound.Inc()
				reportCtx, rcancel := context.WithTimeout(ctx, c.CallTimeout)
				defer rcancel()
				if rerr := c.Broker.ReportFailure(reportCtx, addr, c.ReporterID); rerr != nil {
					glog.Errorf("coordinator: report failure for %s: %v", addr, rerr)
				}
			}
		}()
	}
	return sem.Acquire(ctx, maxLoopFanOut) // waits for every in-flight ping to release its slot
}

// metadataSyncLoop pushes each proxy the cluster snapshot it should see,
// skipping any proxy whose advertised epoch already matches or exceeds the
// cluster's — the push is idempotent, so a skip is not a missed update.
func (c *Coordinator) metadataSyncLoop(ctx context.Context) error {
	names, err := c.Broker.ClusterNames(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		cluster, nodes, err := c.Broker.Cluster(ctx, name)
		if err != nil {
			glog.Errorf("coordinator: fetch cluster %s: %v", name, err)
			continue
		}
		for _, addr := range cluster.ProxyAddresses() {
			if err := c.syncOneProxy(ctx, addr, cluster, nodes); err != nil {
				glog.Errorf("coordinator: sync proxy %s for cluster %s: %v", addr, name, err)
			}
		}
	}
	return nil
}

func (c *Coordinator) syncOneProxy(ctx context.Context, addr string, cluster *meta.Cluster, nodes []*meta.Node) error {
	callCtx, cancel := context.WithTimeout(ctx, c.CallTimeout)
	defer cancel()
	epoch, err := c.Proxy.GetEpoch(callCtx, addr)
	if err != nil {
		return err
	}
	if epoch >= cluster.Epoch {
		return nil
	}
	pushCtx, pcancel := context.WithTimeout(ctx, c.CallTimeout)
	defer pcancel()
	if err := c.Proxy.PushClusterState(pushCtx, addr, cluster, nodes); err != nil {
		return err
	}
	c.Metrics.ProxiesPushed.Inc()
	return nil
}

// failureHandlingLoop asks the broker which proxies are currently
// quorum-failed and bound to a cluster, then replaces each in turn,
// logging and continuing past any individual replacement failure.
func (c *Coordinator) failureHandlingLoop(ctx context.Context) error {
	addrs, err := c.Broker.FailedProxies(ctx)
	if err != nil {
		return err
	}
	for _, addr := range addrs {
		callCtx, cancel := context.WithTimeout(ctx, c.CallTimeout)
		replacement, err := c.Broker.ReplaceFailedProxy(callCtx, addr)
		cancel()
		if err != nil {
			glog.Errorf("coordinator: replace failed proxy %s: %v", addr, err)
			continue
		}
		glog.Infof("coordinator: replaced failed proxy %s with %s", addr, replacement)
	}
	return nil
}

// migrationSyncLoop polls every in-flight migration-tagged range; once both
// the source and destination proxies report SwitchCommitted, it asks the
// broker to commit the task. Ranges not yet there are skipped this round.
func (c *Coordinator) migrationSyncLoop(ctx context.Context) error {
	names, err := c.Broker.ClusterNames(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		_, nodes, err := c.Broker.Cluster(ctx, name)
		if err != nil {
			glog.Errorf("coordinator: fetch cluster %s: %v", name, err)
			continue
		}
		migrations := activeMigrations(nodes)
		if len(migrations) == 0 {
			continue
		}
		for _, mm := range migrations {
			c.reconcileMigration(ctx, mm)
		}
	}
	return nil
}

// activeMigrations collects the distinct MigrationMeta values tagged across
// every node's slot ranges, deduplicated by epoch identity.
func activeMigrations(nodes []*meta.Node) []meta.MigrationMeta {
	seen := make(map[meta.MigrationMeta]bool)
	var out []meta.MigrationMeta
	for _, n := range nodes {
		for _, r := range n.SlotRanges {
			if r.Tag == meta.TagNone || seen[r.Meta] {
				continue
			}
			seen[r.Meta] = true
			out = append(out, r.Meta)
		}
	}
	return out
}

func (c *Coordinator) reconcileMigration(ctx context.Context, mm meta.MigrationMeta) {
	srcCtx, cancel := context.WithTimeout(ctx, c.CallTimeout)
	srcState, err := c.Proxy.MigrationState(srcCtx, mm.SrcProxy, mm)
	cancel()
	if err != nil || srcState != migration.SwitchCommitted {
		return
	}
	dstCtx, dcancel := context.WithTimeout(ctx, c.CallTimeout)
	dstState, err := c.Proxy.MigrationState(dstCtx, mm.DstProxy, mm)
	dcancel()
	if err != nil || dstState != migration.SwitchCommitted {
		return
	}
	commitCtx, ccancel := context.WithTimeout(ctx, c.CallTimeout)
	defer ccancel()
	if err := c.Broker.CommitMigration(commitCtx, mm); err != nil {
		glog.Errorf("coordinator: commit migration %+v: %v", mm, err)
		return
	}
	c.Metrics.MigrationsCommitted.Inc()
	glog.Infof("coordinator: committed migration epoch=%d %s->%s", mm.Epoch, mm.SrcProxy, mm.DstProxy)
}
