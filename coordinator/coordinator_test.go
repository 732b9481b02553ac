package coordinator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/clustermeta/broker/meta"
	"github.com/clustermeta/broker/migration"
)

type fakeBroker struct {
	mu          sync.Mutex
	names       []string
	clusters    map[string]*meta.Cluster
	nodes       map[string][]*meta.Node
	proxies     []string
	failed      []string
	reports     []string
	replaced    []string
	committed   []meta.MigrationMeta
}

func (f *fakeBroker) ClusterNames(ctx context.Context) ([]string, error) { return f.names, nil }
func (f *fakeBroker) Cluster(ctx context.Context, name string) (*meta.Cluster, []*meta.Node, error) {
	return f.clusters[name], f.nodes[name], nil
}
func (f *fakeBroker) ProxyAddresses(ctx context.Context) ([]string, error) { return f.proxies, nil }
func (f *fakeBroker) Proxy(ctx context.Context, addr string) (*meta.Proxy, error) {
	return &meta.Proxy{Address: addr}, nil
}
func (f *fakeBroker) ReportFailure(ctx context.Context, addr, reporter string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, addr)
	return nil
}
func (f *fakeBroker) FailedProxies(ctx context.Context) ([]string, error) { return f.failed, nil }
func (f *fakeBroker) ReplaceFailedProxy(ctx context.Context, addr string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replaced = append(f.replaced, addr)
	return "replacement-" + addr, nil
}
func (f *fakeBroker) CommitMigration(ctx context.Context, mm meta.MigrationMeta) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, mm)
	return nil
}

type fakeProxy struct {
	mu      sync.Mutex
	down    map[string]bool
	epochs  map[string]int64
	pushed  map[string]bool
	states  map[string]migration.State
}

func (f *fakeProxy) Ping(ctx context.Context, addr string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down[addr] {
		return assertErr("down")
	}
	return nil
}
func (f *fakeProxy) GetEpoch(ctx context.Context, addr string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.epochs[addr], nil
}
func (f *fakeProxy) PushClusterState(ctx context.Context, addr string, cluster *meta.Cluster, nodes []*meta.Node) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pushed == nil {
		f.pushed = make(map[string]bool)
	}
	f.pushed[addr] = true
	f.epochs[addr] = cluster.Epoch
	return nil
}
func (f *fakeProxy) MigrationState(ctx context.Context, addr string, mm meta.MigrationMeta) (migration.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.states[addr], nil
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

func TestFailureDetectionLoopReportsDownProxies(t *testing.T) {
	broker := &fakeBroker{proxies: []string{"p1", "p2", "p3"}}
	proxy := &fakeProxy{down: map[string]bool{"p2": true}, epochs: map[string]int64{}}
	c := New(broker, proxy, "coord-1", prometheus.NewRegistry())

	if err := c.failureDetectionLoop(context.Background()); err != nil {
		t.Fatal(err)
	}
	broker.mu.Lock()
	defer broker.mu.Unlock()
	if len(broker.reports) != 1 || broker.reports[0] != "p2" {
		t.Fatalf("want report for p2 only, got %v", broker.reports)
	}
}

func TestMetadataSyncLoopSkipsUpToDateProxy(t *testing.T) {
	cluster := &meta.Cluster{Name: "c1", Epoch: 5, Chunks: []*meta.Chunk{{ProxyAddrs: [2]string{"p1", "p2"}}}}
	broker := &fakeBroker{
		names:    []string{"c1"},
		clusters: map[string]*meta.Cluster{"c1": cluster},
		nodes:    map[string][]*meta.Node{"c1": {}},
	}
	proxy := &fakeProxy{epochs: map[string]int64{"p1": 5, "p2": 1}}
	c := New(broker, proxy, "coord-1", prometheus.NewRegistry())

	if err := c.metadataSyncLoop(context.Background()); err != nil {
		t.Fatal(err)
	}
	if proxy.pushed["p1"] {
		t.Fatal("p1 already at cluster epoch, should not have been pushed")
	}
	if !proxy.pushed["p2"] {
		t.Fatal("p2 behind cluster epoch, should have been pushed")
	}
}

func TestFailureHandlingLoopReplacesEachFailedProxy(t *testing.T) {
	broker := &fakeBroker{failed: []string{"p1", "p2"}}
	proxy := &fakeProxy{epochs: map[string]int64{}}
	c := New(broker, proxy, "coord-1", prometheus.NewRegistry())

	if err := c.failureHandlingLoop(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(broker.replaced) != 2 {
		t.Fatalf("want 2 replacements, got %v", broker.replaced)
	}
}

func TestMigrationSyncLoopCommitsOnlyWhenBothSidesSwitchCommitted(t *testing.T) {
	mm := meta.MigrationMeta{Epoch: 9, SrcProxy: "p1", SrcNode: "p1-n0", DstProxy: "p2", DstNode: "p2-n0"}
	nodes := []*meta.Node{
		{Address: "p1-n0", ProxyAddr: "p1", SlotRanges: []meta.SlotRange{{Start: 0, End: 100, Tag: meta.TagMigrating, Meta: mm}}},
		{Address: "p2-n0", ProxyAddr: "p2", SlotRanges: []meta.SlotRange{{Start: 0, End: 100, Tag: meta.TagImporting, Meta: mm}}},
	}
	cluster := &meta.Cluster{Name: "c1", Epoch: 9, Chunks: []*meta.Chunk{{ProxyAddrs: [2]string{"p1", "p2"}}}}
	broker := &fakeBroker{names: []string{"c1"}, clusters: map[string]*meta.Cluster{"c1": cluster}, nodes: map[string][]*meta.Node{"c1": nodes}}

	t.Run("not yet ready", func(t *testing.T) {
		proxy := &fakeProxy{epochs: map[string]int64{}, states: map[string]migration.State{"p1": migration.Blocking, "p2": migration.Committing}}
		c := New(broker, proxy, "coord-1", prometheus.NewRegistry())
		if err := c.migrationSyncLoop(context.Background()); err != nil {
			t.Fatal(err)
		}
		if len(broker.committed) != 0 {
			t.Fatalf("want no commits, got %v", broker.committed)
		}
	})

	t.Run("ready", func(t *testing.T) {
		broker.committed = nil
		proxy := &fakeProxy{epochs: map[string]int64{}, states: map[string]migration.State{"p1": migration.SwitchCommitted, "p2": migration.SwitchCommitted}}
		c := New(broker, proxy, "coord-1", prometheus.NewRegistry())
		if err := c.migrationSyncLoop(context.Background()); err != nil {
			t.Fatal(err)
		}
		if len(broker.committed) != 1 || broker.committed[0] != mm {
			t.Fatalf("want commit of %+v, got %v", mm, broker.committed)
		}
	})
}

func TestRunStopsOnContextCancel(t *testing.T) {
	broker := &fakeBroker{}
	proxy := &fakeProxy{epochs: map[string]int64{}}
	c := New(broker, proxy, "coord-1", prometheus.NewRegistry())
	c.Interval = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
