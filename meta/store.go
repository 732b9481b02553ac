package meta

import (
	"sort"
	"sync"

	"github.com/golang/glog"
)

// MetaStore is the single source of truth for cluster topology. Every
// mutating method takes the write lock, validates preconditions, mutates,
// then bumps GlobalEpoch and the affected cluster's epoch before releasing.
// No method performs I/O (persistence, replication, network) while holding
// the lock: callers take a Dump() under a read lock and do I/O after
// releasing it.
type MetaStore struct {
	mu sync.RWMutex

	globalEpoch        int64
	clusters           map[string]*Cluster
	allProxies         map[string]*Proxy
	nodes              map[string]*Node
	failures           *FailureTracker
	enableOrderedProxy bool

	// scaleLock serializes the multi-step auto-scale operations. It is a
	// single, non-reentrant, process-wide slot distinct from mu: holding it
	// never implies holding mu, and vice versa. Lock ordering when both are
	// needed is always scaleLock -> mu, and neither is ever held across I/O.
	scaleLock sync.Mutex
}

// New creates an empty store. enableOrderedProxy sets the ordering
// discipline; no method toggles it afterwards except Restore, which takes
// the setting from the restored snapshot.
func New(enableOrderedProxy bool) *MetaStore {
	return &MetaStore{
		clusters:           make(map[string]*Cluster),
		allProxies:         make(map[string]*Proxy),
		nodes:              make(map[string]*Node),
		failures:           NewFailureTracker(),
		enableOrderedProxy: enableOrderedProxy,
	}
}

// GlobalEpoch returns the current global epoch under a read lock.
func (s *MetaStore) GlobalEpoch() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.globalEpoch
}

// bumpEpoch must be called with mu held for write. It advances the global
// epoch and, if cluster is non-nil, stamps the cluster with the same fresh
// epoch — the two always move together so a proxy observing a cluster epoch
// can never exceed the global epoch it was minted under.
func (s *MetaStore) bumpEpoch(cluster *Cluster) int64 {
	s.globalEpoch++
	if cluster != nil {
		cluster.Epoch = s.globalEpoch
	}
	glog.V(4).Infof("meta: epoch -> %d", s.globalEpoch)
	return s.globalEpoch
}

// TryLockScale attempts to acquire the scale lock without blocking,
// returning NodeNumberChanging immediately if another scale operation is
// already in flight. There is no queueing: a caller that loses the race
// retries later rather than waiting in line.
func (s *MetaStore) TryLockScale() error {
	if !s.scaleLock.TryLock() {
		return NewErr(NodeNumberChanging, "a scale operation is already in progress")
	}
	return nil
}

// UnlockScale releases the scale lock acquired via TryLockScale.
func (s *MetaStore) UnlockScale() {
	s.scaleLock.Unlock()
}

// Failures exposes the embedded FailureTracker for handlers that report or
// query witnesses directly.
func (s *MetaStore) Failures() *FailureTracker { return s.failures }

// EnableOrderedProxy reports the store's ordering discipline.
func (s *MetaStore) EnableOrderedProxy() bool { return s.enableOrderedProxy }

// ClusterNames returns all cluster names, sorted, for paging.
func (s *MetaStore) ClusterNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.clusters))
	for name := range s.clusters {
		out = append(out, name)
	}
	return sortedStrings(out)
}

// Cluster returns a deep copy of the named cluster's view (chunks, config)
// plus the node records it owns, or ClusterNotFound.
func (s *MetaStore) Cluster(name string) (*Cluster, map[string]*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clusters[name]
	if !ok {
		return nil, nil, NewErr(ClusterNotFound, "%s", name)
	}
	return cloneCluster(c), cloneNodesFor(c, s.allProxies, s.nodes), nil
}

// ClusterInfo returns the summary view of a cluster.
func (s *MetaStore) ClusterInfo(name string) (Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clusters[name]
	if !ok {
		return Info{}, NewErr(ClusterNotFound, "%s", name)
	}
	masters := c.Masters(s.allProxies, s.nodes)
	return Info{
		Name:        c.Name,
		Epoch:       c.Epoch,
		NodeNumber:  len(c.NodeAddresses(s.allProxies)),
		MasterCount: len(masters),
	}, nil
}

// ProxyAddresses returns every known proxy address (free and bound), sorted.
func (s *MetaStore) ProxyAddresses() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.allProxies))
	for addr := range s.allProxies {
		out = append(out, addr)
	}
	return sortedStrings(out)
}

// Proxy returns a clone of the named proxy's record.
func (s *MetaStore) Proxy(addr string) (*Proxy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.allProxies[addr]
	if !ok {
		return nil, NewErr(ProxyNotFound, "%s", addr)
	}
	return p.Clone(), nil
}

func cloneCluster(c *Cluster) *Cluster {
	cp := &Cluster{Name: c.Name, Epoch: c.Epoch}
	cp.Chunks = make([]*Chunk, len(c.Chunks))
	for i, ch := range c.Chunks {
		chCopy := *ch
		cp.Chunks[i] = &chCopy
	}
	if c.Config != nil {
		cp.Config = make(map[string]string, len(c.Config))
		for k, v := range c.Config {
			cp.Config[k] = v
		}
	}
	return cp
}

func cloneNodesFor(c *Cluster, proxies map[string]*Proxy, nodes map[string]*Node) map[string]*Node {
	out := make(map[string]*Node)
	for _, addr := range c.NodeAddresses(proxies) {
		if n := nodes[addr]; n != nil {
			cp := *n
			cp.SlotRanges = append([]SlotRange(nil), n.SlotRanges...)
			out[addr] = &cp
		}
	}
	return out
}

func sortedStrings(in []string) []string {
	sort.Strings(in)
	return in
}
