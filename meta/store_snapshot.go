package meta

import "time"

// MetaStoreVersion is stamped into every Snapshot. Restore refuses any
// snapshot whose Version doesn't match, rather than guess at a migration.
const MetaStoreVersion = 1

// Snapshot is the full, self-contained state of a MetaStore: everything
// needed to recreate it exactly via Restore. It is the wire format for
// GET/PUT /metadata and for MetaStorage persistence.
type Snapshot struct {
	Version            int                                  `json:"version"`
	GlobalEpoch        int64                                `json:"global_epoch"`
	EnableOrderedProxy bool                                 `json:"enable_ordered_proxy"`
	Clusters           map[string]*Cluster                  `json:"clusters"`
	Proxies            map[string]*Proxy                    `json:"proxies"`
	Nodes              map[string]*Node                     `json:"nodes"`
	Failures           map[string]map[string]time.Time      `json:"failures,omitempty"`
}

// Dump returns a deep copy of the store's entire state as a Snapshot.
func (s *MetaStore) Dump() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clusters := make(map[string]*Cluster, len(s.clusters))
	for name, c := range s.clusters {
		clusters[name] = cloneCluster(c)
	}
	proxies := make(map[string]*Proxy, len(s.allProxies))
	for addr, p := range s.allProxies {
		proxies[addr] = p.Clone()
	}
	nodes := make(map[string]*Node, len(s.nodes))
	for addr, n := range s.nodes {
		cp := *n
		cp.SlotRanges = append([]SlotRange(nil), n.SlotRanges...)
		nodes[addr] = &cp
	}

	return &Snapshot{
		Version:            MetaStoreVersion,
		GlobalEpoch:        s.globalEpoch,
		EnableOrderedProxy: s.enableOrderedProxy,
		Clusters:           clusters,
		Proxies:            proxies,
		Nodes:              nodes,
		Failures:           s.failures.Snapshot(),
	}
}

// Restore replaces the store's entire state with snap, refusing a version
// mismatch with InvalidMetaVersion rather than risk loading a shape the
// current binary doesn't understand. It does not take the scale lock: a
// restore is expected to happen at startup or under operator control, never
// interleaved with an in-flight auto-scale sequence.
func (s *MetaStore) Restore(snap *Snapshot) error {
	if snap == nil || snap.Version != MetaStoreVersion {
		got := 0
		if snap != nil {
			got = snap.Version
		}
		return NewErr(InvalidMetaVersion, "got version %d, want %d", got, MetaStoreVersion)
	}

	clusters := make(map[string]*Cluster, len(snap.Clusters))
	for name, c := range snap.Clusters {
		clusters[name] = cloneCluster(c)
	}
	proxies := make(map[string]*Proxy, len(snap.Proxies))
	for addr, p := range snap.Proxies {
		proxies[addr] = p.Clone()
	}
	nodes := make(map[string]*Node, len(snap.Nodes))
	for addr, n := range snap.Nodes {
		cp := *n
		cp.SlotRanges = append([]SlotRange(nil), n.SlotRanges...)
		nodes[addr] = &cp
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.globalEpoch = snap.GlobalEpoch
	s.enableOrderedProxy = snap.EnableOrderedProxy
	s.clusters = clusters
	s.allProxies = proxies
	s.nodes = nodes
	s.failures.Restore(snap.Failures)
	return nil
}
