package meta

import (
	"regexp"

	"github.com/golang/glog"
)

var validClusterName = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// AddCluster allocates nodeNum nodes' worth of chunks from the free pool and
// creates a new cluster, partitioning the slot space evenly across its
// masters.
func (s *MetaStore) AddCluster(name string, nodeNum int) (*Cluster, error) {
	if !validClusterName.MatchString(name) {
		return nil, NewErr(InvalidClusterName, "%q", name)
	}
	chunkSize := 2 * CHUNKHalfNodeNum
	if nodeNum <= 0 || nodeNum%chunkSize != 0 {
		return nil, NewErr(InvalidNodeNum, "node_number must be a positive multiple of %d, got %d", chunkSize, nodeNum)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.clusters[name]; exists {
		return nil, NewErr(AlreadyExisted, "cluster %s", name)
	}
	if s.enableOrderedProxy && len(s.clusters) > 0 {
		return nil, NewErr(OneClusterAlreadyExisted, "ordered-proxy mode allows only one cluster")
	}

	k := nodeNum / chunkSize
	chunks, err := AllocateChunks(s.freeProxies(), k, s.enableOrderedProxy)
	if err != nil {
		return nil, err
	}

	cluster := &Cluster{Name: name, Chunks: chunks, Config: make(map[string]string)}
	s.bindChunks(cluster, chunks)
	s.partitionEvenly(cluster)

	s.clusters[name] = cluster
	s.bumpEpoch(cluster)
	glog.Infof("meta: created cluster %s with %d chunks (%d nodes)", name, len(chunks), nodeNum)
	return cloneCluster(cluster), nil
}

// bindChunks marks every proxy in chunks as belonging to cluster and
// materializes their Node records. Must be called with mu held.
func (s *MetaStore) bindChunks(cluster *Cluster, chunks []*Chunk) {
	for _, chunk := range chunks {
		p0, p1 := s.allProxies[chunk.ProxyAddrs[0]], s.allProxies[chunk.ProxyAddrs[1]]
		name := cluster.Name
		p0.ClusterBinding = &name
		p1.ClusterBinding = &name
		for addr, n := range BuildBalancedNodes(p0, p1) {
			s.nodes[addr] = n
		}
	}
}

// partitionEvenly assigns a fresh EvenPartition(len(masters)) over cluster's
// current masters, clearing any prior ranges. Must be called with mu held
// and no migration active on cluster.
func (s *MetaStore) partitionEvenly(cluster *Cluster) {
	masters := cluster.Masters(s.allProxies, s.nodes)
	ranges := EvenPartition(len(masters))
	for i, m := range masters {
		m.Node.SlotRanges = []SlotRange{ranges[i]}
	}
}

// RemoveCluster tears a cluster down and releases its chunks back to the
// free pool. Refuses while any migration is active, since force-aborting
// a mid-handoff task risks leaving slots unowned.
func (s *MetaStore) RemoveCluster(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cluster, ok := s.clusters[name]
	if !ok {
		return NewErr(ClusterNotFound, "%s", name)
	}
	if cluster.HasActiveMigration(s.allProxies, s.nodes) {
		return NewErr(MigrationRunning, "cluster %s has an in-flight migration", name)
	}

	for _, chunk := range cluster.Chunks {
		for _, paddr := range chunk.ProxyAddrs {
			p := s.allProxies[paddr]
			if p == nil {
				continue
			}
			for _, naddr := range p.Nodes {
				delete(s.nodes, naddr)
			}
			p.ClusterBinding = nil
		}
	}
	delete(s.clusters, name)
	s.bumpEpoch(nil)
	glog.Infof("meta: removed cluster %s", name)
	return nil
}

// UpdateClusterConfig merges kv into the cluster's config map and bumps its
// epoch so the change propagates on the next metadata sync.
func (s *MetaStore) UpdateClusterConfig(name string, kv map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cluster, ok := s.clusters[name]
	if !ok {
		return NewErr(ClusterNotFound, "%s", name)
	}
	if cluster.Config == nil {
		cluster.Config = make(map[string]string)
	}
	for k, v := range kv {
		cluster.Config[k] = v
	}
	s.bumpEpoch(cluster)
	return nil
}

// BalanceClusterMasters runs BalanceMasters over every chunk of the named
// cluster, bumping the cluster's epoch if anything changed.
func (s *MetaStore) BalanceClusterMasters(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cluster, ok := s.clusters[name]
	if !ok {
		return NewErr(ClusterNotFound, "%s", name)
	}
	changed := false
	for _, chunk := range cluster.Chunks {
		before, _ := chunk.MasterCount(s.allProxies, s.nodes)
		if err := BalanceMasters(chunk, s.allProxies, s.nodes); err != nil {
			return err
		}
		if after, _ := chunk.MasterCount(s.allProxies, s.nodes); after != before {
			changed = true
		}
	}
	if changed {
		s.bumpEpoch(cluster)
	}
	return nil
}
