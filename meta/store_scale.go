package meta

import "github.com/golang/glog"

// AutoAddNodes allocates addNodeNum/chunkSize fresh chunks and binds them to
// the named cluster without assigning them any slots — the nodes sit idle
// until a subsequent MigrateSlots rebalances the cluster across them.
func (s *MetaStore) AutoAddNodes(name string, addNodeNum int) ([]*Node, error) {
	if err := s.TryLockScale(); err != nil {
		return nil, err
	}
	defer s.UnlockScale()
	return s.autoAddNodesLocked(name, addNodeNum)
}

// autoAddNodesLocked assumes the caller already holds the scale lock.
func (s *MetaStore) autoAddNodesLocked(name string, addNodeNum int) ([]*Node, error) {
	chunkSize := 2 * CHUNKHalfNodeNum
	if addNodeNum <= 0 || addNodeNum%chunkSize != 0 {
		return nil, NewErr(InvalidNodeNum, "node_number must be a positive multiple of %d", chunkSize)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cluster, ok := s.clusters[name]
	if !ok {
		return nil, NewErr(ClusterNotFound, "%s", name)
	}

	k := addNodeNum / chunkSize
	chunks, err := AllocateChunks(s.freeProxies(), k, s.enableOrderedProxy)
	if err != nil {
		return nil, err
	}
	cluster.Chunks = append(cluster.Chunks, chunks...)
	s.bindChunks(cluster, chunks)

	var added []*Node
	for _, chunk := range chunks {
		for _, addr := range chunk.Nodes(s.allProxies) {
			n := s.nodes[addr]
			cp := *n
			added = append(added, &cp)
		}
	}
	s.bumpEpoch(cluster)
	glog.Infof("meta: added %d free nodes to cluster %s", len(added), name)
	return added, nil
}

// AutoScaleUpNodes is AutoAddNodes immediately followed by MigrateSlots,
// exposed as one call for callers that don't need the intermediate
// unrebalanced state (PUT /clusters/nodes/{name}). Both steps run under a
// single scale-lock hold so no other scale operation can observe the
// cluster half-expanded.
func (s *MetaStore) AutoScaleUpNodes(name string, totalNodeNum int) ([]MigrationMeta, error) {
	if err := s.TryLockScale(); err != nil {
		return nil, err
	}
	defer s.UnlockScale()

	info, err := s.ClusterInfo(name)
	if err != nil {
		return nil, err
	}
	chunkSize := 2 * CHUNKHalfNodeNum
	add := totalNodeNum - info.NodeNumber
	if add <= 0 {
		return nil, NewErr(NodeNumAlreadyEnough, "cluster %s already has %d nodes", name, info.NodeNumber)
	}
	if add%chunkSize != 0 {
		return nil, NewErr(InvalidNodeNum, "delta %d is not a multiple of %d", add, chunkSize)
	}
	if _, err := s.autoAddNodesLocked(name, add); err != nil {
		return nil, err
	}
	return s.migrateSlotsLocked(name)
}

// AutoDeleteFreeNodes releases every chunk of the named cluster that is
// currently fully idle (zero slots, no active tag) back to the free proxy
// pool. AutoDeleteFreeNodes is the canonical name for what the original
// exposed with a typo as "audo_delete_free_nodes"; broker/router.go binds
// the misspelled path too, as a deprecated alias.
func (s *MetaStore) AutoDeleteFreeNodes(name string) (int, error) {
	if err := s.TryLockScale(); err != nil {
		return 0, err
	}
	defer s.UnlockScale()

	s.mu.Lock()
	defer s.mu.Unlock()

	cluster, ok := s.clusters[name]
	if !ok {
		return 0, NewErr(ClusterNotFound, "%s", name)
	}

	released := 0
	remaining := cluster.Chunks[:0]
	for _, chunk := range cluster.Chunks {
		if s.chunkEmpty(chunk) {
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
			released++
			continue
		}
		remaining = append(remaining, chunk)
	}
	cluster.Chunks = remaining
	if released > 0 {
		s.bumpEpoch(cluster)
	}
	glog.Infof("meta: released %d idle chunks from cluster %s", released, name)
	return released, nil
}

// AutoScaleNodeNumberPhase1 is the first half of the two-phase
// auto_scale_node_number. The caller (broker/coordinator) must hold the
// scale lock (TryLockScale) across both this call and the eventual
// Phase2 call, waiting in between — via epochgossip.WaitForProxyEpoch —
// until every proxy in addedProxies reports epoch, so the rebalance in
// Phase2 never races a proxy that hasn't installed the new chunk yet.
func (s *MetaStore) AutoScaleNodeNumberPhase1(name string, totalNodeNum int) (epoch int64, addedProxies []string, err error) {
	info, ierr := s.ClusterInfo(name)
	if ierr != nil {
		return 0, nil, ierr
	}
	chunkSize := 2 * CHUNKHalfNodeNum
	add := totalNodeNum - info.NodeNumber
	if add <= 0 {
		return 0, nil, NewErr(NodeNumAlreadyEnough, "cluster %s already has %d nodes", name, info.NodeNumber)
	}
	if add%chunkSize != 0 {
		return 0, nil, NewErr(InvalidNodeNum, "delta %d is not a multiple of %d", add, chunkSize)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cluster, ok := s.clusters[name]
	if !ok {
		return 0, nil, NewErr(ClusterNotFound, "%s", name)
	}
	k := add / chunkSize
	chunks, aerr := AllocateChunks(s.freeProxies(), k, s.enableOrderedProxy)
	if aerr != nil {
		return 0, nil, aerr
	}
	cluster.Chunks = append(cluster.Chunks, chunks...)
	s.bindChunks(cluster, chunks)
	for _, chunk := range chunks {
		addedProxies = append(addedProxies, chunk.ProxyAddrs[0], chunk.ProxyAddrs[1])
	}
	epoch = s.bumpEpoch(cluster)
	glog.Infof("meta: auto-scale phase1 bound %d chunks to cluster %s at epoch %d", len(chunks), name, epoch)
	return epoch, addedProxies, nil
}

// AutoScaleNodeNumberPhase2 is the second half: now that the new chunks'
// proxies are confirmed to have observed Phase1's epoch, rebalance slots
// across the whole cluster including the newly-idle masters. Assumes the
// caller still holds the scale lock acquired before Phase1.
func (s *MetaStore) AutoScaleNodeNumberPhase2(name string) ([]MigrationMeta, error) {
	return s.migrateSlotsLocked(name)
}
