package meta

import "github.com/golang/glog"

// MigrateSlots plans and tags an expand migration for name: masters that
// already hold slots keep their identity at the front of the cluster's
// master ordering, and masters added earlier via free-node chunks (still
// holding zero slots) follow them. The target is an even partition laid
// over that whole ordering, so existing masters may also pass slots to one
// another and a task's destination is not necessarily a new master. Returns
// SlotsAlreadyEven if there is nothing to move.
func (s *MetaStore) MigrateSlots(name string) ([]MigrationMeta, error) {
	if err := s.TryLockScale(); err != nil {
		return nil, err
	}
	defer s.UnlockScale()
	return s.migrateSlotsLocked(name)
}

// migrateSlotsLocked runs the expand-plan body assuming the caller already
// holds the scale lock (either MigrateSlots above, or the two-phase
// AutoScaleNodeNumberPhase2 which spans the lock across a network wait).
func (s *MetaStore) migrateSlotsLocked(name string) ([]MigrationMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cluster, ok := s.clusters[name]
	if !ok {
		return nil, NewErr(ClusterNotFound, "%s", name)
	}
	if cluster.HasActiveMigration(s.allProxies, s.nodes) {
		return nil, NewErr(MigrationRunning, "cluster %s already has a migration in flight", name)
	}
	masters := cluster.Masters(s.allProxies, s.nodes)
	oldN := 0
	for _, m := range masters {
		if totalSlots(m.Node) > 0 {
			oldN++
		} else {
			break
		}
	}
	if oldN == len(masters) {
		return nil, NewErr(SlotsAlreadyEven, "cluster %s has no free nodes to expand into", name)
	}
	items, err := PlanExpand(oldN, len(masters))
	if err != nil {
		return nil, err
	}
	epoch := s.globalEpoch + 1
	metas := s.applyPlan(cluster, masters, items, epoch)
	s.bumpEpoch(cluster)
	glog.Infof("meta: planned expand migration for cluster %s: %d tasks at epoch %d", name, len(metas), epoch)
	return metas, nil
}

// MigrateSlotsToScaleDown plans and tags a shrink migration for name,
// retiring the last removeNodeNum/chunkSize chunks' masters and folding
// their slots back into the survivors.
func (s *MetaStore) MigrateSlotsToScaleDown(name string, removeNodeNum int) ([]MigrationMeta, error) {
	chunkSize := 2 * CHUNKHalfNodeNum
	if removeNodeNum <= 0 || removeNodeNum%chunkSize != 0 {
		return nil, NewErr(InvalidNodeNum, "node_num must be a positive multiple of %d", chunkSize)
	}

	if err := s.TryLockScale(); err != nil {
		return nil, err
	}
	defer s.UnlockScale()

	s.mu.Lock()
	defer s.mu.Unlock()

	cluster, ok := s.clusters[name]
	if !ok {
		return nil, NewErr(ClusterNotFound, "%s", name)
	}
	if cluster.HasActiveMigration(s.allProxies, s.nodes) {
		return nil, NewErr(MigrationRunning, "cluster %s already has a migration in flight", name)
	}
	masters := cluster.Masters(s.allProxies, s.nodes)
	removeChunks := removeNodeNum / chunkSize
	removeMasters := removeChunks * CHUNKHalfNodeNum
	if removeMasters >= len(masters) {
		return nil, NewErr(InvalidNodeNum, "cannot remove %d of %d masters", removeMasters, len(masters))
	}
	removeOwners := make([]int, removeMasters)
	for i := 0; i < removeMasters; i++ {
		removeOwners[i] = len(masters) - removeMasters + i
	}
	items, err := PlanShrink(len(masters), removeOwners)
	if err != nil {
		return nil, err
	}
	epoch := s.globalEpoch + 1
	metas := s.applyPlan(cluster, masters, items, epoch)
	s.bumpEpoch(cluster)
	glog.Infof("meta: planned shrink migration for cluster %s: %d tasks at epoch %d", name, len(metas), epoch)
	return metas, nil
}

// applyPlan tags every PlanItem onto its source and destination master's
// node records and returns the resulting MigrationMetas. Must be called
// with mu held.
func (s *MetaStore) applyPlan(cluster *Cluster, masters []MasterNode, items []PlanItem, epoch int64) []MigrationMeta {
	metas := make([]MigrationMeta, 0, len(items))
	for _, item := range items {
		src := masters[item.SrcOwner].Node
		dst := masters[item.DstOwner].Node
		meta := MigrationMeta{
			Epoch:    epoch,
			SrcProxy: src.ProxyAddr,
			SrcNode:  src.Address,
			DstProxy: dst.ProxyAddr,
			DstNode:  dst.Address,
		}
		tagSource(src, item.Start, item.End, meta)
		dst.SlotRanges = append(dst.SlotRanges, SlotRange{Start: item.Start, End: item.End, Tag: TagImporting, Meta: meta})
		metas = append(metas, meta)
	}
	return metas
}

// tagSource splits whichever of node's untagged ranges covers [start, end)
// into up to three pieces, marking the covered piece Migrating.
func tagSource(node *Node, start, end int, meta MigrationMeta) {
	for i, r := range node.SlotRanges {
		if r.Tag != TagNone || !(r.Start <= start && end <= r.End) {
			continue
		}
		var replacement []SlotRange
		if r.Start < start {
			replacement = append(replacement, SlotRange{Start: r.Start, End: start, Tag: TagNone})
		}
		replacement = append(replacement, SlotRange{Start: start, End: end, Tag: TagMigrating, Meta: meta})
		if end < r.End {
			replacement = append(replacement, SlotRange{Start: end, End: r.End, Tag: TagNone})
		}
		node.SlotRanges = append(node.SlotRanges[:i], append(replacement, node.SlotRanges[i+1:]...)...)
		return
	}
}

func totalSlots(n *Node) int {
	total := 0
	for _, r := range n.SlotRanges {
		total += r.Count()
	}
	return total
}
