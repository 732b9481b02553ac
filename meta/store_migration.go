package meta

import "github.com/golang/glog"

// CommitMigration finalizes a single slot-range handoff: the moved range is
// merged fully into the destination master and dropped from the source,
// and both tags are cleared. It is idempotent on an already-committed (or
// never-existing) task: calling it twice returns MigrationTaskNotFound the
// second time, never an error about double-application.
func (s *MetaStore) CommitMigration(task MigrationMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cluster := s.clusterOwning(task.SrcNode)
	if cluster == nil {
		return NewErr(MigrationTaskNotFound, "no cluster owns src node %s", task.SrcNode)
	}
	src, dst := s.nodes[task.SrcNode], s.nodes[task.DstNode]
	if src == nil || dst == nil {
		return NewErr(MigrationTaskNotFound, "unknown src/dst node")
	}

	srcIdx := findTagged(src.SlotRanges, TagMigrating, task)
	dstIdx := findTagged(dst.SlotRanges, TagImporting, task)
	if srcIdx < 0 || dstIdx < 0 {
		return NewErr(MigrationTaskNotFound, "task %+v not in Migrating/Importing state", task)
	}

	src.SlotRanges = append(src.SlotRanges[:srcIdx], src.SlotRanges[srcIdx+1:]...)
	dst.SlotRanges[dstIdx].Tag = TagNone
	dst.SlotRanges[dstIdx].Meta = MigrationMeta{}
	coalesceAdjacent(dst)
	coalesceAdjacent(src)

	if GCO.Get().ClearFreeNodesOnCommit {
		s.maybeReleaseEmptyChunk(cluster, src.ProxyAddr)
	}

	s.bumpEpoch(cluster)
	glog.Infof("meta: committed migration %+v", task)
	return nil
}

func findTagged(ranges []SlotRange, tag TaskKind, meta MigrationMeta) int {
	for i, r := range ranges {
		if r.Tag == tag && r.Meta.Equal(meta) {
			return i
		}
	}
	return -1
}

// coalesceAdjacent merges neighboring untagged ranges on a node after a
// commit leaves fragments behind.
func coalesceAdjacent(n *Node) {
	if len(n.SlotRanges) < 2 {
		return
	}
	merged := n.SlotRanges[:1]
	for _, r := range n.SlotRanges[1:] {
		last := &merged[len(merged)-1]
		if last.Tag == TagNone && r.Tag == TagNone && last.End == r.Start {
			last.End = r.End
			continue
		}
		merged = append(merged, r)
	}
	n.SlotRanges = merged
}

// clusterOwning returns the cluster that currently owns nodeAddr, or nil.
func (s *MetaStore) clusterOwning(nodeAddr string) *Cluster {
	n := s.nodes[nodeAddr]
	if n == nil {
		return nil
	}
	p := s.allProxies[n.ProxyAddr]
	if p == nil || p.ClusterBinding == nil {
		return nil
	}
	return s.clusters[*p.ClusterBinding]
}

// maybeReleaseEmptyChunk returns the chunk containing proxyAddr to the free
// pool if every node on both its proxies now holds zero slots and carries
// no migration tag.
func (s *MetaStore) maybeReleaseEmptyChunk(cluster *Cluster, proxyAddr string) {
	for i, chunk := range cluster.Chunks {
		if chunk.ProxyAddrs[0] != proxyAddr && chunk.ProxyAddrs[1] != proxyAddr {
			continue
		}
		if !s.chunkEmpty(chunk) {
			return
		}
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
		cluster.Chunks = append(cluster.Chunks[:i], cluster.Chunks[i+1:]...)
		glog.Infof("meta: released empty chunk (%s,%s) from cluster %s", chunk.ProxyAddrs[0], chunk.ProxyAddrs[1], cluster.Name)
		return
	}
}

func (s *MetaStore) chunkEmpty(chunk *Chunk) bool {
	for _, paddr := range chunk.ProxyAddrs {
		p := s.allProxies[paddr]
		if p == nil {
			continue
		}
		for _, naddr := range p.Nodes {
			n := s.nodes[naddr]
			if n == nil {
				continue
			}
			if totalSlots(n) > 0 {
				return false
			}
			for _, r := range n.SlotRanges {
				if r.Tag != TagNone {
					return false
				}
			}
		}
	}
	return true
}
