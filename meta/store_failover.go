package meta

import "github.com/golang/glog"

// ReplaceFailedProxy swaps addr for a free proxy diverse from its chunk
// sibling's host, reassigning the failed proxy's node identities (and
// therefore their slot ranges, untouched) onto the replacement. The caller
// is expected to have already confirmed addr is reported failed by quorum
// (via GetFailedProxies) before invoking this — the store's own contract
// here is purely "addr is bound to a cluster and a diverse replacement
// exists".
func (s *MetaStore) ReplaceFailedProxy(addr string) (*Proxy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.allProxies[addr]
	if !ok {
		return nil, NewErr(ProxyNotFound, "%s", addr)
	}
	if p.Free() {
		return nil, NewErr(NotInUse, "proxy %s is not bound to any cluster", addr)
	}
	clusterName := *p.ClusterBinding
	cluster := s.clusters[clusterName]
	if cluster == nil {
		return nil, NewErr(ClusterNotFound, "%s", clusterName)
	}

	chunkIdx, slot := -1, -1
	for ci, chunk := range cluster.Chunks {
		for i, caddr := range chunk.ProxyAddrs {
			if caddr == addr {
				chunkIdx, slot = ci, i
			}
		}
	}
	if chunkIdx < 0 {
		return nil, NewErr(ProxyNotFound, "%s: not found in any chunk of cluster %s", addr, clusterName)
	}
	chunk := cluster.Chunks[chunkIdx]
	siblingAddr := chunk.ProxyAddrs[1-slot]
	sibling := s.allProxies[siblingAddr]

	replacement := s.pickReplacement(sibling)
	if replacement == nil {
		return nil, NewErr(NoAvailableResource, "no diverse free proxy to replace %s", addr)
	}

	for _, naddr := range p.Nodes {
		if n := s.nodes[naddr]; n != nil {
			n.ProxyAddr = replacement.Address
		}
	}
	replacement.Nodes = p.Nodes
	replacement.ClusterBinding = &clusterName
	p.Nodes = nil
	p.ClusterBinding = nil
	chunk.ProxyAddrs[slot] = replacement.Address

	s.failures.Clear(addr)
	s.bumpEpoch(cluster)
	glog.Warningf("meta: replaced failed proxy %s with %s in cluster %s", addr, replacement.Address, clusterName)
	return replacement.Clone(), nil
}

// pickReplacement chooses a free proxy on a different host than sibling.
// Under ordered-proxy mode it picks the lowest-index free proxy regardless
// of host, since ordering there takes precedence over diversity (mirroring
// AllocateChunks' forced pairing rule). Outside ordered-proxy mode it
// returns nil rather than a same-host proxy when no diverse candidate
// exists, so ReplaceFailedProxy can surface NoAvailableResource instead of
// silently placing two proxies of the same chunk on one host.
func (s *MetaStore) pickReplacement(sibling *Proxy) *Proxy {
	var diverse, any *Proxy
	for _, p := range s.allProxies {
		if !p.Free() {
			continue
		}
		if any == nil || (s.enableOrderedProxy && indexOf(p) < indexOf(any)) {
			any = p
		}
		if sibling != nil && p.Host != sibling.Host {
			if diverse == nil || (s.enableOrderedProxy && indexOf(p) < indexOf(diverse)) {
				diverse = p
			}
		}
	}
	if s.enableOrderedProxy {
		return any
	}
	return diverse
}
