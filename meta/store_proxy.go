package meta

import "github.com/golang/glog"

// AddProxy registers a free proxy resource. Under EnableOrderedProxy, index
// must be set and must equal the number of proxies already registered (a
// dense, contiguous total order starting at 0); outside ordered mode index
// is ignored if provided.
func (s *MetaStore) AddProxy(addr, host string, nodes []string, index *int64) error {
	if addr == "" {
		return NewErr(InvalidProxyAddress, "empty address")
	}
	if len(nodes) != CHUNKHalfNodeNum {
		return NewErr(InvalidProxyAddress, "%s: expected %d nodes, got %d", addr, CHUNKHalfNodeNum, len(nodes))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.allProxies[addr]; exists {
		return NewErr(AlreadyExisted, "proxy %s", addr)
	}
	if s.enableOrderedProxy {
		if index == nil {
			return NewErr(MissingIndex, "proxy %s requires an index under ordered-proxy mode", addr)
		}
		if *index != int64(len(s.allProxies)) {
			return NewErr(ProxyResourceOutOfOrder, "proxy %s: expected index %d, got %d", addr, len(s.allProxies), *index)
		}
	}

	p := &Proxy{Address: addr, Host: host, Nodes: append([]string(nil), nodes...)}
	if index != nil {
		idx := *index
		p.Index = &idx
	}
	s.allProxies[addr] = p
	s.bumpEpoch(nil)
	glog.Infof("meta: added proxy %s on host %s", addr, host)
	return nil
}

// RemoveProxy deletes a free proxy resource. A proxy currently bound to a
// cluster cannot be removed directly; it must be replaced or the cluster
// scaled down first.
func (s *MetaStore) RemoveProxy(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.allProxies[addr]
	if !ok {
		return NewErr(ProxyNotFound, "%s", addr)
	}
	if !p.Free() {
		return NewErr(InUse, "proxy %s is bound to cluster %s", addr, *p.ClusterBinding)
	}
	delete(s.allProxies, addr)
	s.failures.Clear(addr)
	s.bumpEpoch(nil)
	glog.Infof("meta: removed proxy %s", addr)
	return nil
}

// freeProxies returns (under an already-held lock) every proxy not bound
// to a cluster.
func (s *MetaStore) freeProxies() []*Proxy {
	var out []*Proxy
	for _, p := range s.allProxies {
		if p.Free() {
			out = append(out, p)
		}
	}
	return out
}
