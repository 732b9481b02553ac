package meta

import (
	"sort"

	"github.com/golang/glog"
)

// AllocateChunks draws k chunks from the free proxy pool, enforcing host
// diversity: each chunk pairs proxies from two distinct hosts whenever that
// is possible. It never mutates freeProxies; callers are responsible for
// removing the proxies actually consumed (chunks[i].ProxyAddrs) from the
// pool afterwards.
func AllocateChunks(freeProxies []*Proxy, k int, ordered bool) ([]*Chunk, error) {
	if ordered {
		return allocateOrderedChunks(freeProxies, k)
	}
	return allocateDiverseChunks(freeProxies, k)
}

// allocateDiverseChunks repeatedly pairs a proxy from the two most-populated
// distinct hosts remaining, tie-breaking on host name, until k chunks are
// formed or no two distinct hosts have free proxies left.
func allocateDiverseChunks(freeProxies []*Proxy, k int) ([]*Chunk, error) {
	byHost := make(map[string][]*Proxy)
	for _, p := range freeProxies {
		byHost[p.Host] = append(byHost[p.Host], p)
	}

	chunks := make([]*Chunk, 0, k)
	for i := 0; i < k; i++ {
		hosts := make([]string, 0, len(byHost))
		for h, ps := range byHost {
			if len(ps) > 0 {
				hosts = append(hosts, h)
			}
		}
		if len(hosts) < 2 {
			return nil, NewErr(NoAvailableResource, "need %d more host-diverse chunks, only %d distinct hosts with free proxies", k-i, len(hosts))
		}
		sort.Slice(hosts, func(a, b int) bool {
			if len(byHost[hosts[a]]) != len(byHost[hosts[b]]) {
				return len(byHost[hosts[a]]) > len(byHost[hosts[b]])
			}
			return hosts[a] < hosts[b]
		})
		h0, h1 := hosts[0], hosts[1]
		p0 := popProxy(byHost, h0)
		p1 := popProxy(byHost, h1)
		chunks = append(chunks, &Chunk{ProxyAddrs: [2]string{p0.Address, p1.Address}})
	}
	return chunks, nil
}

func popProxy(byHost map[string][]*Proxy, host string) *Proxy {
	ps := byHost[host]
	p := ps[0]
	byHost[host] = ps[1:]
	return p
}

// allocateOrderedChunks forces proxies to be consumed strictly in ascending
// Index order and pairs (2i, 2i+1). The two proxies of a forced pair may
// share a host; the allocator warns rather than rejecting, since under
// ordered mode there is no choice of pairing to begin with.
func allocateOrderedChunks(freeProxies []*Proxy, k int) ([]*Chunk, error) {
	ordered := append([]*Proxy(nil), freeProxies...)
	sort.Slice(ordered, func(i, j int) bool {
		return indexOf(ordered[i]) < indexOf(ordered[j])
	})
	need := 2 * k
	if len(ordered) < need {
		return nil, NewErr(NoAvailableResource, "need %d ordered free proxies, have %d", need, len(ordered))
	}
	chunks := make([]*Chunk, 0, k)
	for i := 0; i < k; i++ {
		p0, p1 := ordered[2*i], ordered[2*i+1]
		if p0.Host == p1.Host {
			glog.Warningf("meta: ordered chunk (%s,%s) shares host %s, binding anyway", p0.Address, p1.Address, p0.Host)
		}
		chunks = append(chunks, &Chunk{ProxyAddrs: [2]string{p0.Address, p1.Address}})
	}
	return chunks, nil
}

func indexOf(p *Proxy) int64 {
	if p.Index == nil {
		return -1
	}
	return *p.Index
}
