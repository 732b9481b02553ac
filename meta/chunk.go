package meta

// Chunk is an ordered pair of proxies drawn from two distinct hosts (unless
// forced under ordered-proxy mode, see ChunkAllocator). Each proxy
// contributes CHUNKHalfNodeNum nodes; within the chunk every master's
// replica lives on the proxy's sibling. Chunk stores proxy *addresses*, not
// pointers: node and proxy identity is always resolved through the owning
// MetaStore's maps, never via back-references baked into the chunk itself.
type Chunk struct {
	ProxyAddrs [2]string `json:"proxy_addrs"`
}

// Nodes returns every node address in the chunk in a stable order: all of
// proxy 0's nodes, then all of proxy 1's, resolved via the supplied proxy
// lookup.
func (c *Chunk) Nodes(proxies map[string]*Proxy) []string {
	out := make([]string, 0, 2*CHUNKHalfNodeNum)
	for _, addr := range c.ProxyAddrs {
		if p := proxies[addr]; p != nil {
			out = append(out, p.Nodes...)
		}
	}
	return out
}

// MasterCount returns how many of the chunk's nodes are masters, split by
// which proxy (0 or 1 in ProxyAddrs) owns them.
func (c *Chunk) MasterCount(proxies map[string]*Proxy, nodes map[string]*Node) (p0, p1 int) {
	for i, addr := range c.ProxyAddrs {
		proxy := proxies[addr]
		if proxy == nil {
			continue
		}
		for _, naddr := range proxy.Nodes {
			if n := nodes[naddr]; n != nil && n.Role == RoleMaster {
				if i == 0 {
					p0++
				} else {
					p1++
				}
			}
		}
	}
	return
}

// SameHost reports whether both proxies in the chunk share a host.
func (c *Chunk) SameHost(proxies map[string]*Proxy) bool {
	a, b := proxies[c.ProxyAddrs[0]], proxies[c.ProxyAddrs[1]]
	if a == nil || b == nil {
		return false
	}
	return a.Host == b.Host
}

// BuildBalancedNodes constructs the Node records for a freshly formed chunk,
// giving each proxy exactly one master and one replica (CHUNKHalfNodeNum==2)
// with every master's replica placed on the sibling proxy.
func BuildBalancedNodes(a, b *Proxy) map[string]*Node {
	nodes := make(map[string]*Node, len(a.Nodes)+len(b.Nodes))
	for i, addr := range a.Nodes {
		role := RoleMaster
		if i%2 != 0 {
			role = RoleReplica
		}
		nodes[addr] = &Node{Address: addr, ProxyAddr: a.Address, Role: role}
	}
	for i, addr := range b.Nodes {
		role := RoleReplica
		if i%2 != 0 {
			role = RoleMaster
		}
		nodes[addr] = &Node{Address: addr, ProxyAddr: b.Address, Role: role}
	}
	// wire replica_of by pairing index i of a with index i of b.
	for i := range a.Nodes {
		if i >= len(b.Nodes) {
			break
		}
		na, nb := nodes[a.Nodes[i]], nodes[b.Nodes[i]]
		if na.Role == RoleMaster {
			nb.ReplicaOf = na.Address
		} else {
			na.ReplicaOf = nb.Address
		}
	}
	return nodes
}

// SwapChunkRoles flips master/replica roles (and the ReplicaOf pairing)
// across both proxies of a chunk. BalanceMasters does not call it; it flips
// one node pair at a time instead.
func SwapChunkRoles(c *Chunk, proxies map[string]*Proxy, nodes map[string]*Node) {
	for _, addr := range c.ProxyAddrs {
		proxy := proxies[addr]
		if proxy == nil {
			continue
		}
		for _, naddr := range proxy.Nodes {
			n := nodes[naddr]
			if n == nil {
				continue
			}
			if n.Role == RoleMaster {
				n.Role = RoleReplica
			} else {
				n.Role = RoleMaster
			}
		}
	}
	// re-pair ReplicaOf using node ordering within each proxy.
	pa, pb := proxies[c.ProxyAddrs[0]], proxies[c.ProxyAddrs[1]]
	if pa == nil || pb == nil {
		return
	}
	for i := 0; i < len(pa.Nodes) && i < len(pb.Nodes); i++ {
		na, nb := nodes[pa.Nodes[i]], nodes[pb.Nodes[i]]
		if na == nil || nb == nil {
			continue
		}
		na.ReplicaOf, nb.ReplicaOf = "", ""
		if na.Role == RoleMaster {
			nb.ReplicaOf = na.Address
		} else {
			na.ReplicaOf = nb.Address
		}
	}
}
