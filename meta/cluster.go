package meta

import "sort"

// Cluster is a named collection of chunks and the configuration proxies in
// it should apply. Epoch is bumped to a fresh store-wide epoch whenever the
// cluster's membership or slot layout changes.
type Cluster struct {
	Name   string            `json:"name"`
	Epoch  int64             `json:"epoch"`
	Chunks []*Chunk          `json:"chunks"`
	Config map[string]string `json:"config,omitempty"`
}

// MasterNode pairs a node with its stable identity ordering within the
// cluster (chunk index, proxy slot, node slot) — used by SlotAllocator for
// even partitioning and scale migrations.
type MasterNode struct {
	Node     *Node
	ChunkIdx int
	ProxyIdx int // 0 or 1 within the chunk
	NodeIdx  int // index into the owning proxy's Nodes slice
}

// Masters returns every master node in the cluster, ordered by
// (chunk index, proxy index, node index) — a stable identity ordering.
func (c *Cluster) Masters(proxies map[string]*Proxy, nodes map[string]*Node) []MasterNode {
	var out []MasterNode
	for ci, chunk := range c.Chunks {
		for pi, paddr := range chunk.ProxyAddrs {
			proxy := proxies[paddr]
			if proxy == nil {
				continue
			}
			for ni, addr := range proxy.Nodes {
				n := nodes[addr]
				if n == nil || n.Role != RoleMaster {
					continue
				}
				out = append(out, MasterNode{Node: n, ChunkIdx: ci, ProxyIdx: pi, NodeIdx: ni})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ChunkIdx != out[j].ChunkIdx {
			return out[i].ChunkIdx < out[j].ChunkIdx
		}
		if out[i].ProxyIdx != out[j].ProxyIdx {
			return out[i].ProxyIdx < out[j].ProxyIdx
		}
		return out[i].NodeIdx < out[j].NodeIdx
	})
	return out
}

// NodeAddresses returns every node address (master and replica) bound to
// the cluster.
func (c *Cluster) NodeAddresses(proxies map[string]*Proxy) []string {
	var out []string
	for _, chunk := range c.Chunks {
		out = append(out, chunk.Nodes(proxies)...)
	}
	return out
}

// ProxyAddresses returns every proxy address bound to the cluster.
func (c *Cluster) ProxyAddresses() []string {
	out := make([]string, 0, len(c.Chunks)*2)
	for _, chunk := range c.Chunks {
		out = append(out, chunk.ProxyAddrs[0], chunk.ProxyAddrs[1])
	}
	return out
}

// HasActiveMigration reports whether any node in the cluster currently
// carries a Migrating or Importing tag.
func (c *Cluster) HasActiveMigration(proxies map[string]*Proxy, nodes map[string]*Node) bool {
	for _, addr := range c.NodeAddresses(proxies) {
		n := nodes[addr]
		if n == nil {
			continue
		}
		for _, sr := range n.SlotRanges {
			if sr.Tag != TagNone {
				return true
			}
		}
	}
	return false
}

// Info is the summary payload served by GET /clusters/info/{name}.
type Info struct {
	Name        string `json:"name"`
	Epoch       int64  `json:"epoch"`
	NodeNumber  int    `json:"node_number"`
	MasterCount int    `json:"master_count"`
}
