package meta

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func freeProxy(addr, host string) *Proxy {
	return &Proxy{Address: addr, Host: host, Nodes: []string{addr + "-n0", addr + "-n1"}}
}

var _ = Describe("AllocateChunks diverse mode", func() {
	It("pairs proxies from distinct hosts when possible", func() {
		pool := []*Proxy{
			freeProxy("p0", "h0"), freeProxy("p1", "h0"),
			freeProxy("p2", "h1"), freeProxy("p3", "h1"),
		}
		chunks, err := AllocateChunks(pool, 2, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(chunks).To(HaveLen(2))
		proxies := map[string]*Proxy{}
		for _, p := range pool {
			proxies[p.Address] = p
		}
		for _, c := range chunks {
			Expect(c.SameHost(proxies)).To(BeFalse())
		}
	})

	It("fails with NoAvailableResource when fewer than two hosts remain", func() {
		pool := []*Proxy{freeProxy("p0", "h0"), freeProxy("p1", "h0")}
		_, err := AllocateChunks(pool, 1, false)
		Expect(err).To(HaveOccurred())
		merr, ok := AsError(err)
		Expect(ok).To(BeTrue())
		Expect(merr.Kind).To(Equal(NoAvailableResource))
	})
})

var _ = Describe("AllocateChunks ordered mode", func() {
	It("pairs strictly by ascending index regardless of host", func() {
		idx := func(i int64) *int64 { return &i }
		p0 := freeProxy("p0", "h0")
		p0.Index = idx(0)
		p1 := freeProxy("p1", "h0")
		p1.Index = idx(1)
		p2 := freeProxy("p2", "h1")
		p2.Index = idx(2)
		p3 := freeProxy("p3", "h1")
		p3.Index = idx(3)

		chunks, err := AllocateChunks([]*Proxy{p3, p1, p0, p2}, 2, true)
		Expect(err).NotTo(HaveOccurred())
		Expect(chunks[0].ProxyAddrs).To(Equal([2]string{"p0", "p1"}))
		Expect(chunks[1].ProxyAddrs).To(Equal([2]string{"p2", "p3"}))
	})
})

var _ = Describe("BuildBalancedNodes", func() {
	It("gives each proxy exactly one master and pairs replicas on the sibling", func() {
		pa := freeProxy("pa", "h0")
		pb := freeProxy("pb", "h1")
		nodes := BuildBalancedNodes(pa, pb)
		Expect(nodes).To(HaveLen(4))
		masters := 0
		for _, n := range nodes {
			if n.Role == RoleMaster {
				masters++
				Expect(nodes[n.ReplicaOf]).To(BeNil()) // masters don't set ReplicaOf on themselves
			}
		}
		Expect(masters).To(Equal(2))
		for _, n := range nodes {
			if n.Role == RoleReplica {
				master := nodes[n.ReplicaOf]
				Expect(master).NotTo(BeNil())
				Expect(master.ProxyAddr).NotTo(Equal(n.ProxyAddr))
			}
		}
	})
})
