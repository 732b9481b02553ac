package meta

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("EvenPartition", func() {
	It("covers [0, SlotMax) with no gaps or overlaps", func() {
		for _, n := range []int{1, 3, 4, 7, 16} {
			ranges := EvenPartition(n)
			Expect(ranges).To(HaveLen(n))
			Expect(ranges[0].Start).To(Equal(0))
			Expect(ranges[len(ranges)-1].End).To(Equal(SlotMax))
			for i := 1; i < len(ranges); i++ {
				Expect(ranges[i].Start).To(Equal(ranges[i-1].End))
			}
		}
	})

	It("never lets two shares differ by more than one slot", func() {
		ranges := EvenPartition(7)
		min, max := ranges[0].Count(), ranges[0].Count()
		for _, r := range ranges {
			if r.Count() < min {
				min = r.Count()
			}
			if r.Count() > max {
				max = r.Count()
			}
		}
		Expect(max - min).To(BeNumerically("<=", 1))
	})

	It("returns nil for n<=0", func() {
		Expect(EvenPartition(0)).To(BeNil())
	})
})

var _ = Describe("PlanExpand", func() {
	It("preserves the identity of pre-existing masters", func() {
		items, err := PlanExpand(2, 4)
		Expect(err).NotTo(HaveOccurred())
		for _, it := range items {
			Expect(it.SrcOwner).To(BeNumerically("<", 2))
			Expect(it.DstOwner).To(BeNumerically(">=", 2))
		}
	})

	It("rejects newN <= oldN", func() {
		_, err := PlanExpand(4, 4)
		Expect(err).To(HaveOccurred())
		merr, ok := AsError(err)
		Expect(ok).To(BeTrue())
		Expect(merr.Kind).To(Equal(InvalidNodeNum))
	})

	It("moves a sum of slots equal to the new members' total share", func() {
		items, err := PlanExpand(1, 2)
		Expect(err).NotTo(HaveOccurred())
		moved := 0
		for _, it := range items {
			moved += it.End - it.Start
		}
		newRanges := EvenPartition(2)
		Expect(moved).To(Equal(newRanges[1].Count()))
	})
})

var _ = Describe("PlanShrink", func() {
	It("redistributes a removed master's slots across survivors only", func() {
		items, err := PlanShrink(4, []int{3})
		Expect(err).NotTo(HaveOccurred())
		for _, it := range items {
			Expect(it.SrcOwner).To(Equal(3))
			Expect(it.DstOwner).NotTo(Equal(3))
		}
	})

	It("rejects removing every master", func() {
		_, err := PlanShrink(2, []int{0, 1})
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("BalanceMasters", func() {
	It("fails ResourceNotBalance on an odd total master count", func() {
		pa := &Proxy{Address: "p0", Nodes: []string{"n0", "n1", "n2"}}
		pb := &Proxy{Address: "p1", Nodes: []string{"n3", "n4", "n5"}}
		proxies := map[string]*Proxy{"p0": pa, "p1": pb}
		nodes := map[string]*Node{
			"n0": {Address: "n0", Role: RoleMaster},
			"n1": {Address: "n1", Role: RoleMaster},
			"n2": {Address: "n2", Role: RoleMaster},
			"n3": {Address: "n3", Role: RoleReplica},
			"n4": {Address: "n4", Role: RoleReplica},
			"n5": {Address: "n5", Role: RoleReplica},
		}
		chunk := &Chunk{ProxyAddrs: [2]string{"p0", "p1"}}
		err := BalanceMasters(chunk, proxies, nodes)
		Expect(err).To(HaveOccurred())
		merr, ok := AsError(err)
		Expect(ok).To(BeTrue())
		Expect(merr.Kind).To(Equal(ResourceNotBalance))
	})

	It("evens out a chunk where one proxy holds all masters", func() {
		pa := &Proxy{Address: "p0", Nodes: []string{"n0", "n1"}}
		pb := &Proxy{Address: "p1", Nodes: []string{"n2", "n3"}}
		proxies := map[string]*Proxy{"p0": pa, "p1": pb}
		nodes := map[string]*Node{
			"n0": {Address: "n0", Role: RoleMaster},
			"n1": {Address: "n1", Role: RoleMaster},
			"n2": {Address: "n2", Role: RoleReplica},
			"n3": {Address: "n3", Role: RoleReplica},
		}
		chunk := &Chunk{ProxyAddrs: [2]string{"p0", "p1"}}
		Expect(BalanceMasters(chunk, proxies, nodes)).To(Succeed())
		masters := 0
		for _, addr := range pa.Nodes {
			if nodes[addr].Role == RoleMaster {
				masters++
			}
		}
		Expect(masters).To(Equal(1))
	})
})
