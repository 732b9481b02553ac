package meta

import (
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func addFreeProxies(s *MetaStore, hostPrefix string, n int) {
	for i := 0; i < n; i++ {
		addr := hostPrefix + "-proxy-" + string(rune('a'+i))
		host := hostPrefix + "-host-" + string(rune('a'+i%2))
		ExpectWithOffset(1, s.AddProxy(addr, host, []string{addr + "-n0", addr + "-n1"}, nil)).To(Succeed())
	}
}

var _ = Describe("MetaStore clusters", func() {
	var s *MetaStore

	BeforeEach(func() {
		s = New(false)
		addFreeProxies(s, "c", 8)
	})

	It("bumps the global epoch on every mutation", func() {
		before := s.GlobalEpoch()
		_, err := s.AddCluster("demo", 8)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.GlobalEpoch()).To(BeNumerically(">", before))
	})

	It("rejects a node_number that isn't a multiple of the chunk size", func() {
		_, err := s.AddCluster("demo", 3)
		Expect(err).To(HaveOccurred())
		merr, _ := AsError(err)
		Expect(merr.Kind).To(Equal(InvalidNodeNum))
	})

	It("partitions a fresh cluster's slot space evenly across its masters", func() {
		_, err := s.AddCluster("demo", 8)
		Expect(err).NotTo(HaveOccurred())
		info, err := s.ClusterInfo("demo")
		Expect(err).NotTo(HaveOccurred())
		Expect(info.MasterCount).To(Equal(4))

		_, nodes, err := s.Cluster("demo")
		Expect(err).NotTo(HaveOccurred())
		total := 0
		for _, n := range nodes {
			total += totalSlots(n)
		}
		Expect(total).To(Equal(SlotMax))
	})

	It("refuses RemoveCluster while a migration is active", func() {
		_, err := s.AddCluster("demo", 8)
		Expect(err).NotTo(HaveOccurred())
		addFreeProxies(s, "d", 4)
		_, err = s.AutoAddNodes("demo", 4)
		Expect(err).NotTo(HaveOccurred())
		_, err = s.MigrateSlots("demo")
		Expect(err).NotTo(HaveOccurred())

		err = s.RemoveCluster("demo")
		Expect(err).To(HaveOccurred())
		merr, _ := AsError(err)
		Expect(merr.Kind).To(Equal(MigrationRunning))
	})
})

var _ = Describe("MetaStore migration lifecycle", func() {
	var s *MetaStore

	BeforeEach(func() {
		s = New(false)
		addFreeProxies(s, "c", 8)
	})

	It("commits a migration idempotently, failing the second commit", func() {
		_, err := s.AddCluster("demo", 8)
		Expect(err).NotTo(HaveOccurred())
		addFreeProxies(s, "d", 4)
		_, err = s.AutoAddNodes("demo", 4)
		Expect(err).NotTo(HaveOccurred())
		tasks, err := s.MigrateSlots("demo")
		Expect(err).NotTo(HaveOccurred())
		Expect(tasks).NotTo(BeEmpty())

		Expect(s.CommitMigration(tasks[0])).To(Succeed())
		err = s.CommitMigration(tasks[0])
		Expect(err).To(HaveOccurred())
		merr, _ := AsError(err)
		Expect(merr.Kind).To(Equal(MigrationTaskNotFound))
	})

	It("refuses a second MigrateSlots while one is already in flight", func() {
		_, err := s.AddCluster("demo", 8)
		Expect(err).NotTo(HaveOccurred())
		addFreeProxies(s, "d", 4)
		_, err = s.AutoAddNodes("demo", 4)
		Expect(err).NotTo(HaveOccurred())
		_, err = s.MigrateSlots("demo")
		Expect(err).NotTo(HaveOccurred())

		_, err = s.MigrateSlots("demo")
		Expect(err).To(HaveOccurred())
		merr, _ := AsError(err)
		Expect(merr.Kind).To(Equal(MigrationRunning))
	})

	It("reports SlotsAlreadyEven when there are no free nodes to expand into", func() {
		_, err := s.AddCluster("demo", 8)
		Expect(err).NotTo(HaveOccurred())
		_, err = s.MigrateSlots("demo")
		Expect(err).To(HaveOccurred())
		merr, _ := AsError(err)
		Expect(merr.Kind).To(Equal(SlotsAlreadyEven))
	})
})

var _ = Describe("MetaStore scale lock", func() {
	It("rejects a concurrent scale attempt with NodeNumberChanging", func() {
		s := New(false)
		Expect(s.TryLockScale()).To(Succeed())
		defer s.UnlockScale()

		err := s.TryLockScale()
		Expect(err).To(HaveOccurred())
		merr, _ := AsError(err)
		Expect(merr.Kind).To(Equal(NodeNumberChanging))
	})
})

var _ = Describe("MetaStore epoch recovery", func() {
	It("ForceBumpAllEpoch refuses to move backwards or stay put", func() {
		s := New(false)
		cur := s.GlobalEpoch()
		err := s.ForceBumpAllEpoch(cur)
		Expect(err).To(HaveOccurred())
		merr, _ := AsError(err)
		Expect(merr.Kind).To(Equal(SmallEpoch))

		Expect(s.ForceBumpAllEpoch(cur + 10)).To(Succeed())
		Expect(s.GlobalEpoch()).To(Equal(cur + 10))
	})

	It("RecoverEpoch never regresses and never fails", func() {
		s := New(false)
		Expect(s.ForceBumpAllEpoch(100)).To(Succeed())
		Expect(s.RecoverEpoch(50)).To(Equal(int64(100)))
		Expect(s.RecoverEpoch(200)).To(Equal(int64(200)))
	})
})

var _ = Describe("MetaStore failure tracking", func() {
	It("requires quorum-distinct reporters before reporting a failure", func() {
		s := New(false)
		addFreeProxies(s, "c", 8)
		_, err := s.AddCluster("demo", 8)
		Expect(err).NotTo(HaveOccurred())

		_, nodes, err := s.Cluster("demo")
		Expect(err).NotTo(HaveOccurred())
		var someProxy string
		for _, n := range nodes {
			someProxy = n.ProxyAddr
			break
		}

		now := time.Now()
		s.AddFailure(someProxy, "coordinator-1", now)
		Expect(s.GetFailedProxies(time.Minute, 2, now)).To(BeEmpty())
		s.AddFailure(someProxy, "coordinator-2", now)
		Expect(s.GetFailedProxies(time.Minute, 2, now)).To(ContainElement(someProxy))
	})

	It("prunes witnesses older than the ttl on read", func() {
		s := New(false)
		now := time.Now()
		s.AddFailure("p0", "r1", now.Add(-2*time.Minute))
		s.AddFailure("p0", "r2", now)
		Expect(s.GetFailures(time.Minute, 2, now)).To(BeEmpty())
	})
})

var _ = Describe("MetaStore snapshot round trip", func() {
	It("Dump then Restore reproduces an equivalent store", func() {
		s := New(false)
		addFreeProxies(s, "c", 8)
		_, err := s.AddCluster("demo", 8)
		Expect(err).NotTo(HaveOccurred())
		s.AddFailure("ghost", "r1", time.Now())

		snap := s.Dump()
		Expect(snap.Version).To(Equal(MetaStoreVersion))

		restored := New(false)
		Expect(restored.Restore(snap)).To(Succeed())
		Expect(restored.GlobalEpoch()).To(Equal(s.GlobalEpoch()))
		Expect(restored.ClusterNames()).To(Equal(s.ClusterNames()))
	})

	It("rejects a snapshot with a mismatched version", func() {
		s := New(false)
		bad := &Snapshot{Version: MetaStoreVersion + 1}
		err := s.Restore(bad)
		Expect(err).To(HaveOccurred())
		merr, _ := AsError(err)
		Expect(merr.Kind).To(Equal(InvalidMetaVersion))
	})
})
