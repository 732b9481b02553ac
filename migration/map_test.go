package migration

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/clustermeta/broker/meta"
)

var instantCopy CopyFunc = func(ctx context.Context, t *Task) error { return nil }

func sampleMeta(epoch int64) meta.MigrationMeta {
	return meta.MigrationMeta{Epoch: epoch, SrcProxy: "p0", SrcNode: "n0", DstProxy: "p1", DstNode: "n1"}
}

var _ = Describe("Task state machine", func() {
	It("advances from PreCheck to Blocking once the copy phase completes", func() {
		t := newTask("t1", sampleMeta(1), RoleImporting, 0, 100, instantCopy)
		defer t.Stop()
		Eventually(t.State, time.Second).Should(Equal(Blocking))
	})

	It("aborts cleanly when stopped before the copy phase finishes", func() {
		blockCopy := func(ctx context.Context, t *Task) error {
			<-ctx.Done()
			return ctx.Err()
		}
		t := newTask("t2", sampleMeta(1), RoleImporting, 0, 100, blockCopy)
		t.Stop()
		Expect(t.State()).To(Equal(Aborted))
	})
})

var _ = Describe("HandleSwitch", func() {
	It("replies NotReady before the destination task reaches Blocking", func() {
		t := &Task{ID: "t3", Meta: sampleMeta(1), Role: RoleImporting, state: PreBlocking}
		err := t.HandleSwitch(sampleMeta(1))
		Expect(err).To(MatchError(ErrNotReady))
	})

	It("advances Blocking to Committing on a matching switch", func() {
		t := &Task{ID: "t4", Meta: sampleMeta(1), Role: RoleImporting, state: Blocking}
		Expect(t.HandleSwitch(sampleMeta(1))).To(Succeed())
		Expect(t.State()).To(Equal(Committing))
	})

	It("replies PeerMigrating when sent to a source-role task", func() {
		t := &Task{ID: "t5", Meta: sampleMeta(1), Role: RoleMigrating, state: Blocking}
		err := t.HandleSwitch(sampleMeta(1))
		Expect(err).To(MatchError(ErrPeerMigrating))
	})
})

var _ = Describe("ProxyMigrationMap", func() {
	It("returns ErrSlotNotFound on the fast path when empty", func() {
		m := NewProxyMigrationMap(instantCopy)
		_, err := m.Send(Command{Cluster: "demo", Slot: 10, HasKey: true})
		Expect(err).To(MatchError(ErrSlotNotFound))
	})

	It("returns ErrMissingKey for a keyless command even with active tasks", func() {
		m := NewProxyMigrationMap(instantCopy)
		m.UpdateFromNewClusterMap("demo", []TaggedRange{{Meta: sampleMeta(1), Role: RoleImporting, Start: 0, End: 100}})
		_, err := m.Send(Command{Cluster: "demo", Slot: 10, HasKey: false})
		Expect(err).To(MatchError(ErrMissingKey))
	})

	It("routes a command to the task covering its slot", func() {
		m := NewProxyMigrationMap(instantCopy)
		m.UpdateFromNewClusterMap("demo", []TaggedRange{{Meta: sampleMeta(1), Role: RoleImporting, Start: 0, End: 100}})
		task, err := m.Send(Command{Cluster: "demo", Slot: 50, HasKey: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(task.Meta.Epoch).To(Equal(int64(1)))
	})

	It("preserves a running task when its epoch is unchanged across updates", func() {
		m := NewProxyMigrationMap(nil)
		m.UpdateFromNewClusterMap("demo", []TaggedRange{{Meta: sampleMeta(1), Role: RoleImporting, Start: 0, End: 100}})
		first, _ := m.Task("demo", sampleMeta(1))
		m.UpdateFromNewClusterMap("demo", []TaggedRange{{Meta: sampleMeta(1), Role: RoleImporting, Start: 0, End: 100}})
		second, _ := m.Task("demo", sampleMeta(1))
		Expect(second).To(BeIdenticalTo(first))
	})

	It("drops and stops a task absent from a subsequent update", func() {
		m := NewProxyMigrationMap(instantCopy)
		m.UpdateFromNewClusterMap("demo", []TaggedRange{{Meta: sampleMeta(1), Role: RoleImporting, Start: 0, End: 100}})
		task, _ := m.Task("demo", sampleMeta(1))
		Eventually(task.State, time.Second).Should(Equal(Blocking))

		m.UpdateFromNewClusterMap("demo", nil)
		_, ok := m.Task("demo", sampleMeta(1))
		Expect(ok).To(BeFalse())
	})
})
