package meta

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("MetaStore failover", func() {
	It("replaces a failed proxy with a diverse free proxy", func() {
		s := New(false)
		Expect(s.AddProxy("p-a", "host-a", []string{"p-a-n0", "p-a-n1"}, nil)).To(Succeed())
		Expect(s.AddProxy("p-b", "host-b", []string{"p-b-n0", "p-b-n1"}, nil)).To(Succeed())
		_, err := s.AddCluster("demo", 4)
		Expect(err).NotTo(HaveOccurred())

		Expect(s.AddProxy("free-c", "host-c", []string{"free-c-n0", "free-c-n1"}, nil)).To(Succeed())

		replacement, err := s.ReplaceFailedProxy("p-a")
		Expect(err).NotTo(HaveOccurred())
		Expect(replacement.Address).To(Equal("free-c"))
	})

	It("fails NoAvailableResource when every free proxy shares the sibling's host", func() {
		s := New(false)
		Expect(s.AddProxy("p-a", "host-a", []string{"p-a-n0", "p-a-n1"}, nil)).To(Succeed())
		Expect(s.AddProxy("p-b", "host-b", []string{"p-b-n0", "p-b-n1"}, nil)).To(Succeed())
		_, err := s.AddCluster("demo", 4)
		Expect(err).NotTo(HaveOccurred())

		// p-a's chunk sibling is p-b on host-b; the only free proxy shares
		// that host, so no diverse replacement exists.
		Expect(s.AddProxy("free-b", "host-b", []string{"free-b-n0", "free-b-n1"}, nil)).To(Succeed())

		_, err = s.ReplaceFailedProxy("p-a")
		Expect(err).To(HaveOccurred())
		merr, _ := AsError(err)
		Expect(merr.Kind).To(Equal(NoAvailableResource))
	})
})
