package portpool

import (
	"sync"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestPortpool(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "portpool")
}

var _ = Describe("Pool", func() {
	It("hands out every port in range exactly once before exhausting", func() {
		p := New(20000, 3)
		seen := map[int]bool{}
		for i := 0; i < 3; i++ {
			port, ok := p.Take()
			Expect(ok).To(BeTrue())
			Expect(seen[port]).To(BeFalse())
			seen[port] = true
			Expect(port).To(BeNumerically(">=", 20000))
			Expect(port).To(BeNumerically("<", 20003))
		}
		_, ok := p.Take()
		Expect(ok).To(BeFalse())
	})

	It("restores availability after Return", func() {
		p := New(20000, 1)
		port, ok := p.Take()
		Expect(ok).To(BeTrue())
		Expect(p.Available()).To(Equal(0))

		p.Return(port)
		Expect(p.Available()).To(Equal(1))

		_, ok = p.Take()
		Expect(ok).To(BeTrue())
	})

	It("is safe for concurrent take/return", func() {
		p := New(20000, 50)
		var wg sync.WaitGroup
		for i := 0; i < 200; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if port, ok := p.Take(); ok {
					p.Return(port)
				}
			}()
		}
		wg.Wait()
		Expect(p.Available()).To(Equal(50))
	})
})
