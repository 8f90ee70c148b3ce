package store

import (
	"context"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestStore(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "store")
}

type memBackend struct {
	saved map[string]CacheEntry
}

func (m *memBackend) Load(_ context.Context, _ time.Duration) (map[string]CacheEntry, error) {
	return m.saved, nil
}

func (m *memBackend) Save(_ context.Context, entries map[string]CacheEntry) error {
	m.saved = entries
	return nil
}

var _ = Describe("KeyHash", func() {
	It("is deterministic and 16 hex characters", func() {
		h1 := KeyHash("vless://a@b.com:443")
		h2 := KeyHash("vless://a@b.com:443")
		Expect(h1).To(Equal(h2))
		Expect(h1).To(HaveLen(16))
	})

	It("differs for different inputs", func() {
		Expect(KeyHash("a")).NotTo(Equal(KeyHash("b")))
	})
})

var _ = Describe("Cache", func() {
	It("returns a miss for an unseen hash", func() {
		c, err := NewCache(context.Background(), true, &memBackend{saved: map[string]CacheEntry{}}, time.Hour)
		Expect(err).NotTo(HaveOccurred())
		_, ok := c.Lookup("deadbeefdeadbeef")
		Expect(ok).To(BeFalse())
	})

	It("round-trips a stored verdict", func() {
		c, _ := NewCache(context.Background(), true, &memBackend{saved: map[string]CacheEntry{}}, time.Hour)
		c.Store("deadbeefdeadbeef", true)
		entry, ok := c.Lookup("deadbeefdeadbeef")
		Expect(ok).To(BeTrue())
		Expect(entry.Result).To(BeTrue())
	})

	It("treats an expired entry as a miss even before reload", func() {
		c, _ := NewCache(context.Background(), true, &memBackend{saved: map[string]CacheEntry{}}, time.Millisecond)
		c.Store("deadbeefdeadbeef", true)
		time.Sleep(5 * time.Millisecond)
		_, ok := c.Lookup("deadbeefdeadbeef")
		Expect(ok).To(BeFalse())
	})

	It("never serves entries when disabled", func() {
		c, _ := NewCache(context.Background(), false, nil, time.Hour)
		c.Store("deadbeefdeadbeef", true)
		_, ok := c.Lookup("deadbeefdeadbeef")
		Expect(ok).To(BeFalse())
	})

	It("flushes the current snapshot through the backend", func() {
		backend := &memBackend{saved: map[string]CacheEntry{}}
		c, _ := NewCache(context.Background(), true, backend, time.Hour)
		c.Store("deadbeefdeadbeef", false)
		Expect(c.Flush(context.Background())).To(Succeed())
		Expect(backend.saved).To(HaveKey("deadbeefdeadbeef"))
	})
})

var _ = Describe("Notworkers", func() {
	It("tolerates a missing file", func() {
		n, err := LoadNotworkers("/nonexistent/path/notworkers")
		Expect(err).NotTo(HaveOccurred())
		Expect(n.Len()).To(Equal(0))
	})

	It("self-heals: dead keys join, alive keys drop out", func() {
		n, _ := LoadNotworkers("")
		dead := map[string]string{
			Normalize("vless://a@b.com:443"): "vless://a@b.com:443 # dead",
			Normalize("vless://c@d.com:443"): "vless://c@d.com:443",
		}
		alive := map[string]bool{
			Normalize("vless://c@d.com:443"): true,
		}
		n.Merge(dead, alive)

		Expect(n.Contains(Normalize("vless://a@b.com:443"))).To(BeTrue())
		Expect(n.Contains(Normalize("vless://c@d.com:443"))).To(BeFalse())
	})

	It("preserves the full line, including trailing comment, for new entries", func() {
		n, _ := LoadNotworkers("")
		norm := Normalize("vless://a@b.com:443")
		n.Merge(map[string]string{norm: "vless://a@b.com:443 # some comment"}, nil)
		Expect(n.FullLines()).To(ContainElement("vless://a@b.com:443 # some comment"))
	})
})

var _ = Describe("Normalize", func() {
	It("strips the display fragment", func() {
		Expect(Normalize("vless://a@b.com:443#mytag")).To(Equal("vless://a@b.com:443"))
	})

	It("strips trailing whitespace-separated tokens", func() {
		Expect(Normalize("vless://a@b.com:443 # a comment")).To(Equal("vless://a@b.com:443"))
	})
})
