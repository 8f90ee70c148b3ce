package checker

import (
	"errors"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/komyaka/xraycheck/internal/config"
)

func TestChecker(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "checker")
}

var _ = Describe("clampInt", func() {
	It("clamps below the floor", func() {
		Expect(clampInt(3, 10, 1)).To(Equal(3))
	})
	It("clamps above the ceiling", func() {
		Expect(clampInt(3, 10, 99)).To(Equal(10))
	})
	It("passes through values already in range", func() {
		Expect(clampInt(3, 10, 5)).To(Equal(5))
	})
})

var _ = Describe("average", func() {
	It("returns zero for an empty slice", func() {
		Expect(average(nil)).To(Equal(0.0))
	})
	It("averages a non-empty slice", func() {
		Expect(average([]float64{1, 2, 3})).To(Equal(2.0))
	})
})

var _ = Describe("allTrue", func() {
	It("is true for an empty slice", func() {
		Expect(allTrue(nil)).To(BeTrue())
	})
	It("is false when any element is false", func() {
		Expect(allTrue([]bool{true, false, true})).To(BeFalse())
	})
	It("is true when every element is true", func() {
		Expect(allTrue([]bool{true, true})).To(BeTrue())
	})
})

var _ = Describe("candidateURLs", func() {
	It("falls back to TestURL when no list is configured", func() {
		c := &Checker{cfg: &config.Settings{TestURL: "https://example.com/204"}}
		urls := c.candidateURLs()
		Expect(urls).To(HaveLen(1))
		Expect(urls[0].url).To(Equal("https://example.com/204"))
		Expect(urls[0].https).To(BeTrue())
	})

	It("unions TestURLs and TestURLsHTTPS when either is set", func() {
		c := &Checker{cfg: &config.Settings{
			TestURLs:      []string{"http://a.com"},
			TestURLsHTTPS: []string{"https://b.com"},
		}}
		urls := c.candidateURLs()
		Expect(urls).To(HaveLen(2))
		Expect(urls[0].https).To(BeFalse())
		Expect(urls[1].https).To(BeTrue())
	})
})

var _ = Describe("tallyResults", func() {
	It("counts successes and failures against the url list", func() {
		urls := []testURL{{url: "a"}, {url: "b"}, {url: "c"}}
		results := map[string]bool{"a": true, "b": false, "c": true}
		ok, fail := tallyResults(urls, results)
		Expect(ok).To(Equal(2))
		Expect(fail).To(Equal(1))
	})
})

var _ = Describe("anyHTTPSSucceeded / httpsOnly", func() {
	urls := []testURL{{url: "http://a", https: false}, {url: "https://b", https: true}}

	It("finds a successful https url among results", func() {
		Expect(anyHTTPSSucceeded(urls, map[string]bool{"https://b": true})).To(BeTrue())
	})

	It("reports false when the https url failed", func() {
		Expect(anyHTTPSSucceeded(urls, map[string]bool{"https://b": false})).To(BeFalse())
	})

	It("filters down to only https entries", func() {
		only := httpsOnly(urls)
		Expect(only).To(HaveLen(1))
		Expect(only[0].url).To(Equal("https://b"))
	})
})

var _ = Describe("isRetryableAfterError", func() {
	It("treats a nil-wrapped plain error as non-retryable", func() {
		Expect(isRetryableAfterError(errors.New("boom"))).To(BeFalse())
	})
})
