package prober

import (
	"errors"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestProber(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "prober")
}

var _ = Describe("Valid", func() {
	It("accepts a 204 with a small body for generate_204 targets", func() {
		r := &Result{StatusCode: 204, ContentLength: 0}
		Expect(Valid("https://www.gstatic.com/generate_204", r, 0)).To(BeTrue())
	})

	It("rejects a generate_204 response carrying an oversized body", func() {
		r := &Result{StatusCode: 200, ContentLength: 1000}
		Expect(Valid("https://www.gstatic.com/generate_204", r, 0)).To(BeFalse())
	})

	It("rejects a 5xx status for a regular target", func() {
		r := &Result{StatusCode: 500, ContentLength: 10}
		Expect(Valid("https://example.com", r, 0)).To(BeFalse())
	})

	It("rejects a response smaller than the minimum size", func() {
		r := &Result{StatusCode: 200, ContentLength: 5}
		Expect(Valid("https://example.com", r, 100)).To(BeFalse())
	})

	It("accepts a normal 2xx response meeting the size floor", func() {
		r := &Result{StatusCode: 200, ContentLength: 500}
		Expect(Valid("https://example.com", r, 100)).To(BeTrue())
	})
})

var _ = Describe("IsTransientConnectionError", func() {
	It("is false for a nil error", func() {
		Expect(IsTransientConnectionError(nil)).To(BeFalse())
	})

	It("recognizes a connection reset", func() {
		Expect(IsTransientConnectionError(errors.New("read: connection reset by peer"))).To(BeTrue())
	})

	It("recognizes a connection refused", func() {
		Expect(IsTransientConnectionError(errors.New("dial tcp: connection refused"))).To(BeTrue())
	})

	It("is false for an unrelated error", func() {
		Expect(IsTransientConnectionError(errors.New("context deadline exceeded"))).To(BeFalse())
	})
})

var _ = Describe("Timeout.Overall", func() {
	It("sums connect and read", func() {
		tm := Timeout{Connect: 3, Read: 7}
		Expect(tm.Overall()).To(Equal(tm.Connect + tm.Read))
	})
})
