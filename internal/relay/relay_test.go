package relay

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestRelay(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "relay")
}

func freePort() int {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).NotTo(HaveOccurred())
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

var _ = Describe("WaitReady", func() {
	Describe("generic wait (forSpeedTest=false)", func() {
		It("returns nil once the wait elapses, whether or not anything is listening", func() {
			h := &Handle{port: freePort(), exited: make(chan struct{})}
			err := h.WaitReady(context.Background(), 50*time.Millisecond, 10*time.Millisecond, false)
			Expect(err).NotTo(HaveOccurred())
		})

		It("fails fast once the process has already exited", func() {
			h := &Handle{port: freePort(), exited: make(chan struct{})}
			close(h.exited)
			err := h.WaitReady(context.Background(), time.Second, 10*time.Millisecond, false)
			Expect(err).To(HaveOccurred())
		})

		It("honors a caller cancellation before the deadline", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			h := &Handle{port: freePort(), exited: make(chan struct{})}
			err := h.WaitReady(ctx, time.Second, 10*time.Millisecond, false)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("speed-test wait (forSpeedTest=true)", func() {
		It("returns nil once the port accepts connections", func() {
			l, err := net.Listen("tcp", "127.0.0.1:0")
			Expect(err).NotTo(HaveOccurred())
			defer l.Close()

			h := &Handle{port: l.Addr().(*net.TCPAddr).Port, exited: make(chan struct{})}
			err = h.WaitReady(context.Background(), 2*time.Second, 10*time.Millisecond, true)
			Expect(err).NotTo(HaveOccurred())
		})

		It("times out when nothing is listening on the port", func() {
			h := &Handle{port: freePort(), exited: make(chan struct{})}
			err := h.WaitReady(context.Background(), 100*time.Millisecond, 20*time.Millisecond, true)
			Expect(err).To(HaveOccurred())
		})

		It("fails fast once the process has already exited", func() {
			h := &Handle{port: freePort(), exited: make(chan struct{})}
			close(h.exited)
			err := h.WaitReady(context.Background(), time.Second, 10*time.Millisecond, true)
			Expect(err).To(HaveOccurred())
		})

		It("honors a caller cancellation before the deadline", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			h := &Handle{port: freePort(), exited: make(chan struct{})}
			err := h.WaitReady(ctx, time.Second, 10*time.Millisecond, true)
			Expect(err).To(HaveOccurred())
		})

		It("bounds the deadline to 2.5s regardless of a longer startup wait", func() {
			h := &Handle{port: freePort(), exited: make(chan struct{})}
			start := time.Now()
			err := h.WaitReady(context.Background(), 10*time.Second, 50*time.Millisecond, true)
			Expect(err).To(HaveOccurred())
			Expect(time.Since(start)).To(BeNumerically("<", 4*time.Second))
		})
	})
})

var _ = Describe("Spawn and Kill", func() {
	It("spawns the child, registers it, and Kill removes it and is idempotent", func() {
		dir := GinkgoT().TempDir()
		script := filepath.Join(dir, "fake-relay.sh")
		Expect(os.WriteFile(script, []byte("#!/bin/sh\nexec sleep 30\n"), 0o755)).To(Succeed())

		h, err := Spawn(nil, Options{
			BinaryPath: script,
			ScratchDir: dir,
			Port:       freePort(),
			Config:     map[string]any{"k": "v"},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(Registry.Snapshot()).To(ContainElement(h))

		h.Kill()
		Expect(Registry.Snapshot()).NotTo(ContainElement(h))

		Expect(func() { h.Kill() }).NotTo(Panic())
	})
})

var _ = Describe("Registry", func() {
	It("is idempotent under repeated Add/Remove", func() {
		r := newRegistry()
		h := &Handle{exited: make(chan struct{})}
		r.Add(h)
		r.Add(h)
		Expect(r.Snapshot()).To(HaveLen(1))
		r.Remove(h)
		r.Remove(h)
		Expect(r.Snapshot()).To(BeEmpty())
	})
})
