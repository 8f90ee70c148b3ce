// Package portpool leases loopback TCP ports to relay processes (spec
// §4.C). It follows the same mutex-guarded, fixed-capacity slice shape
// as the retrieval pack's own pool.Pool (drsoft-oss/proxyrotator), sized
// instead to a contiguous port range.
package portpool

import "sync"

// Pool is a bounded set of integers in [base, base+size). Every
// successful Take must be matched by exactly one Return (spec §5).
type Pool struct {
	mu    sync.Mutex
	ports []int
}

// New fills a pool with size consecutive ports starting at base.
func New(base, size int) *Pool {
	ports := make([]int, size)
	for i := range ports {
		ports[i] = base + i
	}
	return &Pool{ports: ports}
}

// Take pops one port, or reports ok=false when the pool is empty — the
// caller must fail that key rather than block (spec §4.C).
func (p *Pool) Take() (port int, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.ports) == 0 {
		return 0, false
	}
	n := len(p.ports) - 1
	port = p.ports[n]
	p.ports = p.ports[:n]
	return port, true
}

// Return pushes a previously leased port back into the pool. The pool
// is never resized, so returning an untracked port is a caller bug, not
// something this type guards against.
func (p *Pool) Return(port int) {
	p.mu.Lock()
	p.ports = append(p.ports, port)
	p.mu.Unlock()
}

// Available reports the number of free ports, mostly useful for tests
// asserting the pool drains back to full after a run (spec §8).
func (p *Pool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ports)
}
