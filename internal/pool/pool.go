// Package pool runs per-key work under a fixed concurrency cap and a
// cooperative cancellation signal, mirroring the teacher's bounded
// worker/channel shape but replacing the semaphore-by-buffered-channel
// idiom with golang.org/x/sync/semaphore (spec §4.J).
package pool

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/komyaka/xraycheck/internal/xlog"
)

// Task is one unit of work submitted to the pool. ctx is cancelled the
// moment Cancel is called, so a task's relay lifecycle must observe it
// and run its kill sequence rather than linger.
type Task func(ctx context.Context)

// Progress is a snapshot of the pool's counters, suitable for feeding a
// dashboard.Publish call.
type Progress struct {
	Total    int64
	Done     int64
	InFlight int64
}

// Pool runs up to `size` tasks concurrently and supports a single
// cancellation that aborts every in-flight task and rejects further
// submissions (spec §4.J).
type Pool struct {
	sem  *semaphore.Weighted
	size int64

	ctx    context.Context
	cancel context.CancelFunc

	wg sync.WaitGroup

	total    atomic.Int64
	done     atomic.Int64
	inFlight atomic.Int64

	mu        sync.Mutex
	cancelled bool
}

// New builds a pool with the given worker cap.
func New(size int) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		sem:    semaphore.NewWeighted(int64(size)),
		size:   int64(size),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Submit blocks until a worker slot is free, then runs task in its own
// goroutine. It returns false without running task when the pool has
// already been cancelled (spec §4.J "reject further submissions").
func (p *Pool) Submit(task Task) bool {
	p.mu.Lock()
	if p.cancelled {
		p.mu.Unlock()
		return false
	}
	p.mu.Unlock()

	if err := p.sem.Acquire(p.ctx, 1); err != nil {
		return false
	}

	p.total.Add(1)
	p.inFlight.Add(1)
	p.wg.Add(1)

	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)
		defer p.inFlight.Add(-1)
		defer p.done.Add(1)

		task(p.ctx)
	}()

	return true
}

// Cancel signals every in-flight task to abort and rejects further
// submissions. It does not block; call Wait afterward to drain.
func (p *Pool) Cancel() {
	p.mu.Lock()
	if p.cancelled {
		p.mu.Unlock()
		return
	}
	p.cancelled = true
	p.mu.Unlock()

	xlog.Printf("pool: cancellation requested, draining in-flight tasks")
	p.cancel()
}

// Wait blocks until every submitted task has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Progress reports a point-in-time snapshot of the pool's counters.
func (p *Pool) Progress() Progress {
	return Progress{
		Total:    p.total.Load(),
		Done:     p.done.Load(),
		InFlight: p.inFlight.Load(),
	}
}

// Cancelled reports whether Cancel has been called.
func (p *Pool) Cancelled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancelled
}
