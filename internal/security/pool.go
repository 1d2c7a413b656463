package security

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrServiceUnavailable is returned by pool-backed operations after the pool
// has been closed.
var ErrServiceUnavailable = errors.New("service unavailable")

// PoolConfig bounds the hashing worker pool. Zero values select defaults.
type PoolConfig struct {
	// Workers is the maximum number of live workers; default NumCPU-1 (min 1).
	Workers int
	// TasksPerWorker is how many tasks one worker runs concurrently; default 2.
	TasksPerWorker int
	// IdleTimeout retires a worker that received no task for this long; default 30s.
	IdleTimeout time.Duration
}

func (c PoolConfig) withDefaults() PoolConfig {
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU() - 1
		if c.Workers < 1 {
			c.Workers = 1
		}
	}
	if c.TasksPerWorker <= 0 {
		c.TasksPerWorker = 2
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 30 * time.Second
	}
	return c
}

// PoolStats is a point-in-time view of the pool.
type PoolStats struct {
	Workers  int
	InFlight int
	Capacity int
}

type poolTask struct {
	fn   func()
	done chan struct{}
}

// Pool runs CPU-bound functions off the caller's goroutine on a bounded set of
// workers. Workers are spawned on demand and retire after IdleTimeout. When all
// worker slots are busy, callers wait for a free slot; once closed, calls fail
// with ErrServiceUnavailable.
type Pool struct {
	cfg   PoolConfig
	tasks chan poolTask
	done  chan struct{}
	wg    sync.WaitGroup

	mu       sync.Mutex
	workers  int
	pending  int // callers between admission and hand-off; workers must not retire while > 0
	inFlight int
	closed   bool
}

// NewPool returns a Pool with no live workers.
func NewPool(cfg PoolConfig) *Pool {
	return &Pool{
		cfg:   cfg.withDefaults(),
		tasks: make(chan poolTask),
		done:  make(chan struct{}),
	}
}

// Config returns the effective configuration.
func (p *Pool) Config() PoolConfig { return p.cfg }

// Stats returns the current worker count and in-flight tasks.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{
		Workers:  p.workers,
		InFlight: p.inFlight,
		Capacity: p.cfg.Workers * p.cfg.TasksPerWorker,
	}
}

// Err returns ErrServiceUnavailable once the pool is closed, nil before.
func (p *Pool) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrServiceUnavailable
	}
	return nil
}

// Do runs fn on a worker and waits for it to finish. If ctx ends before fn is
// handed to a worker, fn never runs and ctx.Err() is returned. If ctx ends
// while fn is running, Do returns ctx.Err() and fn completes in the background.
func (p *Pool) Do(ctx context.Context, fn func()) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrServiceUnavailable
	}
	p.pending++
	p.inFlight++
	if p.workers < p.cfg.Workers && (p.workers == 0 || p.inFlight > p.workers*p.cfg.TasksPerWorker) {
		p.workers++
		p.wg.Add(1)
		go p.worker()
	}
	p.mu.Unlock()

	t := poolTask{fn: fn, done: make(chan struct{})}
	select {
	case p.tasks <- t:
		p.mu.Lock()
		p.pending--
		p.mu.Unlock()
	case <-ctx.Done():
		p.abandon()
		return ctx.Err()
	case <-p.done:
		p.abandon()
		return ErrServiceUnavailable
	}

	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) abandon() {
	p.mu.Lock()
	p.pending--
	p.inFlight--
	p.mu.Unlock()
}

func (p *Pool) finish() {
	p.mu.Lock()
	p.inFlight--
	p.mu.Unlock()
}

// retire reports whether the calling worker may exit. It refuses while a
// caller is admitted but not yet handed off, since that caller may be relying
// on this worker to receive its task.
func (p *Pool) retire() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending > 0 {
		return false
	}
	p.workers--
	return true
}

func (p *Pool) worker() {
	defer p.wg.Done()
	slots := int64(p.cfg.TasksPerWorker)
	sem := semaphore.NewWeighted(slots)
	idle := time.NewTimer(p.cfg.IdleTimeout)
	defer idle.Stop()

	drain := func() { _ = sem.Acquire(context.Background(), slots) }

	for {
		// take a slot before a task so a saturated worker leaves work to its siblings
		_ = sem.Acquire(context.Background(), 1)
		select {
		case t := <-p.tasks:
			idle.Reset(p.cfg.IdleTimeout)
			go func() {
				defer close(t.done)
				defer sem.Release(1)
				defer p.finish()
				t.fn()
			}()
		case <-idle.C:
			sem.Release(1)
			// a worker with running tasks stays counted until they finish
			if sem.TryAcquire(slots) {
				if p.retire() {
					return
				}
				sem.Release(slots)
			}
			idle.Reset(p.cfg.IdleTimeout)
		case <-p.done:
			sem.Release(1)
			drain()
			return
		}
	}
}

// Close stops accepting work, fails queued callers with ErrServiceUnavailable
// and waits for running tasks to finish. Close is idempotent.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.done)
	p.mu.Unlock()
	p.wg.Wait()
}
