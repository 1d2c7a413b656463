package security

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPool_Defaults(t *testing.T) {
	p := NewPool(PoolConfig{})
	defer p.Close()
	cfg := p.Config()
	if cfg.Workers < 1 {
		t.Errorf("Workers = %d, want >= 1", cfg.Workers)
	}
	if cfg.TasksPerWorker != 2 {
		t.Errorf("TasksPerWorker = %d, want 2", cfg.TasksPerWorker)
	}
	if cfg.IdleTimeout != 30*time.Second {
		t.Errorf("IdleTimeout = %v, want 30s", cfg.IdleTimeout)
	}
}

func TestPool_BoundsConcurrency(t *testing.T) {
	p := NewPool(PoolConfig{Workers: 2, TasksPerWorker: 2, IdleTimeout: time.Second})
	defer p.Close()

	var running, peak int32
	release := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := p.Do(context.Background(), func() {
				n := atomic.AddInt32(&running, 1)
				for {
					old := atomic.LoadInt32(&peak)
					if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
						break
					}
				}
				<-release
				atomic.AddInt32(&running, -1)
			})
			if err != nil {
				t.Errorf("Do: %v", err)
			}
		}()
	}

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&running) < 4 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	if got := atomic.LoadInt32(&running); got != 4 {
		t.Errorf("running = %d, want 4 (2 workers x 2 tasks)", got)
	}
	close(release)
	wg.Wait()
	if got := atomic.LoadInt32(&peak); got > 4 {
		t.Errorf("peak concurrency = %d, want <= 4", got)
	}
}

func TestPool_CloseFailsFast(t *testing.T) {
	p := NewPool(PoolConfig{Workers: 1})
	if err := p.Do(context.Background(), func() {}); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if err := p.Err(); err != nil {
		t.Errorf("Err before Close = %v", err)
	}
	p.Close()
	p.Close()
	if err := p.Err(); !errors.Is(err, ErrServiceUnavailable) {
		t.Errorf("Err after Close = %v", err)
	}
	if err := p.Do(context.Background(), func() { t.Error("task ran after Close") }); !errors.Is(err, ErrServiceUnavailable) {
		t.Errorf("Do after Close: want ErrServiceUnavailable, got %v", err)
	}
}

func TestPool_CloseReleasesQueuedCallers(t *testing.T) {
	p := NewPool(PoolConfig{Workers: 1, TasksPerWorker: 1})
	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = p.Do(context.Background(), func() { close(started); <-release })
	}()
	<-started

	queued := make(chan error, 1)
	go func() { queued <- p.Do(context.Background(), func() {}) }()
	time.Sleep(20 * time.Millisecond)

	closed := make(chan struct{})
	go func() { p.Close(); close(closed) }()

	select {
	case err := <-queued:
		if !errors.Is(err, ErrServiceUnavailable) {
			t.Errorf("queued caller: want ErrServiceUnavailable, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("queued caller not released by Close")
	}
	close(release)
	<-closed
}

func TestPool_IdleWorkersRetireAndRespawn(t *testing.T) {
	p := NewPool(PoolConfig{Workers: 2, TasksPerWorker: 1, IdleTimeout: 20 * time.Millisecond})
	defer p.Close()
	if err := p.Do(context.Background(), func() {}); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if got := p.Stats().Workers; got != 1 {
		t.Errorf("Workers after one task = %d, want 1", got)
	}
	deadline := time.Now().Add(2 * time.Second)
	for p.Stats().Workers != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := p.Stats().Workers; got != 0 {
		t.Fatalf("Workers after idle timeout = %d, want 0", got)
	}
	ran := false
	if err := p.Do(context.Background(), func() { ran = true }); err != nil {
		t.Fatalf("Do after retire: %v", err)
	}
	if !ran {
		t.Error("task did not run on a respawned worker")
	}
}

func TestPool_SlowTaskOutlivesIdleTimeout(t *testing.T) {
	p := NewPool(PoolConfig{Workers: 1, TasksPerWorker: 2, IdleTimeout: 30 * time.Millisecond})
	defer p.Close()

	var running, peak int32
	track := func(d time.Duration) func() {
		return func() {
			n := atomic.AddInt32(&running, 1)
			for {
				old := atomic.LoadInt32(&peak)
				if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
					break
				}
			}
			time.Sleep(d)
			atomic.AddInt32(&running, -1)
		}
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = p.Do(context.Background(), track(400*time.Millisecond))
	}()
	// the idle timer fires several times while the long task runs
	time.Sleep(100 * time.Millisecond)
	if got := p.Stats().Workers; got != 1 {
		t.Errorf("Workers while a task runs = %d, want 1", got)
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.Do(context.Background(), track(200*time.Millisecond)); err != nil {
				t.Errorf("Do: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&peak); got > 2 {
		t.Errorf("peak concurrent tasks = %d, capacity 2", got)
	}
}

func TestPool_CanceledWhileQueued(t *testing.T) {
	p := NewPool(PoolConfig{Workers: 1, TasksPerWorker: 1})
	defer p.Close()
	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = p.Do(context.Background(), func() { close(started); <-release })
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	var ran atomic.Bool
	err := p.Do(ctx, func() { ran.Store(true) })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Do: want DeadlineExceeded, got %v", err)
	}
	close(release)
	if err := p.Do(context.Background(), func() {}); err != nil {
		t.Fatalf("Do after cancel: %v", err)
	}
	if ran.Load() {
		t.Error("canceled task ran")
	}
	if got := p.Stats().InFlight; got != 0 {
		t.Errorf("InFlight = %d, want 0", got)
	}
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
}

func (o *recordingObserver) ObserveHash(alg Algorithm, op string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, alg.String()+"/"+op)
}

func TestPoolHasher_HashAndVerify(t *testing.T) {
	p := NewPool(PoolConfig{Workers: 2})
	defer p.Close()
	obs := &recordingObserver{}
	h := NewPoolHasher(NewHasher(4), p, obs)
	ctx := context.Background()

	digest, err := h.Hash(ctx, "Aa123456", AlgorithmAdaptive)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	ok, err := h.Verify(ctx, "Aa123456", digest, AlgorithmAdaptive)
	if err != nil || !ok {
		t.Errorf("Verify correct password: ok=%v err=%v", ok, err)
	}
	ok, err = h.Verify(ctx, "wrong", digest, AlgorithmAdaptive)
	if err != nil || ok {
		t.Errorf("Verify wrong password: ok=%v err=%v", ok, err)
	}

	fast, err := h.Hash(ctx, "token", AlgorithmFast)
	if err != nil {
		t.Fatalf("Hash fast: %v", err)
	}
	if fast != HashToken("token") {
		t.Errorf("fast digest = %q, want sha256 hex", fast)
	}
	if ok, _ := h.Verify(ctx, "token", fast, AlgorithmFast); !ok {
		t.Error("Verify fast: want true")
	}

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if len(obs.calls) != 5 || obs.calls[0] != "adaptive/hash" || obs.calls[3] != "fast/hash" {
		t.Errorf("observer calls = %v", obs.calls)
	}
}

func TestPoolHasher_ClosedPool(t *testing.T) {
	p := NewPool(PoolConfig{Workers: 1})
	p.Close()
	h := NewPoolHasher(NewHasher(4), p, nil)
	if _, err := h.Hash(context.Background(), "x", AlgorithmAdaptive); !errors.Is(err, ErrServiceUnavailable) {
		t.Errorf("Hash on closed pool: want ErrServiceUnavailable, got %v", err)
	}
	if _, err := h.Verify(context.Background(), "x", "y", AlgorithmFast); !errors.Is(err, ErrServiceUnavailable) {
		t.Errorf("Verify on closed pool: want ErrServiceUnavailable, got %v", err)
	}
}

func TestSyncHasher(t *testing.T) {
	h := NewTestHasher()
	ctx := context.Background()
	d, err := h.Hash(ctx, "pw", AlgorithmAdaptive)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if ok, _ := h.Verify(ctx, "pw", d, AlgorithmAdaptive); !ok {
		t.Error("Verify: want true")
	}
	if _, err := h.Hash(ctx, "pw", Algorithm(9)); !errors.Is(err, ErrUnknownAlgorithm) {
		t.Errorf("unknown algorithm: got %v", err)
	}
	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := h.Hash(canceled, "pw", AlgorithmFast); !errors.Is(err, context.Canceled) {
		t.Errorf("canceled ctx: got %v", err)
	}
}

func TestSyncHasher_FastRejectsEmptyDigest(t *testing.T) {
	h := NewTestHasher()
	ctx := context.Background()
	d, err := h.Hash(ctx, "csrf", AlgorithmFast)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if ok, _ := h.Verify(ctx, "csrf", d, AlgorithmFast); !ok {
		t.Error("Verify: want true for matching digest")
	}
	if ok, err := h.Verify(ctx, "", "", AlgorithmFast); ok || err != nil {
		t.Errorf("Verify empty digest = %v, %v; want false, nil", ok, err)
	}
}
