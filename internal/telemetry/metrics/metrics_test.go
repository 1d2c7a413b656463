package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/dsqrwym/Maian-sub000/internal/security"
)

func TestObserveAuth(t *testing.T) {
	m := New()
	m.ObserveAuth("login", ResultOK)
	m.ObserveAuth("login", ResultOK)
	m.ObserveAuth("login", ResultError)

	if got := counterValue(t, m, "login", ResultOK); got != 2 {
		t.Errorf("login ok = %v, want 2", got)
	}
	if got := counterValue(t, m, "login", ResultError); got != 1 {
		t.Errorf("login error = %v, want 1", got)
	}
}

func counterValue(t *testing.T, m *Metrics, op, result string) float64 {
	t.Helper()
	var out dto.Metric
	if err := m.authOps.WithLabelValues(op, result).Write(&out); err != nil {
		t.Fatalf("write counter: %v", err)
	}
	return out.GetCounter().GetValue()
}

func TestObserveHash(t *testing.T) {
	m := New()
	m.ObserveHash(security.AlgorithmAdaptive, "hash", 10*time.Millisecond)
	m.ObserveHash(security.AlgorithmFast, "verify", time.Microsecond)

	var out dto.Metric
	if err := m.hashOps.WithLabelValues("adaptive").Write(&out); err != nil {
		t.Fatal(err)
	}
	if got := out.GetCounter().GetValue(); got != 1 {
		t.Errorf("adaptive = %v, want 1", got)
	}
	if err := m.hashOps.WithLabelValues("fast").Write(&out); err != nil {
		t.Fatal(err)
	}
	if got := out.GetCounter().GetValue(); got != 1 {
		t.Errorf("fast = %v, want 1", got)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveAuth("login", ResultOK)
	m.ObserveHash(security.AlgorithmFast, "hash", time.Millisecond)
	m.RegisterPool(nil)
}

func TestPoolGaugesAndHandler(t *testing.T) {
	m := New()
	pool := security.NewPool(security.PoolConfig{Workers: 1, TasksPerWorker: 1})
	defer pool.Close()
	m.RegisterPool(pool)

	hasher := security.NewPoolHasher(security.NewHasher(4), pool, m)
	if _, err := hasher.Hash(context.Background(), "secret", security.AlgorithmFast); err != nil {
		t.Fatalf("Hash: %v", err)
	}

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	for _, name := range []string{"hasher_pool_workers", "hasher_pool_max_workers 1", "hasher_pool_queued", `hasher_pool_tasks_total{algorithm="fast"} 1`, "go_goroutines"} {
		if !strings.Contains(string(body), name) {
			t.Errorf("exposition missing %q", name)
		}
	}
}
