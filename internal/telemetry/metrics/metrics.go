// Package metrics exposes Prometheus collectors for auth operations and the
// credential hashing pool.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dsqrwym/Maian-sub000/internal/security"
)

const namespace = "auth"

// Result labels for ObserveAuth.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics holds the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	reg      *prometheus.Registry
	authOps  *prometheus.CounterVec
	hashOps  *prometheus.CounterVec
	hashTime *prometheus.HistogramVec
}

// New returns Metrics registered on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := &Metrics{
		reg: reg,
		authOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_operations_total",
			Help: "Auth operations by operation and result.",
		}, []string{"op", "result"}),
		hashOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hasher_pool_tasks_total",
			Help: "Completed hasher calls by algorithm.",
		}, []string{"algorithm"}),
		hashTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "hash_duration_seconds",
			Help:      "Latency of hash and verify calls including pool wait.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .25, .5, 1, 2.5},
		}, []string{"algorithm", "op"}),
	}
	reg.MustRegister(m.authOps, m.hashOps, m.hashTime)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// ObserveAuth counts one auth operation outcome.
func (m *Metrics) ObserveAuth(op, result string) {
	if m == nil {
		return
	}
	m.authOps.WithLabelValues(op, result).Inc()
}

// ObserveHash implements security.HashObserver.
func (m *Metrics) ObserveHash(alg security.Algorithm, op string, d time.Duration) {
	if m == nil {
		return
	}
	m.hashOps.WithLabelValues(alg.String()).Inc()
	m.hashTime.WithLabelValues(alg.String(), op).Observe(d.Seconds())
}

// RegisterPool exports live worker and in-flight gauges for p, plus its
// configured worker ceiling.
func (m *Metrics) RegisterPool(p *security.Pool) {
	if m == nil || p == nil {
		return
	}
	cfg := p.Config()
	m.reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "hasher_pool_max_workers",
			Help: "Configured upper bound on hashing workers.",
		}, func() float64 { return float64(cfg.Workers) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "hasher_pool_workers",
			Help: "Live hashing workers.",
		}, func() float64 { return float64(p.Stats().Workers) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "hasher_pool_queued",
			Help: "Hashing tasks admitted and not yet finished.",
		}, func() float64 { return float64(p.Stats().InFlight) }),
	)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
