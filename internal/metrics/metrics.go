// Package metrics exposes Prometheus collectors for the engine and API.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	IntakeOps    *prometheus.CounterVec
	BucketWrites *prometheus.CounterVec
	OpDuration   *prometheus.HistogramVec
	LockWait     prometheus.Histogram
	Published    *prometheus.CounterVec
}

// New registers all collectors, plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		IntakeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "halflife",
			Name:      "intake_operations_total",
			Help:      "Intake mutations by operation and result.",
		}, []string{"op", "result"}),
		BucketWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "halflife",
			Name:      "ledger_bucket_writes_total",
			Help:      "Residual bucket writes by direction (apply, retract).",
		}, []string{"direction"}),
		OpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "halflife",
			Name:      "intake_operation_seconds",
			Help:      "Wall time of intake mutations including ledger and rollup writes.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		LockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "halflife",
			Name:      "user_lock_wait_seconds",
			Help:      "Time spent waiting for the per-user write lock.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}),
		Published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "halflife",
			Name:      "events_published_total",
			Help:      "Change events handed to the publisher, by result.",
		}, []string{"result"}),
	}
	m.Registry.MustRegister(
		m.IntakeOps,
		m.BucketWrites,
		m.OpDuration,
		m.LockWait,
		m.Published,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
