// Package metrics exposes Prometheus collectors for matching runs and the
// player directory. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "teammatch"

// Metrics groups all collectors of the service.
type Metrics struct {
	runsTotal         *prometheus.CounterVec
	runDuration       *prometheus.HistogramVec
	staleRuns         prometheus.Counter
	poolSize          prometheus.Histogram
	rejectedRecords   *prometheus.CounterVec
	directoryRequests *prometheus.CounterVec
	storeErrors       *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "matching",
			Name:      "runs_total",
			Help:      "Matching runs by final state and outcome message.",
		}, []string{"state", "outcome"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "matching",
			Name:      "run_duration_seconds",
			Help:      "Duration of matching runs.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"state"}),
		staleRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "matching",
			Name:      "stale_runs_total",
			Help:      "Runs whose result was discarded because a newer run was started.",
		}),
		poolSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "matching",
			Name:      "candidate_pool_size",
			Help:      "Number of normalized candidates per run.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		rejectedRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "directory",
			Name:      "rejected_records_total",
			Help:      "Directory records dropped during normalization, by field.",
		}, []string{"field"}),
		directoryRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "directory",
			Name:      "requests_total",
			Help:      "Directory list requests by outcome.",
		}, []string{"outcome"}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "errors_total",
			Help:      "Key-value store failures by operation.",
		}, []string{"op"}),
	}

	reg.MustRegister(
		m.runsTotal,
		m.runDuration,
		m.staleRuns,
		m.poolSize,
		m.rejectedRecords,
		m.directoryRequests,
		m.storeErrors,
	)
	return m
}

// RunFinished records a completed run.
func (m *Metrics) RunFinished(state, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(state, outcome).Inc()
	m.runDuration.WithLabelValues(state).Observe(d.Seconds())
}

// RunStale records a discarded run.
func (m *Metrics) RunStale() {
	if m == nil {
		return
	}
	m.staleRuns.Inc()
}

// PoolSize records the size of a normalized candidate pool.
func (m *Metrics) PoolSize(n int) {
	if m == nil {
		return
	}
	m.poolSize.Observe(float64(n))
}

// RecordRejected counts a dropped directory record.
func (m *Metrics) RecordRejected(field string) {
	if m == nil {
		return
	}
	m.rejectedRecords.WithLabelValues(field).Inc()
}

// DirectoryRequest counts a directory call outcome.
func (m *Metrics) DirectoryRequest(outcome string) {
	if m == nil {
		return
	}
	m.directoryRequests.WithLabelValues(outcome).Inc()
}

// StoreError counts a failed store operation.
func (m *Metrics) StoreError(op string) {
	if m == nil {
		return
	}
	m.storeErrors.WithLabelValues(op).Inc()
}
