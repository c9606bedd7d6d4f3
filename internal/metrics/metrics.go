package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the capture bridge.
type Metrics struct {
	CapturesTotal   *prometheus.CounterVec
	CaptureDuration *prometheus.HistogramVec
	LedgerPurged    prometheus.Counter
	SourceErrors    *prometheus.CounterVec
}

// New creates and registers the bridge metrics on reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
//
// Metrics:
//   - vocap_captures_total{outcome,category} - Capture results
//   - vocap_capture_duration_seconds{outcome} - Time spent per capture
//   - vocap_ledger_purged_total - Expired ledger entries removed
//   - vocap_source_errors_total{source} - Message source read failures
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CapturesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vocap_captures_total",
				Help: "Total number of capture results by outcome and category",
			},
			[]string{"outcome", "category"},
		),

		CaptureDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vocap_capture_duration_seconds",
				Help:    "Duration of a single capture in seconds",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
			},
			[]string{"outcome"},
		),

		LedgerPurged: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "vocap_ledger_purged_total",
				Help: "Total number of expired dedup ledger entries removed",
			},
		),

		SourceErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vocap_source_errors_total",
				Help: "Total number of message source read failures",
			},
			[]string{"source"},
		),
	}
}

// ObserveCapture records one capture result.
func (m *Metrics) ObserveCapture(outcome, category string, d time.Duration) {
	if category == "" {
		category = "none"
	}
	m.CapturesTotal.WithLabelValues(outcome, category).Inc()
	m.CaptureDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// RecordPurge adds removed ledger entries.
func (m *Metrics) RecordPurge(n int64) {
	m.LedgerPurged.Add(float64(n))
}

// RecordSourceError counts a read failure of the named source.
func (m *Metrics) RecordSourceError(source string) {
	m.SourceErrors.WithLabelValues(source).Inc()
}
