package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Digest outcomes used as the "outcome" label.
const (
	OutcomeSettled  = "settled"
	OutcomeAborted  = "aborted"
	OutcomeRejected = "rejected"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	// Digests counts digests by outcome (settled, aborted, rejected).
	Digests *prometheus.CounterVec

	// Iterations observes the number of walks per digest.
	Iterations prometheus.Histogram

	// Duration observes digest wall time in seconds.
	Duration prometheus.Histogram

	// ListenerCalls counts listener invocations.
	ListenerCalls prometheus.Counter

	// ListenerErrors counts recovered failures by kind (error, panic, getter).
	ListenerErrors *prometheus.CounterVec

	// Watchers tracks the number of registered watchers.
	Watchers prometheus.Gauge
}

// NewMetrics creates the engine collectors and registers them with reg.
// A nil reg leaves them unregistered, which is what tests and embedders
// without a metrics endpoint want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Digests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dirtycheck_digests_total",
			Help: "Total digests by outcome",
		}, []string{"outcome"}),

		Iterations: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "dirtycheck_digest_iterations",
			Help:    "Walks performed per digest",
			Buckets: []float64{1, 2, 3, 5, 8, 11},
		}),

		Duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "dirtycheck_digest_duration_seconds",
			Help:    "Digest duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10), // 10us to ~2.6s
		}),

		ListenerCalls: f.NewCounter(prometheus.CounterOpts{
			Name: "dirtycheck_listener_calls_total",
			Help: "Total listener invocations",
		}),

		ListenerErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dirtycheck_listener_errors_total",
			Help: "Total recovered listener and getter failures by kind",
		}, []string{"kind"}),

		Watchers: f.NewGauge(prometheus.GaugeOpts{
			Name: "dirtycheck_watchers",
			Help: "Registered watchers",
		}),
	}
}
