package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the enforcement engine.
type Metrics struct {
	// Decisions by outcome ("allow" or "deny") and reason
	Decisions *prometheus.CounterVec

	// Decide latency; the hot path must stay local
	DecideLatency prometheus.Histogram

	// Completions by outcome ("delivered", "failed", "abandoned")
	Completions *prometheus.CounterVec

	// Requests allowed while key or pricing state was stale, by failover mode
	Degraded *prometheus.CounterVec

	// Manifests that could not be signed; delivery proceeds regardless
	ManifestFailures prometheus.Counter

	// Usage events dropped because the queue was full
	UsageDropped prometheus.Counter
}

// New registers enforcement metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tollgate_enforcement_decisions_total",
			Help: "Enforcement decisions by outcome and reason",
		}, []string{"outcome", "reason"}),

		DecideLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "tollgate_enforcement_decide_duration_seconds",
			Help:    "Duration of enforcement decisions",
			Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05},
		}),

		Completions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tollgate_enforcement_completions_total",
			Help: "Reservation completions by outcome",
		}, []string{"outcome"}),

		Degraded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tollgate_enforcement_degraded_total",
			Help: "Requests decided under stale key or pricing state, by failover mode and result",
		}, []string{"mode", "result"}),

		ManifestFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "tollgate_enforcement_manifest_failures_total",
			Help: "Forensic manifests that could not be produced",
		}),

		UsageDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "tollgate_enforcement_usage_dropped_total",
			Help: "Enforcer usage events dropped at enqueue",
		}),
	}
}

func (m *Metrics) IncrementDecision(outcome, reason string) {
	if m != nil {
		m.Decisions.WithLabelValues(outcome, reason).Inc()
	}
}

func (m *Metrics) ObserveDecideLatency(d time.Duration) {
	if m != nil {
		m.DecideLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementCompletion(outcome string) {
	if m != nil {
		m.Completions.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncrementDegraded(mode, result string) {
	if m != nil {
		m.Degraded.WithLabelValues(mode, result).Inc()
	}
}

func (m *Metrics) IncrementManifestFailure() {
	if m != nil {
		m.ManifestFailures.Inc()
	}
}

func (m *Metrics) IncrementUsageDropped() {
	if m != nil {
		m.UsageDropped.Inc()
	}
}
