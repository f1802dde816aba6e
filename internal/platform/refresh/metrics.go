package refresh

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks background refresh health per source.
type Metrics struct {
	Failures    *prometheus.CounterVec
	Skipped     *prometheus.CounterVec
	Duration    *prometheus.HistogramVec
	CircuitOpen *prometheus.GaugeVec
	LastSuccess *prometheus.GaugeVec
}

// NewMetrics registers refresh metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Failures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tollgate_refresh_failures_total",
			Help: "Failed background refreshes by source",
		}, []string{"source"}),
		Skipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tollgate_refresh_skipped_total",
			Help: "Refreshes skipped because the circuit breaker was open",
		}, []string{"source"}),
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tollgate_refresh_duration_seconds",
			Help:    "Background refresh latency by source",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		CircuitOpen: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tollgate_refresh_circuit_open",
			Help: "Circuit breaker state per source (0=closed, 1=open)",
		}, []string{"source"}),
		LastSuccess: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tollgate_refresh_last_success_timestamp_seconds",
			Help: "Unix time of the last successful refresh per source",
		}, []string{"source"}),
	}
}

func (m *Metrics) IncFailure(source string) {
	if m == nil {
		return
	}
	m.Failures.WithLabelValues(source).Inc()
}

func (m *Metrics) IncSkipped(source string) {
	if m == nil {
		return
	}
	m.Skipped.WithLabelValues(source).Inc()
}

func (m *Metrics) ObserveDuration(source string, d time.Duration) {
	if m == nil {
		return
	}
	m.Duration.WithLabelValues(source).Observe(d.Seconds())
}

func (m *Metrics) SetOpen(source string, open bool) {
	if m == nil {
		return
	}
	v := 0.0
	if open {
		v = 1
	}
	m.CircuitOpen.WithLabelValues(source).Set(v)
}

func (m *Metrics) SetLastSuccess(source string, t time.Time) {
	if m == nil {
		return
	}
	m.LastSuccess.WithLabelValues(source).Set(float64(t.Unix()))
}
