package manifest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts manifest signing outcomes.
type Metrics struct {
	Signed   prometheus.Counter
	Failures *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Signed: f.NewCounter(prometheus.CounterOpts{
			Name: "tollgate_manifests_signed_total",
			Help: "Forensic manifests signed",
		}),
		Failures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tollgate_manifest_failures_total",
			Help: "Manifest signing failures by reason",
		}, []string{"reason"}),
	}
}

func (m *Metrics) signed() {
	if m == nil {
		return
	}
	m.Signed.Inc()
}

func (m *Metrics) failed(reason string) {
	if m == nil {
		return
	}
	m.Failures.WithLabelValues(reason).Inc()
}
