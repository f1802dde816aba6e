package license

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"tollgate/pkg/domain"
)

// Metrics counts issuance outcomes.
type Metrics struct {
	Issued   *prometheus.CounterVec
	Rejected prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Issued: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tollgate_licenses_issued_total",
			Help: "Licenses issued by publisher",
		}, []string{"publisher"}),
		Rejected: f.NewCounter(prometheus.CounterOpts{
			Name: "tollgate_license_requests_rejected_total",
			Help: "License requests rejected as invalid",
		}),
	}
}

func (m *Metrics) IncIssued(publisher domain.PublisherID) {
	if m == nil {
		return
	}
	m.Issued.WithLabelValues(string(publisher)).Inc()
}

func (m *Metrics) IncRejected() {
	if m == nil {
		return
	}
	m.Rejected.Inc()
}
