package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts ledger transitions.
type Metrics struct {
	Reservations *prometheus.CounterVec
	Settled      *prometheus.CounterVec
	Committed    prometheus.Counter
	Accounts     prometheus.Gauge
}

// NewMetrics registers ledger metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Reservations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tollgate_ledger_reservations_total",
			Help: "Reserve attempts by outcome",
		}, []string{"outcome"}),
		Settled: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tollgate_ledger_settled_total",
			Help: "Reservations leaving the reserved state, by final state and cause",
		}, []string{"state", "cause"}),
		Committed: f.NewCounter(prometheus.CounterOpts{
			Name: "tollgate_ledger_committed_amount_total",
			Help: "Committed spend in the smallest currency unit",
		}),
		Accounts: f.NewGauge(prometheus.GaugeOpts{
			Name: "tollgate_ledger_accounts",
			Help: "Licenses currently tracked on this node",
		}),
	}
}

func (m *Metrics) reserved(outcome string) {
	if m == nil {
		return
	}
	m.Reservations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) settled(state State, cause string, amount int64) {
	if m == nil {
		return
	}
	m.Settled.WithLabelValues(string(state), cause).Inc()
	if state == StateCommitted {
		m.Committed.Add(float64(amount))
	}
}

func (m *Metrics) accounts(delta int) {
	if m == nil {
		return
	}
	m.Accounts.Add(float64(delta))
}
