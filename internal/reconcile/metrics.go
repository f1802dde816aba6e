package reconcile

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts reconciliation outcomes.
type Metrics struct {
	Runs          *prometheus.CounterVec
	Confirmed     prometheus.Counter
	Discrepancies *prometheus.CounterVec
	Overspends    prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tollgate_reconcile_runs_total",
			Help: "Reconciliation runs by result",
		}, []string{"result"}),
		Confirmed: f.NewCounter(prometheus.CounterOpts{
			Name: "tollgate_reconcile_confirmed_total",
			Help: "Matched event pairs confirmed",
		}),
		Discrepancies: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tollgate_reconcile_discrepancies_total",
			Help: "Discrepancies by cause",
		}, []string{"cause"}),
		Overspends: f.NewCounter(prometheus.CounterOpts{
			Name: "tollgate_reconcile_overspends_total",
			Help: "Licenses found spent beyond budget and tolerance",
		}),
	}
}

func (m *Metrics) run(result string) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(result).Inc()
}

func (m *Metrics) observe(r *Report) {
	if m == nil {
		return
	}
	m.Confirmed.Add(float64(r.Confirmed))
	for _, d := range r.Discrepancies {
		m.Discrepancies.WithLabelValues(string(d.Cause)).Inc()
	}
	m.Overspends.Add(float64(len(r.Overspends)))
}
