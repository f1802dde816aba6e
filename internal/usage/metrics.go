package usage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"tollgate/pkg/domain"
)

// Metrics counts intake and queue activity.
type Metrics struct {
	Accepted   *prometheus.CounterVec
	Rejected   *prometheus.CounterVec
	Dropped    prometheus.Counter
	QueueDepth prometheus.Gauge
	Flushes    *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Accepted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tollgate_usage_events_accepted_total",
			Help: "Usage events accepted by reporter",
		}, []string{"reporter"}),
		Rejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tollgate_usage_events_rejected_total",
			Help: "Usage events failing validation by reporter",
		}, []string{"reporter"}),
		Dropped: f.NewCounter(prometheus.CounterOpts{
			Name: "tollgate_usage_queue_dropped_total",
			Help: "Enforcer usage events dropped because the queue was full",
		}),
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "tollgate_usage_queue_depth",
			Help: "Enforcer usage events waiting to be flushed",
		}),
		Flushes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tollgate_usage_queue_flushes_total",
			Help: "Queue flushes by result",
		}, []string{"result"}),
	}
}

func (m *Metrics) submitted(r domain.Reporter, accepted, rejected int) {
	if m == nil {
		return
	}
	m.Accepted.WithLabelValues(string(r)).Add(float64(accepted))
	m.Rejected.WithLabelValues(string(r)).Add(float64(rejected))
}

func (m *Metrics) dropped() {
	if m == nil {
		return
	}
	m.Dropped.Inc()
}

func (m *Metrics) depth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

func (m *Metrics) flushed(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.Flushes.WithLabelValues(result).Inc()
}
