// Package publisher fans audit events out to a Store, either inline or
// through a bounded buffer drained by a background goroutine.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	audit "tollgate/pkg/platform/audit"
)

// ErrBufferFull is returned when the async buffer cannot take another event.
var ErrBufferFull = errors.New("audit buffer full")

// Publisher implements audit.Emitter.
type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics

	buffer chan audit.Event
	done   chan struct{}
	once   sync.Once
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithAsyncBuffer switches to asynchronous mode with a buffer of size n.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.buffer = make(chan audit.Event, n)
		}
	}
}

// WithLogger sets the logger used for persistence failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) { p.metrics = m }
}

// NewPublisher creates a publisher. Without WithAsyncBuffer, Emit writes to
// the store before returning.
func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, logger: slog.Default(), done: make(chan struct{})}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		go p.drain()
	} else {
		close(p.done)
	}
	return p
}

// Emit records an event. Missing timestamps are filled in and the category
// is always derived from the action.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	event.Category = audit.AuditEvent(event.Action).Category()

	if p.buffer == nil {
		if err := p.store.Append(ctx, event); err != nil {
			p.metrics.IncFailed(event.Category)
			return err
		}
		p.metrics.IncEmitted(event.Category)
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case p.buffer <- event:
		p.metrics.IncEmitted(event.Category)
		return nil
	default:
		p.metrics.IncDropped(event.Category)
		return ErrBufferFull
	}
}

// List returns the events recorded for a license.
func (p *Publisher) List(ctx context.Context, licenseID string) ([]audit.Event, error) {
	return p.store.ListByLicense(ctx, licenseID)
}

// Close stops accepting events and waits for the buffer to drain.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.buffer != nil {
			close(p.buffer)
		}
	})
	<-p.done
}

func (p *Publisher) drain() {
	defer close(p.done)
	for event := range p.buffer {
		if err := p.store.Append(context.Background(), event); err != nil {
			p.metrics.IncFailed(event.Category)
			p.logger.Error("failed to persist audit event",
				"action", event.Action,
				"license_id", event.LicenseID,
				"error", err,
			)
		}
	}
}

// Metrics counts audit throughput by category.
type Metrics struct {
	Emitted *prometheus.CounterVec
	Dropped *prometheus.CounterVec
	Failed  *prometheus.CounterVec
}

// NewMetrics registers publisher metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Emitted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tollgate_audit_emitted_total",
			Help: "Audit events accepted by the publisher",
		}, []string{"category"}),
		Dropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tollgate_audit_dropped_total",
			Help: "Audit events dropped because the buffer was full",
		}, []string{"category"}),
		Failed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tollgate_audit_persist_failures_total",
			Help: "Audit events the store failed to persist",
		}, []string{"category"}),
	}
}

func (m *Metrics) IncEmitted(c audit.EventCategory) {
	if m == nil {
		return
	}
	m.Emitted.WithLabelValues(string(c)).Inc()
}

func (m *Metrics) IncDropped(c audit.EventCategory) {
	if m == nil {
		return
	}
	m.Dropped.WithLabelValues(string(c)).Inc()
}

func (m *Metrics) IncFailed(c audit.EventCategory) {
	if m == nil {
		return
	}
	m.Failed.WithLabelValues(string(c)).Inc()
}
