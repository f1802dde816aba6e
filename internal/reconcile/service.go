package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"tollgate/internal/usage"
	"tollgate/pkg/domain"
	dErrors "tollgate/pkg/domain-errors"
	"tollgate/pkg/platform/audit"
	"tollgate/pkg/requestcontext"
)

// EventSource serves one party's events for a window.
type EventSource interface {
	List(ctx context.Context, q usage.Query) ([]usage.Event, error)
}

// Request selects the events to reconcile. Budgets enable the overspend
// check for the licenses they name.
type Request struct {
	From      time.Time
	To        time.Time
	LicenseID *domain.LicenseID
	Budgets   map[domain.LicenseID]int64
}

// Service loads both parties' batches from the usage store and reconciles them.
type Service struct {
	source    EventSource
	lag       time.Duration
	tolerance int64
	auditor   audit.Emitter
	logger    *slog.Logger
	metrics   *Metrics
	tracer    trace.Tracer
}

type Option func(*Service)

func WithLagWindow(d time.Duration) Option {
	return func(s *Service) { s.lag = d }
}

// WithOverspendTolerance sets how far confirmed spend may exceed a budget
// before it is reported.
func WithOverspendTolerance(n int64) Option {
	return func(s *Service) { s.tolerance = n }
}

func WithAuditor(a audit.Emitter) Option {
	return func(s *Service) { s.auditor = a }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(source EventSource, opts ...Option) *Service {
	s := &Service{
		source: source,
		lag:    15 * time.Minute,
		logger: slog.Default(),
		tracer: otel.Tracer("tollgate/reconcile"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run reconciles the window as of the request time. Rerunning the same
// window over the same stored events yields the same report.
func (s *Service) Run(ctx context.Context, req Request) (*Report, error) {
	ctx, span := s.tracer.Start(ctx, "reconcile.Run")
	defer span.End()

	if !req.To.IsZero() && !req.From.Before(req.To) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "from must be before to")
	}
	asOf := requestcontext.Now(ctx)

	// Widen the load so counterparts resolved just outside the window pair up.
	load := func(reporter domain.Reporter) usage.Query {
		q := usage.Query{Reporter: reporter, LicenseID: req.LicenseID}
		if !req.From.IsZero() {
			q.From = req.From.Add(-s.lag)
		}
		if !req.To.IsZero() {
			q.To = req.To.Add(s.lag)
		}
		return q
	}

	var enforcer, consumer []usage.Event
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		enforcer, err = s.source.List(gctx, load(domain.ReporterEnforcer))
		return err
	})
	g.Go(func() error {
		var err error
		consumer, err = s.source.List(gctx, load(domain.ReporterConsumer))
		return err
	})
	if err := g.Wait(); err != nil {
		s.metrics.run("error")
		span.SetStatus(codes.Error, err.Error())
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load usage events")
	}

	rep := Reconcile(Input{
		Enforcer:  enforcer,
		Consumer:  consumer,
		AsOf:      asOf,
		LagWindow: s.lag,
		From:      req.From,
		To:        req.To,
		Budgets:   req.Budgets,
		Tolerance: s.tolerance,
	})
	span.SetAttributes(
		attribute.Int("reconcile.enforcer_events", len(enforcer)),
		attribute.Int("reconcile.consumer_events", len(consumer)),
		attribute.Int("reconcile.discrepancies", len(rep.Discrepancies)),
	)
	s.metrics.run("ok")
	s.metrics.observe(&rep)
	s.publish(ctx, &rep)

	s.logger.InfoContext(ctx, "reconciliation complete",
		"request_id", requestcontext.RequestID(ctx),
		"confirmed", rep.Confirmed,
		"pending", len(rep.Pending),
		"discrepancies", len(rep.Discrepancies),
		"overspends", len(rep.Overspends),
	)
	return &rep, nil
}

func (s *Service) publish(ctx context.Context, rep *Report) {
	if s.auditor == nil {
		return
	}
	emit := func(ev audit.Event) {
		ev.Timestamp = rep.AsOf
		ev.RequestID = requestcontext.RequestID(ctx)
		if err := s.auditor.Emit(ctx, ev); err != nil {
			s.logger.WarnContext(ctx, "failed to emit reconciliation audit event", "action", ev.Action, "error", err)
		}
	}
	for _, d := range rep.Discrepancies {
		emit(audit.Event{
			Action:    string(audit.EventDiscrepancyDetected),
			LicenseID: d.LicenseID.String(),
			Reason:    string(d.Cause),
			Detail:    fmt.Sprintf("event %s: %s", d.EventID, d.Detail),
		})
	}
	for _, o := range rep.Overspends {
		emit(audit.Event{
			Action:    string(audit.EventOverspendDetected),
			LicenseID: o.LicenseID.String(),
			Detail:    fmt.Sprintf("spent %d of budget %d", o.Spent, o.Budget),
		})
	}
}
