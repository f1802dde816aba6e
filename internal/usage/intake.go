package usage

import (
	"context"
	"errors"
	"log/slog"

	"tollgate/pkg/domain"
	dErrors "tollgate/pkg/domain-errors"
	"tollgate/pkg/platform/validation"
	"tollgate/pkg/requestcontext"
)

// MaxBatchSize bounds one submission.
const MaxBatchSize = 1000

// EventError reports why one event of a batch was rejected.
type EventError struct {
	Index   int    `json:"index"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// Result is the outcome of a batch submission.
type Result struct {
	Accepted int
	Errors   []EventError
}

// Intake validates batches and hands accepted events to a sink.
type Intake struct {
	sink    Sink
	logger  *slog.Logger
	metrics *Metrics
}

// Option configures an Intake.
type Option func(*Intake)

func WithLogger(logger *slog.Logger) Option {
	return func(i *Intake) { i.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(i *Intake) { i.metrics = m }
}

func NewIntake(sink Sink, opts ...Option) *Intake {
	i := &Intake{sink: sink, logger: slog.Default()}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Submit accepts every valid event of the batch and reports the rest. A
// sink failure rejects the whole batch; resubmitting is safe.
func (i *Intake) Submit(ctx context.Context, reporter string, reports []Report) (*Result, error) {
	party, err := domain.ParseReporter(reporter)
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "batch is empty")
	}
	if len(reports) > MaxBatchSize {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "batch exceeds %d events", MaxBatchSize)
	}

	res := &Result{}
	events := make([]Event, 0, len(reports))
	for idx, r := range reports {
		if fields := validation.Fields(r); len(fields) > 0 {
			for _, f := range fields {
				res.Errors = append(res.Errors, EventError{Index: idx, Field: f.Field, Message: f.Message})
			}
			continue
		}
		e, err := r.ToEvent(party)
		if err != nil {
			res.Errors = append(res.Errors, EventError{Index: idx, Message: messageOf(err)})
			continue
		}
		events = append(events, e)
	}

	if len(events) > 0 {
		if err := i.sink.Append(ctx, events); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "usage events could not be recorded")
		}
	}
	res.Accepted = len(events)
	i.metrics.submitted(party, res.Accepted, len(reports)-res.Accepted)
	i.logger.InfoContext(ctx, "usage batch accepted",
		"request_id", requestcontext.RequestID(ctx),
		"reporter", string(party),
		"accepted", res.Accepted,
		"rejected", len(res.Errors),
	)
	return res, nil
}

func messageOf(err error) string {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}
