package usage

import (
	"context"
	"log/slog"
	"time"
)

const (
	defaultQueueSize     = 4096
	defaultBatchSize     = 256
	defaultFlushInterval = time.Second
)

// Queue buffers enforcer events off the request path and flushes them to a
// sink in batches. Enqueue never blocks; a full queue drops the event and
// reconciliation reports it as missing.
type Queue struct {
	sink     Sink
	events   chan Event
	batch    int
	interval time.Duration
	logger   *slog.Logger
	metrics  *Metrics
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

func WithQueueSize(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.events = make(chan Event, n)
		}
	}
}

func WithBatch(size int, interval time.Duration) QueueOption {
	return func(q *Queue) {
		if size > 0 {
			q.batch = size
		}
		if interval > 0 {
			q.interval = interval
		}
	}
}

func WithQueueLogger(logger *slog.Logger) QueueOption {
	return func(q *Queue) { q.logger = logger }
}

func WithQueueMetrics(m *Metrics) QueueOption {
	return func(q *Queue) { q.metrics = m }
}

func NewQueue(sink Sink, opts ...QueueOption) *Queue {
	q := &Queue{
		sink:     sink,
		events:   make(chan Event, defaultQueueSize),
		batch:    defaultBatchSize,
		interval: defaultFlushInterval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue adds e without blocking. Returns false when the queue is full.
func (q *Queue) Enqueue(e Event) bool {
	select {
	case q.events <- e:
		q.metrics.depth(len(q.events))
		return true
	default:
		q.metrics.dropped()
		return false
	}
}

// Run flushes until ctx is cancelled, then drains what is buffered.
func (q *Queue) Run(ctx context.Context) error {
	ticker := time.NewTicker(q.interval)
	defer ticker.Stop()
	pending := make([]Event, 0, q.batch)

	for {
		select {
		case e := <-q.events:
			pending = append(pending, e)
			if len(pending) >= q.batch {
				pending = q.flush(ctx, pending)
			}
		case <-ticker.C:
			pending = q.flush(ctx, pending)
		case <-ctx.Done():
			for {
				select {
				case e := <-q.events:
					pending = append(pending, e)
				default:
					q.flush(context.WithoutCancel(ctx), pending)
					return nil
				}
			}
		}
	}
}

// flush hands pending to the sink. A failed batch is kept for the next
// attempt unless the queue is already backed up.
func (q *Queue) flush(ctx context.Context, pending []Event) []Event {
	if len(pending) == 0 {
		return pending
	}
	q.metrics.depth(len(q.events))
	if err := q.sink.Append(ctx, pending); err != nil {
		q.metrics.flushed(false)
		q.logger.WarnContext(ctx, "usage flush failed", "events", len(pending), "error", err)
		if len(pending) < 4*q.batch {
			return pending
		}
		q.logger.ErrorContext(ctx, "dropping usage events after repeated flush failures", "events", len(pending))
		return pending[:0]
	}
	q.metrics.flushed(true)
	return pending[:0]
}
