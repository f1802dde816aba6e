package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"tollgate/internal/usage"
	"tollgate/pkg/domain"
	"tollgate/pkg/platform/validation"
)

// ConsumeClient is the subset of *kgo.Client the consumer uses.
type ConsumeClient interface {
	PollFetches(ctx context.Context) kgo.Fetches
	CommitUncommittedOffsets(ctx context.Context) error
}

const (
	defaultMinBackoff = 200 * time.Millisecond
	defaultMaxBackoff = 30 * time.Second
)

// Consumer moves events from the topic into a sink. Offsets are committed
// only after the sink accepted the batch, so delivery is at least once and
// the sink's idempotency absorbs redelivery.
type Consumer struct {
	client     ConsumeClient
	sink       usage.Sink
	logger     *slog.Logger
	minBackoff time.Duration
	maxBackoff time.Duration
}

type ConsumerOption func(*Consumer)

// WithBackoff bounds the wait between attempts to hand a batch to the sink.
func WithBackoff(minWait, maxWait time.Duration) ConsumerOption {
	return func(c *Consumer) {
		if minWait > 0 {
			c.minBackoff = minWait
		}
		if maxWait >= c.minBackoff {
			c.maxBackoff = maxWait
		}
	}
}

func NewConsumer(client ConsumeClient, sink usage.Sink, logger *slog.Logger, opts ...ConsumerOption) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Consumer{
		client:     client,
		sink:       sink,
		logger:     logger,
		minBackoff: defaultMinBackoff,
		maxBackoff: defaultMaxBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run polls until ctx is cancelled. A sink failure never ends the loop: the
// batch is held and retried with backoff, and its offsets stay uncommitted.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if ctx.Err() != nil {
			return nil
		}
		c.handle(ctx, fetches)
	}
}

func (c *Consumer) handle(ctx context.Context, fetches kgo.Fetches) {
	fetches.EachError(func(topic string, partition int32, err error) {
		if !errors.Is(err, context.Canceled) {
			c.logger.WarnContext(ctx, "usage fetch error", "topic", topic, "partition", partition, "error", err)
		}
	})

	var events []usage.Event
	fetches.EachRecord(func(r *kgo.Record) {
		e, err := decode(r)
		if err != nil {
			c.logger.WarnContext(ctx, "skipping malformed usage record",
				"partition", r.Partition, "offset", r.Offset, "error", err)
			return
		}
		events = append(events, e)
	})
	if len(events) > 0 && !c.deliver(ctx, events) {
		return
	}
	if fetches.NumRecords() == 0 {
		return
	}
	if err := c.client.CommitUncommittedOffsets(ctx); err != nil {
		c.logger.WarnContext(ctx, "usage offset commit failed", "error", err)
	}
}

// deliver appends events until the sink accepts them. It returns false only
// when ctx ends first, leaving the offsets for the next group member.
func (c *Consumer) deliver(ctx context.Context, events []usage.Event) bool {
	wait := c.minBackoff
	for attempt := 1; ; attempt++ {
		err := c.sink.Append(ctx, events)
		if err == nil {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		c.logger.WarnContext(ctx, "usage sink append failed; retrying",
			"events", len(events),
			"attempt", attempt,
			"backoff", wait,
			"error", err,
		)
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return false
		case <-t.C:
		}
		wait = min(wait*2, c.maxBackoff)
	}
}

func decode(r *kgo.Record) (usage.Event, error) {
	var rep usage.Report
	if err := json.Unmarshal(r.Value, &rep); err != nil {
		return usage.Event{}, err
	}
	reporter := rep.Reporter
	for _, h := range r.Headers {
		if h.Key == headerReporter && reporter == "" {
			reporter = string(h.Value)
		}
	}
	party, err := domain.ParseReporter(reporter)
	if err != nil {
		return usage.Event{}, err
	}
	if err := validation.Struct(rep); err != nil {
		return usage.Event{}, err
	}
	return rep.ToEvent(party)
}
