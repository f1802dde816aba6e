package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"tollgate/internal/platform/logger"
	"tollgate/internal/usage"
	"tollgate/internal/usage/store"
	"tollgate/pkg/domain"
)

type fakeProducer struct {
	records []*kgo.Record
	err     error
}

func (f *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	f.records = append(f.records, rs...)
	out := make(kgo.ProduceResults, len(rs))
	for i, r := range rs {
		out[i] = kgo.ProduceResult{Record: r, Err: f.err}
	}
	return out
}

type fakeConsumer struct {
	fetches   []kgo.Fetches
	commits   int
	commitErr error
}

func (f *fakeConsumer) PollFetches(ctx context.Context) kgo.Fetches {
	if len(f.fetches) == 0 {
		<-ctx.Done()
		return nil
	}
	next := f.fetches[0]
	f.fetches = f.fetches[1:]
	return next
}

func (f *fakeConsumer) CommitUncommittedOffsets(context.Context) error {
	f.commits++
	return f.commitErr
}

func sampleEvent(t *testing.T) usage.Event {
	t.Helper()
	lic, err := domain.NewLicenseID()
	require.NoError(t, err)
	ev, err := domain.NewReservationID()
	require.NoError(t, err)
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	return usage.Event{
		Reporter: domain.ReporterEnforcer, LicenseID: lic, EventID: ev, Intent: domain.IntentView,
		Success: true, BudgetBefore: 100, BudgetAfter: 70, Cost: 30, ResourcePath: "/article/1",
		RequestedAt: at, ResolvedAt: at.Add(20 * time.Millisecond),
	}
}

func fetchesOf(records ...*kgo.Record) kgo.Fetches {
	return kgo.Fetches{{Topics: []kgo.FetchTopic{{
		Topic:      "tollgate.usage.v1",
		Partitions: []kgo.FetchPartition{{Partition: 0, Records: records}},
	}}}}
}

func TestProducerConsumerRoundTrip(t *testing.T) {
	e := sampleEvent(t)
	prod := &fakeProducer{}
	require.NoError(t, NewProducer(prod, "tollgate.usage.v1").Append(context.Background(), []usage.Event{e}))
	require.Len(t, prod.records, 1)
	assert.Equal(t, e.LicenseID.String(), string(prod.records[0].Key))

	garbage := &kgo.Record{Value: []byte("{")}
	cons := &fakeConsumer{fetches: []kgo.Fetches{fetchesOf(prod.records[0], garbage, prod.records[0])}}
	st := store.NewInMemory()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.NoError(t, NewConsumer(cons, st, logger.Discard()).Run(ctx))

	got, err := st.List(context.Background(), usage.Query{Reporter: domain.ReporterEnforcer})
	require.NoError(t, err)
	require.Len(t, got, 1, "redelivery collapses")
	assert.Equal(t, e, got[0])
	assert.Equal(t, 1, cons.commits)
}

func TestProducerError(t *testing.T) {
	prod := &fakeProducer{err: errors.New("broker down")}
	err := NewProducer(prod, "").Append(context.Background(), []usage.Event{sampleEvent(t)})
	assert.ErrorContains(t, err, "broker down")
}

type flakySink struct {
	failures int
	attempts int
	inner    usage.Sink
}

func (f *flakySink) Append(ctx context.Context, events []usage.Event) error {
	f.attempts++
	if f.attempts <= f.failures {
		return errors.New("db blip")
	}
	return f.inner.Append(ctx, events)
}

func TestConsumerRetriesSinkFailure(t *testing.T) {
	e := sampleEvent(t)
	value, err := json.Marshal(usage.ReportFrom(e))
	require.NoError(t, err)
	cons := &fakeConsumer{fetches: []kgo.Fetches{fetchesOf(&kgo.Record{Value: value})}}
	st := store.NewInMemory()
	sink := &flakySink{failures: 2, inner: st}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	err = NewConsumer(cons, sink, logger.Discard(), WithBackoff(time.Millisecond, 5*time.Millisecond)).Run(ctx)
	require.NoError(t, err, "a failing sink must not stop the consumer")

	assert.Equal(t, 3, sink.attempts)
	assert.Equal(t, 1, cons.commits)
	got, err := st.List(context.Background(), usage.Query{Reporter: domain.ReporterEnforcer})
	require.NoError(t, err)
	assert.Equal(t, []usage.Event{e}, got)
}

func TestConsumerDoesNotCommitOnSinkFailure(t *testing.T) {
	value, err := json.Marshal(usage.ReportFrom(sampleEvent(t)))
	require.NoError(t, err)
	cons := &fakeConsumer{fetches: []kgo.Fetches{fetchesOf(&kgo.Record{Value: value})}}
	sink := &flakySink{failures: 1 << 30}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err = NewConsumer(cons, sink, logger.Discard(), WithBackoff(time.Millisecond, 2*time.Millisecond)).Run(ctx)
	require.NoError(t, err)
	assert.Greater(t, sink.attempts, 1, "the batch is retried until shutdown")
	assert.Zero(t, cons.commits)
}
