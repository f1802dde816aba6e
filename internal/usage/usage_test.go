package usage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tollgate/pkg/domain"
	dErrors "tollgate/pkg/domain-errors"
)

type recordingSink struct {
	mu      sync.Mutex
	batches [][]Event
	err     error
}

func (s *recordingSink) Append(_ context.Context, events []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, append([]Event(nil), events...))
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

func newEvent(t *testing.T, cost int64) Event {
	t.Helper()
	lic, err := domain.NewLicenseID()
	require.NoError(t, err)
	ev, err := domain.NewReservationID()
	require.NoError(t, err)
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	return Event{
		Reporter: domain.ReporterEnforcer, LicenseID: lic, EventID: ev, Intent: domain.IntentView,
		Success: true, Cost: cost, ResourcePath: "/a", RequestedAt: at, ResolvedAt: at,
	}
}

func TestContentHash(t *testing.T) {
	e := newEvent(t, 30)
	same := e
	assert.Equal(t, e.ContentHash(), same.ContentHash())

	changed := e
	changed.Cost = 31
	assert.NotEqual(t, e.ContentHash(), changed.ContentHash())

	// Length prefixes keep adjacent fields from bleeding into each other.
	a, b := e, e
	a.ResourcePath, a.Intent = "/ab", "c"
	b.ResourcePath, b.Intent = "/a", "bc"
	assert.NotEqual(t, a.ContentHash(), b.ContentHash())
}

func TestReportRoundTrip(t *testing.T) {
	e := newEvent(t, 30)
	got, err := ReportFrom(e).ToEvent(domain.ReporterEnforcer)
	require.NoError(t, err)
	assert.Equal(t, e, got)

	_, err = ReportFrom(e).ToEvent(domain.ReporterConsumer)
	assert.Equal(t, dErrors.CodeInvalidInput, dErrors.CodeOf(err))
}

func TestIntakeSinkFailure(t *testing.T) {
	sink := &recordingSink{err: errors.New("down")}
	_, err := NewIntake(sink).Submit(context.Background(), "enforcer", []Report{ReportFrom(newEvent(t, 1))})
	assert.Equal(t, dErrors.CodeUnavailable, dErrors.CodeOf(err))
}

func TestIntakeBatchBounds(t *testing.T) {
	in := NewIntake(&recordingSink{})
	_, err := in.Submit(context.Background(), "enforcer", nil)
	assert.Equal(t, dErrors.CodeInvalidInput, dErrors.CodeOf(err))
	_, err = in.Submit(context.Background(), "enforcer", make([]Report, MaxBatchSize+1))
	assert.Equal(t, dErrors.CodeInvalidInput, dErrors.CodeOf(err))
}

func TestQueueFlushesOnBatchAndShutdown(t *testing.T) {
	sink := &recordingSink{}
	q := NewQueue(sink, WithBatch(2, time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- q.Run(ctx) }()

	require.True(t, q.Enqueue(newEvent(t, 1)))
	require.True(t, q.Enqueue(newEvent(t, 2)))
	require.Eventually(t, func() bool { return sink.count() == 2 }, time.Second, 5*time.Millisecond)

	require.True(t, q.Enqueue(newEvent(t, 3)))
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 3, sink.count(), "buffered events drained on shutdown")
}

func TestQueueDropsWhenFull(t *testing.T) {
	q := NewQueue(&recordingSink{}, WithQueueSize(1))
	assert.True(t, q.Enqueue(newEvent(t, 1)))
	assert.False(t, q.Enqueue(newEvent(t, 2)))
}

func TestQueueRetriesFailedFlush(t *testing.T) {
	sink := &recordingSink{err: errors.New("down")}
	q := NewQueue(sink, WithBatch(10, 10*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- q.Run(ctx) }()

	require.True(t, q.Enqueue(newEvent(t, 1)))
	time.Sleep(30 * time.Millisecond)
	sink.mu.Lock()
	sink.err = nil
	sink.mu.Unlock()

	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestQueryMatches(t *testing.T) {
	e := newEvent(t, 1)
	other, err := domain.NewLicenseID()
	require.NoError(t, err)
	tests := []struct {
		name string
		q    Query
		want bool
	}{
		{"reporter only", Query{Reporter: domain.ReporterEnforcer}, true},
		{"other reporter", Query{Reporter: domain.ReporterConsumer}, false},
		{"inside window", Query{Reporter: domain.ReporterEnforcer, From: e.ResolvedAt, To: e.ResolvedAt.Add(time.Second)}, true},
		{"window end exclusive", Query{Reporter: domain.ReporterEnforcer, To: e.ResolvedAt}, false},
		{"other license", Query{Reporter: domain.ReporterEnforcer, LicenseID: &other}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.q.Matches(e))
		})
	}
}
