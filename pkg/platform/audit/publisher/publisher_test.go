package publisher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "tollgate/pkg/platform/audit"
	"tollgate/pkg/platform/audit/store/memory"
)

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	licenseID := uuid.NewString()
	err := pub.Emit(context.Background(), audit.Event{
		LicenseID: licenseID,
		Action:    string(audit.EventLicenseIssued),
	})
	require.NoError(t, err)

	events, err := pub.List(context.Background(), licenseID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventLicenseIssued), events[0].Action)
	assert.Equal(t, audit.CategoryCompliance, events[0].Category)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(100))

	licenseID := uuid.NewString()
	for range 10 {
		err := pub.Emit(context.Background(), audit.Event{
			LicenseID: licenseID,
			Action:    string(audit.EventDecisionDenied),
		})
		require.NoError(t, err)
	}

	pub.Close()

	events, err := store.ListByLicense(context.Background(), licenseID)
	require.NoError(t, err)
	assert.Len(t, events, 10, "all events should be drained on close")
	assert.Equal(t, audit.CategorySecurity, events[0].Category)
}

func TestPublisher_BufferFull_DropsEvent(t *testing.T) {
	store := &blockingStore{InMemoryStore: memory.NewInMemoryStore(), release: make(chan struct{})}
	metrics := NewMetrics(prometheus.NewRegistry())
	pub := NewPublisher(store, WithAsyncBuffer(1), WithMetrics(metrics))

	var wg sync.WaitGroup
	var mu sync.Mutex
	full := 0
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := pub.Emit(context.Background(), audit.Event{Action: string(audit.EventProofReplayed)}); err == ErrBufferFull {
				mu.Lock()
				full++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	close(store.release)
	pub.Close()

	assert.Positive(t, full)
	assert.Equal(t, float64(full), testutil.ToFloat64(metrics.Dropped.WithLabelValues(string(audit.CategorySecurity))))
}

func TestPublisher_SetsTimestamp(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	licenseID := uuid.NewString()
	before := time.Now()
	require.NoError(t, pub.Emit(context.Background(), audit.Event{LicenseID: licenseID, Action: string(audit.EventManifestSigned)}))
	after := time.Now()

	events, err := pub.List(context.Background(), licenseID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].Timestamp.Before(before), "timestamp should be >= before")
	assert.False(t, events[0].Timestamp.After(after), "timestamp should be <= after")
}

func TestPublisher_PreservesExistingTimestamp(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	licenseID := uuid.NewString()
	customTime := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, pub.Emit(context.Background(), audit.Event{
		LicenseID: licenseID,
		Action:    string(audit.EventLicenseIssued),
		Timestamp: customTime,
	}))

	events, err := pub.List(context.Background(), licenseID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, customTime, events[0].Timestamp)
}

func TestPublisher_CancelledContext(t *testing.T) {
	pub := NewPublisher(memory.NewInMemoryStore(), WithAsyncBuffer(1))
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := pub.Emit(ctx, audit.Event{Action: string(audit.EventDecisionDenied)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPublisher_CategoryDerivedFromAction(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	licenseID := uuid.NewString()
	require.NoError(t, pub.Emit(context.Background(), audit.Event{
		LicenseID: licenseID,
		Action:    string(audit.EventReservationExpired),
		Category:  audit.CategoryCompliance,
	}))
	events, err := pub.List(context.Background(), licenseID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.CategoryOperations, events[0].Category)
}

// blockingStore holds every Append until release is closed, keeping the
// async buffer full.
type blockingStore struct {
	*memory.InMemoryStore
	release chan struct{}
}

func (s *blockingStore) Append(ctx context.Context, event audit.Event) error {
	<-s.release
	return s.InMemoryStore.Append(ctx, event)
}
