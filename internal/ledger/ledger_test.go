package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"tollgate/pkg/domain"
	dErrors "tollgate/pkg/domain-errors"
	"tollgate/pkg/platform/audit"
	"tollgate/pkg/platform/audit/publisher"
	auditmemory "tollgate/pkg/platform/audit/store/memory"
	"tollgate/pkg/platform/sentinel"
	"tollgate/pkg/requestcontext"
)

type LedgerSuite struct {
	suite.Suite
	ctx    context.Context
	now    time.Time
	ledger *Ledger
	acct   Account
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerSuite))
}

func (s *LedgerSuite) SetupTest() {
	s.now = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.ledger = New(WithReservationTTL(time.Minute), WithMetrics(NewMetrics(prometheus.NewRegistry())))
	id, err := domain.NewLicenseID()
	s.Require().NoError(err)
	s.acct = Account{LicenseID: id, Budget: 100, ExpiresAt: s.now.Add(time.Hour)}
}

func (s *LedgerSuite) balance() Balance {
	b, err := s.ledger.Balance(s.ctx, s.acct.LicenseID)
	s.Require().NoError(err)
	return b
}

func (s *LedgerSuite) TestReserveCommit() {
	r, err := s.ledger.Reserve(s.ctx, s.acct, 30)
	s.Require().NoError(err)
	s.Equal(StateReserved, r.State)
	s.Equal(s.now.Add(time.Minute), r.ExpiresAt)
	s.Equal(Balance{LicenseID: s.acct.LicenseID, Budget: 100, Reserved: 30}, s.balance())

	st, err := s.ledger.Commit(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(StateCommitted, st.Reservation.State)
	s.Equal(int64(100), st.Before)
	s.Equal(int64(70), st.After)
	s.Equal(int64(70), s.balance().Remaining())
}

func (s *LedgerSuite) TestReserveBeyondBudget() {
	_, err := s.ledger.Reserve(s.ctx, s.acct, 60)
	s.Require().NoError(err)
	_, err = s.ledger.Reserve(s.ctx, s.acct, 41)
	s.Equal(dErrors.CodeBudgetExhausted, dErrors.CodeOf(err))
	_, err = s.ledger.Reserve(s.ctx, s.acct, 40)
	s.NoError(err, "exactly the remaining budget fits")
}

func (s *LedgerSuite) TestZeroBudgetAllowsFreeIntent() {
	acct := s.acct
	acct.Budget = 0
	_, err := s.ledger.Reserve(s.ctx, acct, 0)
	s.NoError(err)
	_, err = s.ledger.Reserve(s.ctx, acct, 1)
	s.Equal(dErrors.CodeBudgetExhausted, dErrors.CodeOf(err))
}

func (s *LedgerSuite) TestOverdraftAllowance() {
	l := New(WithOverdraftAllowance(10))
	_, err := l.Reserve(s.ctx, s.acct, 110)
	s.NoError(err)
	_, err = l.Reserve(s.ctx, s.acct, 1)
	s.Equal(dErrors.CodeBudgetExhausted, dErrors.CodeOf(err))
}

func (s *LedgerSuite) TestCommitAndReleaseAreIdempotent() {
	r, err := s.ledger.Reserve(s.ctx, s.acct, 30)
	s.Require().NoError(err)
	_, err = s.ledger.Commit(s.ctx, r.ID)
	s.Require().NoError(err)
	st, err := s.ledger.Commit(s.ctx, r.ID)
	s.Require().NoError(err)
	s.True(st.Repeated)
	s.Equal(int64(30), s.balance().Committed)

	r2, err := s.ledger.Reserve(s.ctx, s.acct, 20)
	s.Require().NoError(err)
	_, err = s.ledger.Release(s.ctx, r2.ID)
	s.Require().NoError(err)
	st, err = s.ledger.Release(s.ctx, r2.ID)
	s.Require().NoError(err)
	s.True(st.Repeated)
	s.Equal(Balance{LicenseID: s.acct.LicenseID, Budget: 100, Committed: 30}, s.balance())
}

func (s *LedgerSuite) TestCrossTransitionsRejected() {
	r, err := s.ledger.Reserve(s.ctx, s.acct, 30)
	s.Require().NoError(err)
	_, err = s.ledger.Commit(s.ctx, r.ID)
	s.Require().NoError(err)
	_, err = s.ledger.Release(s.ctx, r.ID)
	s.ErrorIs(err, sentinel.ErrInvalidState)

	r2, err := s.ledger.Reserve(s.ctx, s.acct, 10)
	s.Require().NoError(err)
	_, err = s.ledger.Release(s.ctx, r2.ID)
	s.Require().NoError(err)
	_, err = s.ledger.Commit(s.ctx, r2.ID)
	s.ErrorIs(err, sentinel.ErrInvalidState)
}

func (s *LedgerSuite) TestUnknownReservation() {
	id, err := domain.NewReservationID()
	s.Require().NoError(err)
	_, err = s.ledger.Commit(s.ctx, id)
	s.ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.ledger.Balance(s.ctx, domain.LicenseID(id))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *LedgerSuite) TestReservationNeverOutlivesLicense() {
	acct := s.acct
	acct.ExpiresAt = s.now.Add(10 * time.Second)
	r, err := s.ledger.Reserve(s.ctx, acct, 5)
	s.Require().NoError(err)
	s.Equal(acct.ExpiresAt, r.ExpiresAt)

	expired := acct
	expired.ExpiresAt = s.now
	_, err = s.ledger.Reserve(s.ctx, expired, 5)
	s.Equal(dErrors.CodeTokenExpired, dErrors.CodeOf(err))
}

func (s *LedgerSuite) TestCommitAfterExpiryReleases() {
	r, err := s.ledger.Reserve(s.ctx, s.acct, 30)
	s.Require().NoError(err)
	late := requestcontext.WithTime(context.Background(), r.ExpiresAt)
	_, err = s.ledger.Commit(late, r.ID)
	s.ErrorIs(err, sentinel.ErrExpired)
	s.Equal(int64(100), s.balance().Remaining())
}

func (s *LedgerSuite) TestSweepReleasesExpired() {
	store := auditmemory.NewInMemoryStore()
	pub := publisher.NewPublisher(store)
	l := New(WithReservationTTL(time.Second), WithAuditor(pub))

	r, err := l.Reserve(s.ctx, s.acct, 50)
	s.Require().NoError(err)
	s.Equal(0, l.Sweep(s.ctx, s.now.Add(500*time.Millisecond)))
	s.Equal(1, l.Sweep(s.ctx, s.now.Add(time.Second)))

	b, err := l.Balance(s.ctx, s.acct.LicenseID)
	s.Require().NoError(err)
	s.Equal(int64(0), b.Reserved)
	_, err = l.Release(s.ctx, r.ID)
	s.NoError(err, "release after sweep is a no-op")

	events := store.ListByAction(s.ctx, audit.EventReservationExpired)
	s.Len(events, 1)
}

func (s *LedgerSuite) TestSweepForgetsSettledReservations() {
	committed, err := s.ledger.Reserve(s.ctx, s.acct, 30)
	s.Require().NoError(err)
	_, err = s.ledger.Commit(s.ctx, committed.ID)
	s.Require().NoError(err)
	_, err = s.ledger.Reserve(s.ctx, s.acct, 10)
	s.Require().NoError(err)

	s.Equal(1, s.ledger.Sweep(s.ctx, s.now.Add(time.Minute)))
	s.Equal(2, s.ledger.Outstanding(s.acct.LicenseID), "settled entries kept one ttl past expiry")
	st, err := s.ledger.Commit(s.ctx, committed.ID)
	s.Require().NoError(err)
	s.True(st.Repeated)

	s.Equal(0, s.ledger.Sweep(s.ctx, s.now.Add(2*time.Minute)))
	s.Zero(s.ledger.Outstanding(s.acct.LicenseID))
	s.Equal(Balance{LicenseID: s.acct.LicenseID, Budget: 100, Committed: 30}, s.balance(), "spend survives the pruning")
	_, err = s.ledger.Commit(s.ctx, committed.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *LedgerSuite) TestSweepForgetsExpiredLicenses() {
	r, err := s.ledger.Reserve(s.ctx, s.acct, 10)
	s.Require().NoError(err)
	s.ledger.Sweep(s.ctx, s.acct.ExpiresAt)
	_, err = s.ledger.Balance(s.ctx, s.acct.LicenseID)
	s.ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.ledger.Commit(s.ctx, r.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func TestRunStopsOnCancel(t *testing.T) {
	l := New(WithSweepInterval(time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

// Concurrent requests against one license never overspend: each request
// reserves, then commits.
func TestConcurrentReserveNeverExceedsBudget(t *testing.T) {
	tests := []struct {
		name      string
		budget    int64
		cost      int64
		requests  int
		committed int
		spent     int64
	}{
		{"two of three fit", 60, 30, 3, 2, 60},
		{"three of four fit", 100, 30, 4, 3, 90},
		{"many contenders", 1000, 7, 500, 142, 994},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := time.Now().UTC()
			ctx := requestcontext.WithTime(context.Background(), now)
			l := New()
			id, err := domain.NewLicenseID()
			require.NoError(t, err)
			acct := Account{LicenseID: id, Budget: tt.budget, ExpiresAt: now.Add(time.Hour)}

			var mu sync.Mutex
			var committed, exhausted int
			var wg sync.WaitGroup
			start := make(chan struct{})
			for range tt.requests {
				wg.Go(func() {
					<-start
					r, err := l.Reserve(ctx, acct, tt.cost)
					if err != nil {
						mu.Lock()
						if dErrors.HasCode(err, dErrors.CodeBudgetExhausted) {
							exhausted++
						}
						mu.Unlock()
						return
					}
					if _, err := l.Commit(ctx, r.ID); err == nil {
						mu.Lock()
						committed++
						mu.Unlock()
					}
				})
			}
			close(start)
			wg.Wait()

			assert.Equal(t, tt.committed, committed)
			assert.Equal(t, tt.requests-tt.committed, exhausted)
			b, err := l.Balance(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, tt.spent, b.Committed)
			assert.Zero(t, b.Reserved)
		})
	}
}

func TestNegativeAmountRejected(t *testing.T) {
	l := New()
	_, err := l.Reserve(context.Background(), Account{ExpiresAt: time.Now().Add(time.Hour)}, -1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, dErrors.New(dErrors.CodeInvalidInput, "")))
}
