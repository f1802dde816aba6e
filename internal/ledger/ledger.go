package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"tollgate/pkg/domain"
	dErrors "tollgate/pkg/domain-errors"
	"tollgate/pkg/platform/audit"
	"tollgate/pkg/platform/sentinel"
	"tollgate/pkg/requestcontext"
)

const (
	shardCount            = 64
	DefaultReservationTTL = 30 * time.Second
	DefaultSweepInterval  = 5 * time.Second
)

type account struct {
	budget       int64
	expiresAt    time.Time
	committed    int64
	reserved     int64
	reservations map[domain.ReservationID]*Reservation
}

type shard struct {
	mu       sync.Mutex
	accounts map[domain.LicenseID]*account
}

// Ledger is the node-local budget ledger.
type Ledger struct {
	shards    [shardCount]shard
	index     sync.Map // domain.ReservationID -> domain.LicenseID
	ttl       time.Duration
	overdraft int64
	interval  time.Duration
	logger    *slog.Logger
	metrics   *Metrics
	auditor   audit.Emitter
}

// Settlement is the outcome of Commit or Release. Before and After are the
// license's uncommitted budget around the transition; Repeated marks a call
// that found the reservation already in the requested state.
type Settlement struct {
	Reservation Reservation
	Before      int64
	After       int64
	Repeated    bool
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithReservationTTL bounds how long an unsettled reservation holds budget.
func WithReservationTTL(d time.Duration) Option {
	return func(l *Ledger) {
		if d > 0 {
			l.ttl = d
		}
	}
}

// WithOverdraftAllowance permits reservations to exceed the budget by n.
func WithOverdraftAllowance(n int64) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.overdraft = n
		}
	}
}

// WithSweepInterval sets how often Run releases expired reservations.
func WithSweepInterval(d time.Duration) Option {
	return func(l *Ledger) {
		if d > 0 {
			l.interval = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

func WithAuditor(a audit.Emitter) Option {
	return func(l *Ledger) { l.auditor = a }
}

// New creates an empty ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		ttl:      DefaultReservationTTL,
		interval: DefaultSweepInterval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	for i := range l.shards {
		l.shards[i].accounts = make(map[domain.LicenseID]*account)
	}
	return l
}

func (l *Ledger) shardFor(id domain.LicenseID) *shard {
	u := uuid.UUID(id)
	// v7 ids lead with a timestamp; the random tail spreads better.
	return &l.shards[u[15]%shardCount]
}

// Reserve holds amount against the license. It fails with budget_exhausted
// when committed + reserved + amount would exceed budget plus the overdraft
// allowance. The reservation expires at now+TTL or at license expiry,
// whichever is first.
func (l *Ledger) Reserve(ctx context.Context, acct Account, amount int64) (*Reservation, error) {
	if amount < 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "reservation amount must not be negative")
	}
	now := requestcontext.Now(ctx)
	if !now.Before(acct.ExpiresAt) {
		l.metrics.reserved("expired")
		return nil, dErrors.New(dErrors.CodeTokenExpired, "license expired")
	}

	id, err := domain.NewReservationID()
	if err != nil {
		return nil, fmt.Errorf("new reservation id: %w", err)
	}
	expires := now.Add(l.ttl)
	if acct.ExpiresAt.Before(expires) {
		expires = acct.ExpiresAt
	}

	sh := l.shardFor(acct.LicenseID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	a := sh.accounts[acct.LicenseID]
	if a == nil {
		a = &account{
			budget:       acct.Budget,
			expiresAt:    acct.ExpiresAt,
			reservations: make(map[domain.ReservationID]*Reservation),
		}
		sh.accounts[acct.LicenseID] = a
		l.metrics.accounts(1)
	}
	if a.committed+a.reserved+amount > a.budget+l.overdraft {
		l.metrics.reserved("exhausted")
		return nil, dErrors.Newf(dErrors.CodeBudgetExhausted,
			"remaining %d below cost %d", a.budget-a.committed-a.reserved, amount)
	}

	r := &Reservation{
		ID:        id,
		LicenseID: acct.LicenseID,
		Amount:    amount,
		CreatedAt: now,
		ExpiresAt: expires,
		State:     StateReserved,
	}
	a.reserved += amount
	a.reservations[id] = r
	l.index.Store(id, acct.LicenseID)
	l.metrics.reserved("reserved")

	out := *r
	return &out, nil
}

// Commit makes a reservation's amount permanent spend. Committing twice is a
// no-op; committing a released or expired reservation fails.
func (l *Ledger) Commit(ctx context.Context, id domain.ReservationID) (*Settlement, error) {
	return l.settle(ctx, id, StateCommitted)
}

// Release returns a reservation's amount to the license. Releasing twice is a
// no-op; releasing a committed reservation fails.
func (l *Ledger) Release(ctx context.Context, id domain.ReservationID) (*Settlement, error) {
	return l.settle(ctx, id, StateReleased)
}

func (l *Ledger) settle(ctx context.Context, id domain.ReservationID, target State) (*Settlement, error) {
	v, ok := l.index.Load(id)
	if !ok {
		return nil, fmt.Errorf("reservation %s: %w", id, sentinel.ErrNotFound)
	}
	licenseID := v.(domain.LicenseID)
	now := requestcontext.Now(ctx)

	sh := l.shardFor(licenseID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	a := sh.accounts[licenseID]
	if a == nil {
		return nil, fmt.Errorf("reservation %s: %w", id, sentinel.ErrNotFound)
	}
	r := a.reservations[id]
	if r == nil {
		return nil, fmt.Errorf("reservation %s: %w", id, sentinel.ErrNotFound)
	}

	before := a.budget - a.committed
	switch {
	case r.State == target:
		return &Settlement{Reservation: *r, Before: before, After: before, Repeated: true}, nil
	case r.State != StateReserved:
		return nil, fmt.Errorf("reservation %s is %s: %w", id, r.State, sentinel.ErrInvalidState)
	}

	if target == StateCommitted && !now.Before(r.ExpiresAt) {
		a.reserved -= r.Amount
		r.State = StateReleased
		l.metrics.settled(StateReleased, "expired", r.Amount)
		return nil, fmt.Errorf("reservation %s: %w", id, sentinel.ErrExpired)
	}

	a.reserved -= r.Amount
	r.State = target
	if target == StateCommitted {
		a.committed += r.Amount
	}
	l.metrics.settled(target, "explicit", r.Amount)
	return &Settlement{Reservation: *r, Before: before, After: a.budget - a.committed}, nil
}

// Outstanding returns how many reservations, settled or not, the ledger
// still tracks for the license.
func (l *Ledger) Outstanding(licenseID domain.LicenseID) int {
	sh := l.shardFor(licenseID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if a := sh.accounts[licenseID]; a != nil {
		return len(a.reservations)
	}
	return 0
}

// Balance reports the license's spend on this node.
func (l *Ledger) Balance(_ context.Context, licenseID domain.LicenseID) (Balance, error) {
	sh := l.shardFor(licenseID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	a := sh.accounts[licenseID]
	if a == nil {
		return Balance{}, fmt.Errorf("license %s: %w", licenseID, sentinel.ErrNotFound)
	}
	return Balance{LicenseID: licenseID, Budget: a.budget, Committed: a.committed, Reserved: a.reserved}, nil
}

// Sweep releases reservations whose expiry has passed and forgets licenses
// that expired with nothing outstanding. Settled reservations are kept one
// TTL past their expiry so repeated Commit or Release calls stay idempotent,
// then forgotten. Returns the number released.
func (l *Ledger) Sweep(ctx context.Context, now time.Time) int {
	var expired []Reservation
	dropped := 0
	for i := range l.shards {
		sh := &l.shards[i]
		sh.mu.Lock()
		for licenseID, a := range sh.accounts {
			for id, r := range a.reservations {
				switch {
				case r.State == StateReserved && !now.Before(r.ExpiresAt):
					a.reserved -= r.Amount
					r.State = StateReleased
					expired = append(expired, *r)
				case r.State != StateReserved && !now.Before(r.ExpiresAt.Add(l.ttl)):
					delete(a.reservations, id)
					l.index.Delete(id)
				}
			}
			if !now.Before(a.expiresAt) && a.reserved == 0 {
				for id := range a.reservations {
					l.index.Delete(id)
				}
				delete(sh.accounts, licenseID)
				dropped++
			}
		}
		sh.mu.Unlock()
	}

	for _, r := range expired {
		l.metrics.settled(StateReleased, "expired", r.Amount)
		l.emitExpired(ctx, r)
	}
	if dropped > 0 {
		l.metrics.accounts(-dropped)
	}
	if len(expired) > 0 {
		l.logger.InfoContext(ctx, "released expired reservations", "count", len(expired))
	}
	return len(expired)
}

// Run sweeps on the configured interval until ctx is cancelled.
func (l *Ledger) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-ticker.C:
			l.Sweep(ctx, t.UTC())
		}
	}
}

func (l *Ledger) emitExpired(ctx context.Context, r Reservation) {
	if l.auditor == nil {
		return
	}
	err := l.auditor.Emit(ctx, audit.Event{
		Action:    string(audit.EventReservationExpired),
		LicenseID: r.LicenseID.String(),
		Detail:    fmt.Sprintf("reservation %s amount %d", r.ID, r.Amount),
		NodeID:    requestcontext.NodeID(ctx),
	})
	if err != nil {
		l.logger.WarnContext(ctx, "failed to emit reservation expiry", "error", err)
	}
}
