package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tollgate/internal/usage"
	"tollgate/pkg/domain"
)

// Postgres implements usage.Store on the usage_events table with pgx.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

const insertEvent = `
	INSERT INTO usage_events (
		reporter, license_id, event_id, content_hash, intent, tool_invoked, success,
		budget_before, budget_after, cost, resource_path, requested_at, resolved_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	ON CONFLICT (reporter, license_id, event_id, content_hash) DO NOTHING
`

// Append inserts events in one batch. Redeliveries are no-ops.
func (s *Postgres) Append(ctx context.Context, events []usage.Event) error {
	batch := &pgx.Batch{}
	for _, e := range events {
		batch.Queue(insertEvent,
			string(e.Reporter), uuid.UUID(e.LicenseID), uuid.UUID(e.EventID), e.ContentHash(),
			string(e.Intent), e.ToolInvoked, e.Success,
			e.BudgetBefore, e.BudgetAfter, e.Cost, e.ResourcePath, e.RequestedAt, e.ResolvedAt,
		)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert usage events: %w", err)
	}
	return nil
}

// List returns one reporter's events resolved in the query window.
func (s *Postgres) List(ctx context.Context, q usage.Query) ([]usage.Event, error) {
	var (
		where = []string{"reporter = $1"}
		args  = []any{string(q.Reporter)}
	)
	if !q.From.IsZero() {
		args = append(args, q.From)
		where = append(where, fmt.Sprintf("resolved_at >= $%d", len(args)))
	}
	if !q.To.IsZero() {
		args = append(args, q.To)
		where = append(where, fmt.Sprintf("resolved_at < $%d", len(args)))
	}
	if q.LicenseID != nil {
		args = append(args, uuid.UUID(*q.LicenseID))
		where = append(where, fmt.Sprintf("license_id = $%d", len(args)))
	}
	query := `
		SELECT reporter, license_id, event_id, intent, tool_invoked, success,
		       budget_before, budget_after, cost, resource_path, requested_at, resolved_at
		FROM usage_events
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY resolved_at, event_id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query usage events: %w", err)
	}
	events, err := pgx.CollectRows(rows, scanEvent)
	if err != nil {
		return nil, fmt.Errorf("scan usage events: %w", err)
	}
	return events, nil
}

func scanEvent(row pgx.CollectableRow) (usage.Event, error) {
	var (
		e         usage.Event
		reporter  string
		intent    string
		licenseID uuid.UUID
		eventID   uuid.UUID
	)
	err := row.Scan(&reporter, &licenseID, &eventID, &intent, &e.ToolInvoked, &e.Success,
		&e.BudgetBefore, &e.BudgetAfter, &e.Cost, &e.ResourcePath, &e.RequestedAt, &e.ResolvedAt)
	if err != nil {
		return usage.Event{}, err
	}
	e.Reporter = domain.Reporter(reporter)
	e.Intent = domain.Intent(intent)
	e.LicenseID = domain.LicenseID(licenseID)
	e.EventID = domain.ReservationID(eventID)
	e.RequestedAt = e.RequestedAt.UTC()
	e.ResolvedAt = e.ResolvedAt.UTC()
	return e, nil
}

var (
	_ usage.Store = (*Postgres)(nil)
	_ usage.Store = (*InMemory)(nil)
)
