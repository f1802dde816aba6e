package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	audit "tollgate/pkg/platform/audit"
)

// Store implements audit.Store on the audit_events table.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append inserts an event. The category is always derived from the action.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	query := `
		INSERT INTO audit_events (
			id, category, timestamp, action, license_id, subject,
			publisher, decision, reason, detail, request_id, node_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	var licenseID sql.NullString
	if event.LicenseID != "" {
		licenseID = sql.NullString{String: event.LicenseID, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, query,
		uuid.Must(uuid.NewV7()),
		string(audit.AuditEvent(event.Action).Category()),
		event.Timestamp,
		event.Action,
		licenseID,
		event.Subject,
		event.Publisher,
		event.Decision,
		event.Reason,
		event.Detail,
		event.RequestID,
		event.NodeID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

const selectColumns = `
	SELECT category, timestamp, action, COALESCE(license_id, ''), subject,
		   publisher, decision, reason, detail, request_id, node_id
	FROM audit_events
`

// ListByLicense returns events for a license, oldest first.
func (s *Store) ListByLicense(ctx context.Context, licenseID string) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+`WHERE license_id = $1 ORDER BY timestamp ASC`, licenseID)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ListRecent returns the N most recent events.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+`ORDER BY timestamp DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event
	for rows.Next() {
		var (
			category string
			event    audit.Event
		)
		err := rows.Scan(
			&category,
			&event.Timestamp,
			&event.Action,
			&event.LicenseID,
			&event.Subject,
			&event.Publisher,
			&event.Decision,
			&event.Reason,
			&event.Detail,
			&event.RequestID,
			&event.NodeID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Category = audit.EventCategory(category)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
