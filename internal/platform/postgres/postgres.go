// Package postgres opens the shared database handles. Stores written against
// database/sql use the lib/pq driver; the usage store uses a pgx pool.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
)

const pingTimeout = 5 * time.Second

// Handles bundles both connection flavors against one DSN.
type Handles struct {
	DB   *sql.DB
	Pool *pgxpool.Pool
}

// Open connects both handles and pings them. Returns nil handles when dsn is empty.
func Open(ctx context.Context, dsn string) (*Handles, error) {
	if dsn == "" {
		return nil, nil
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open pgx pool: %w", err)
	}
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		_ = db.Close()
		return nil, fmt.Errorf("ping pgx pool: %w", err)
	}
	return &Handles{DB: db, Pool: pool}, nil
}

// Close releases both handles.
func (h *Handles) Close() {
	if h == nil {
		return
	}
	h.Pool.Close()
	_ = h.DB.Close()
}

// Schema is the DDL every store expects. Applied by Migrate at startup.
const Schema = `
CREATE TABLE IF NOT EXISTS trusted_keys (
	kid         TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	owner       TEXT NOT NULL,
	algorithm   TEXT NOT NULL,
	public_pem  TEXT NOT NULL,
	not_after   TIMESTAMPTZ,
	revoked     BOOLEAN NOT NULL DEFAULT FALSE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS usage_events (
	reporter      TEXT NOT NULL,
	license_id    UUID NOT NULL,
	event_id      UUID NOT NULL,
	content_hash  TEXT NOT NULL,
	intent        TEXT NOT NULL,
	tool_invoked  BOOLEAN NOT NULL,
	success       BOOLEAN NOT NULL,
	budget_before BIGINT NOT NULL,
	budget_after  BIGINT NOT NULL,
	cost          BIGINT NOT NULL,
	resource_path TEXT NOT NULL,
	requested_at  TIMESTAMPTZ NOT NULL,
	resolved_at   TIMESTAMPTZ NOT NULL,
	received_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (reporter, license_id, event_id, content_hash)
);
CREATE INDEX IF NOT EXISTS usage_events_resolved_idx ON usage_events (reporter, resolved_at);

CREATE TABLE IF NOT EXISTS forensic_manifests (
	id              UUID PRIMARY KEY,
	publisher_id    TEXT NOT NULL,
	license_id      UUID,
	resource_id     TEXT NOT NULL,
	content_type    TEXT NOT NULL,
	content_digest  TEXT NOT NULL,
	preview         BOOLEAN NOT NULL,
	issued_at       TIMESTAMPTZ NOT NULL,
	expires_at      TIMESTAMPTZ,
	signer_kid      TEXT,
	transform_model TEXT,
	token           TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS forensic_manifests_license_idx ON forensic_manifests (license_id);

CREATE TABLE IF NOT EXISTS audit_events (
	id          UUID PRIMARY KEY,
	category    TEXT NOT NULL,
	timestamp   TIMESTAMPTZ NOT NULL,
	action      TEXT NOT NULL,
	license_id  TEXT,
	subject     TEXT NOT NULL DEFAULT '',
	publisher   TEXT NOT NULL DEFAULT '',
	decision    TEXT NOT NULL DEFAULT '',
	reason      TEXT NOT NULL DEFAULT '',
	detail      TEXT NOT NULL DEFAULT '',
	request_id  TEXT NOT NULL DEFAULT '',
	node_id     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS audit_events_license_idx ON audit_events (license_id, timestamp);
`

// Migrate applies Schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
