package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"tollgate/internal/manifest"
	"tollgate/pkg/domain"
	"tollgate/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// Postgres implements manifest.Store on the forensic_manifests table.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Save(ctx context.Context, signed *manifest.Signed) error {
	m := signed.Manifest
	var licenseID uuid.NullUUID
	if m.LicenseID != nil {
		licenseID = uuid.NullUUID{UUID: uuid.UUID(*m.LicenseID), Valid: true}
	}
	var expires sql.NullTime
	if m.ExpiresAt != nil {
		expires = sql.NullTime{Time: *m.ExpiresAt, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO forensic_manifests (
			id, publisher_id, license_id, resource_id, content_type, content_digest,
			preview, issued_at, expires_at, signer_kid, transform_model, token
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		uuid.UUID(m.ID), string(m.PublisherID), licenseID, m.ResourceID, string(m.ContentType), m.Digest,
		m.Preview, m.IssuedAt, expires, nullString(m.SignerKID), nullString(m.TransformModel), signed.Token,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("manifest %s: %w", m.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert manifest: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id domain.ManifestID) (*manifest.Signed, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT publisher_id, license_id, resource_id, content_type, content_digest,
		       preview, issued_at, expires_at, COALESCE(signer_kid, ''), COALESCE(transform_model, ''), token
		FROM forensic_manifests
		WHERE id = $1
	`, uuid.UUID(id))

	var (
		m         = manifest.Manifest{ID: id}
		publisher string
		ctype     string
		licenseID uuid.NullUUID
		expires   sql.NullTime
		token     string
	)
	err := row.Scan(&publisher, &licenseID, &m.ResourceID, &ctype, &m.Digest,
		&m.Preview, &m.IssuedAt, &expires, &m.SignerKID, &m.TransformModel, &token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("manifest %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select manifest: %w", err)
	}
	m.PublisherID = domain.PublisherID(publisher)
	m.ContentType = domain.ContentType(ctype)
	m.IssuedAt = m.IssuedAt.UTC()
	if licenseID.Valid {
		lic := domain.LicenseID(licenseID.UUID)
		m.LicenseID = &lic
	}
	if expires.Valid {
		t := expires.Time.UTC()
		m.ExpiresAt = &t
	}
	return &manifest.Signed{Manifest: &m, Token: token}, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ manifest.Store = (*Postgres)(nil)
var _ manifest.Store = (*InMemory)(nil)
