package keys

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresSource reads the trusted_keys table maintained by the issuer.
type PostgresSource struct {
	db *sql.DB
}

// NewPostgresSource constructs a PostgreSQL-backed key source.
func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

// Load implements Source.
func (s *PostgresSource) Load(ctx context.Context) ([]*TrustedKey, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kid, kind, owner, public_pem, not_after, revoked
		FROM trusted_keys
		ORDER BY kid
	`)
	if err != nil {
		return nil, fmt.Errorf("query trusted keys: %w", err)
	}
	defer rows.Close()

	var out []*TrustedKey
	for rows.Next() {
		var (
			kid, kindRaw, owner, publicPEM string
			notAfter                       sql.NullTime
			revoked                        bool
		)
		if err := rows.Scan(&kid, &kindRaw, &owner, &publicPEM, &notAfter, &revoked); err != nil {
			return nil, fmt.Errorf("scan trusted key: %w", err)
		}
		kind, err := ParseKind(kindRaw)
		if err != nil {
			return nil, fmt.Errorf("trusted key %s: %w", kid, err)
		}
		pub, err := ParsePublicKeyPEM([]byte(publicPEM))
		if err != nil {
			return nil, fmt.Errorf("trusted key %s: %w", kid, err)
		}
		var expiry time.Time
		if notAfter.Valid {
			expiry = notAfter.Time.UTC()
		}
		k, err := NewTrustedKey(kid, kind, owner, pub, expiry)
		if err != nil {
			return nil, fmt.Errorf("trusted key %s: %w", kid, err)
		}
		k.Revoked = revoked
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trusted keys: %w", err)
	}
	return out, nil
}

// Register upserts a public key so every edge node picks it up on its next
// refresh.
func (s *PostgresSource) Register(ctx context.Context, k *TrustedKey) error {
	pemData, err := EncodePublicKeyPEM(k.Public)
	if err != nil {
		return err
	}
	var notAfter sql.NullTime
	if !k.NotAfter.IsZero() {
		notAfter = sql.NullTime{Time: k.NotAfter, Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO trusted_keys (kid, kind, owner, algorithm, public_pem, not_after, revoked)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (kid) DO UPDATE SET
			kind = EXCLUDED.kind,
			owner = EXCLUDED.owner,
			algorithm = EXCLUDED.algorithm,
			public_pem = EXCLUDED.public_pem,
			not_after = EXCLUDED.not_after,
			revoked = EXCLUDED.revoked
	`, k.KID, string(k.Kind), k.Owner, string(k.Algorithm), string(pemData), notAfter, k.Revoked)
	if err != nil {
		return fmt.Errorf("insert trusted key: %w", err)
	}
	return nil
}
