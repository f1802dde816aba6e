// Package license mints and verifies licenses: signed, short-lived grants of
// intents and a spending budget bound to a consumer's proof-of-possession key.
package license

import (
	"slices"
	"time"

	"tollgate/pkg/domain"
)

// License is immutable once signed. Budget is the original grant; remaining
// spend is tracked by the ledger.
type License struct {
	ID          domain.LicenseID
	IssuerID    domain.IssuerID
	SubjectID   domain.SubjectID
	PublisherID domain.PublisherID
	SchemeID    domain.SchemeID
	Intents     []domain.Intent
	Budget      int64
	IssuedAt    time.Time
	ExpiresAt   time.Time
	// Thumbprint is the RFC 7638 thumbprint of the consumer's PoP key.
	Thumbprint string
	Metadata   map[string]string
}

// Grants reports whether intent is among the granted intents.
func (l *License) Grants(intent domain.Intent) bool {
	return slices.Contains(l.Intents, intent)
}

// ValidAt reports whether now falls in [IssuedAt, ExpiresAt).
func (l *License) ValidAt(now time.Time) bool {
	return !now.Before(l.IssuedAt) && now.Before(l.ExpiresAt)
}

// Issued is a license together with its compact token.
type Issued struct {
	License *License
	Token   string
}
