// Package manifest produces forensic manifests: signed records binding a
// delivered payload digest to the license it was served under. A manifest
// is an audit artifact; failing to produce one never blocks delivery.
package manifest

import (
	"context"
	"time"

	"tollgate/pkg/domain"
)

// Manifest is immutable once signed.
type Manifest struct {
	ID          domain.ManifestID
	PublisherID domain.PublisherID
	// LicenseID is nil for unlicensed preview traffic.
	LicenseID   *domain.LicenseID
	ResourceID  string
	ContentType domain.ContentType
	// Digest is "<alg>:<hex>".
	Digest    string
	Preview   bool
	IssuedAt  time.Time
	ExpiresAt *time.Time
	SignerKID string
	// TransformModel describes the tool that transformed the content, if any.
	TransformModel string
}

// Signed is a manifest with its compact JWS.
type Signed struct {
	Manifest *Manifest
	Token    string
}

// Store persists signed manifests.
type Store interface {
	Save(ctx context.Context, m *Signed) error
	FindByID(ctx context.Context, id domain.ManifestID) (*Signed, error)
}
