package enforcement

import (
	"context"
	"time"

	"tollgate/internal/ledger"
	"tollgate/internal/license"
	"tollgate/internal/manifest"
	"tollgate/internal/pop"
	"tollgate/internal/pricing"
	"tollgate/internal/ratelimit/bucket"
	"tollgate/internal/usage"
	"tollgate/pkg/domain"
)

// LicenseVerifier checks license tokens against local key state.
type LicenseVerifier interface {
	Verify(ctx context.Context, token string, now time.Time) (*license.License, error)
}

// ProofVerifier checks proof-of-possession assertions.
type ProofVerifier interface {
	Verify(ctx context.Context, token, thumbprint string, target pop.Target, now time.Time) (*pop.Proof, error)
}

// Catalog resolves pricing schemes and publisher failover policy.
type Catalog interface {
	Scheme(id domain.SchemeID) (*pricing.Scheme, error)
	Publisher(id domain.PublisherID) (*pricing.Publisher, error)
}

// Ledger holds budget reservations.
type Ledger interface {
	Reserve(ctx context.Context, acct ledger.Account, amount int64) (*ledger.Reservation, error)
	Commit(ctx context.Context, id domain.ReservationID) (*ledger.Settlement, error)
	Release(ctx context.Context, id domain.ReservationID) (*ledger.Settlement, error)
}

// RateLimiter admits requests per license and intent.
type RateLimiter = bucket.Limiter

// Freshness reports whether cached keys or pricing have been stale for
// longer than grace.
type Freshness interface {
	Stale(now time.Time, grace time.Duration) bool
}

// ResourceCache indexes resources already served from the edge cache.
type ResourceCache interface {
	Contains(ctx context.Context, publisher domain.PublisherID, resourcePath string) (bool, error)
	Mark(ctx context.Context, publisher domain.PublisherID, resourcePath string) error
}

// ManifestSigner produces forensic manifests for delivered content.
type ManifestSigner interface {
	Sign(ctx context.Context, req manifest.Request) (*manifest.Signed, error)
}

// UsageQueue buffers enforcer usage events off the request path.
type UsageQueue interface {
	Enqueue(e usage.Event) bool
}
