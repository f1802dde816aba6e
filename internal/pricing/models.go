// Package pricing holds the publisher pricing catalog an edge node enforces:
// per-intent cost, allowed resource paths, rate limits, the enforcement
// method and the publisher's failover policy.
package pricing

import (
	"path"
	"strings"
	"time"

	"tollgate/pkg/domain"
)

// RateLimit caps requests per license and intent within a sliding window.
type RateLimit struct {
	Requests int
	Window   time.Duration
}

// IntentPrice is what one intent costs under a scheme and where it applies.
type IntentPrice struct {
	Intent       domain.Intent
	Cost         int64
	AllowedPaths []string
	RateLimit    *RateLimit
}

// PathAllowed reports whether resourcePath falls within the intent's allowed
// paths. Patterns use path.Match syntax; a trailing "/**" matches the whole
// subtree. No patterns means every path is allowed.
func (p IntentPrice) PathAllowed(resourcePath string) bool {
	if len(p.AllowedPaths) == 0 {
		return true
	}
	clean := path.Clean("/" + resourcePath)
	for _, pattern := range p.AllowedPaths {
		if prefix, ok := strings.CutSuffix(pattern, "/**"); ok {
			if clean == prefix || strings.HasPrefix(clean, prefix+"/") {
				return true
			}
			continue
		}
		if ok, err := path.Match(pattern, clean); err == nil && ok {
			return true
		}
	}
	return false
}

// Scheme is a publisher's named price list.
type Scheme struct {
	ID          domain.SchemeID
	PublisherID domain.PublisherID
	Method      domain.EnforcementMethod
	Intents     map[domain.Intent]IntentPrice
}

// Price returns the intent's price, false when the scheme does not price it.
func (s *Scheme) Price(intent domain.Intent) (IntentPrice, bool) {
	p, ok := s.Intents[intent]
	return p, ok
}

// FailoverPolicy governs decisions while the node cannot refresh keys or
// pricing.
type FailoverPolicy struct {
	Mode        domain.FailoverMode
	GracePeriod time.Duration
}

// Publisher groups a publisher's schemes with its failover policy.
type Publisher struct {
	ID       domain.PublisherID
	Failover FailoverPolicy
	Schemes  map[domain.SchemeID]*Scheme
}
