// Package bucket implements sliding-window request limits keyed by an
// arbitrary string. The edge keys them by license and intent.
package bucket

import (
	"context"
	"time"
)

// Result reports the outcome of one admission check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter admits cost units against limit per window. RefundN gives back
// units admitted for a request that was then refused for another reason.
type Limiter interface {
	AllowN(ctx context.Context, key string, cost, limit int, window time.Duration, now time.Time) (Result, error)
	RefundN(ctx context.Context, key string, cost int) error
}

// Key builds the bucket key for a license and intent.
func Key(licenseID, intent string) string {
	return "lic:" + licenseID + ":" + intent
}
