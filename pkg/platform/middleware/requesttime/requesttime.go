// Package requesttime pins a single "now" per request. Token freshness,
// proof skew and reservation expiry within one request all read the same
// instant.
package requesttime

import (
	"net/http"
	"time"

	"tollgate/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
