package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"tollgate/pkg/requestcontext"
)

// RequireAdminToken guards issuer-side routes. The token is accepted either as
// a Bearer credential or in X-Admin-Token.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return requireToken(expectedToken, "X-Admin-Token", "admin", logger)
}

// RequireEdgeToken guards the enforcer's side of the edge: enforcement,
// reservation settlement and enforcer usage reports. The token is accepted
// either as a Bearer credential or in X-Edge-Token.
func RequireEdgeToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return requireToken(expectedToken, "X-Edge-Token", "edge", logger)
}

func requireToken(expectedToken, header, realm string, logger *slog.Logger) func(http.Handler) http.Handler {
	body := []byte(`{"error":"unauthorized","error_description":"` + realm + ` token required"}`)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(header)
			if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
				token = after
			}
			// Use constant-time comparison to prevent timing attacks
			if expectedToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				ctx := r.Context()
				logger.WarnContext(ctx, realm+" token mismatch",
					"request_id", requestcontext.RequestID(ctx),
					"path", r.URL.Path,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write(body)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
