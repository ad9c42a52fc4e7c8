package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

type contextKey int

const claimsContextKey contextKey = 0

// FromContext returns the authenticated session's claims, if the request
// passed through Middleware on a protected route.
func FromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*Claims)
	return claims, ok
}

// IsPublicRoute reports whether path should skip session validation.
func IsPublicRoute(path string) bool {
	switch path {
	case "/health", "/readyz", "/metrics", "/api/auth/login":
		return true
	default:
		return false
	}
}

// Middleware validates the x-session-id header on every non-public route
// and stores the resulting claims in the request context.
func Middleware(mgr *Manager, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsPublicRoute(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			raw := r.Header.Get("x-session-id")
			if raw == "" {
				respondUnauthorized(w, "missing session")
				return
			}

			claims, err := mgr.Validate(r.Context(), raw)
			if err != nil {
				logger.Debug("session validation failed", "error", err)
				respondUnauthorized(w, "invalid session")
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func respondUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
