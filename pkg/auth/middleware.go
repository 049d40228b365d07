package auth

import (
	"log/slog"
	"net/http"

	"github.com/rhuss/chatrelay/pkg/observability"
)

// Middleware creates HTTP middleware from an AuthChain. It runs
// authentication and injects the identity into the request context. Routes
// that need no identity are simply not wrapped.
func Middleware(chain *AuthChain) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result := chain.Authenticate(r.Context(), r)

			if result.Decision == No {
				slog.Warn("authentication failed",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"source", result.Source,
					"error", result.Err,
				)
				observability.AuthFailuresTotal.WithLabelValues(sourceLabel(result.Source)).Inc()
				writeUnauthorized(w)
				return
			}

			if result.Decision != Yes || result.Identity == nil {
				writeUnauthorized(w)
				return
			}

			// Validate identity.
			if result.Identity.Subject == "" {
				slog.Error("authenticator returned identity with empty subject", "source", result.Source)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"error":{"type":"server_error","message":"internal authentication error"}}` + "\n"))
				return
			}

			slog.Debug("authentication succeeded",
				"subject", result.Identity.Subject,
				"method", result.Identity.Method,
				"path", r.URL.Path,
			)

			ctx := SetIdentity(r.Context(), result.Identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":{"type":"unauthorized","message":"authentication required"}}` + "\n"))
}

func sourceLabel(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
