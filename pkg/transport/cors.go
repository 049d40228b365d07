package transport

import (
	"net/http"
	"slices"

	"github.com/rs/cors"
)

// CORS returns middleware that answers preflight requests and adds the
// Access-Control headers for allowed origins. An origin list containing
// "*" allows every origin. Credentials are allowed so that the browser
// sends the session cookie, which means the concrete origin is echoed
// back instead of "*". Preflights from unknown origins get 403.
func CORS(allowedOrigins []string) Middleware {
	opts := cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader},
		MaxAge:           600,
	}
	if slices.Contains(allowedOrigins, "*") {
		opts.AllowedOrigins = nil
		opts.AllowOriginFunc = func(string) bool { return true }
	}
	c := cors.New(opts)

	return func(next http.Handler) http.Handler {
		h := c.Handler(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPreflight(r) && !c.OriginAllowed(r) {
				w.Header().Add("Vary", "Origin")
				w.WriteHeader(http.StatusForbidden)
				return
			}
			h.ServeHTTP(w, r)
		})
	}
}

func isPreflight(r *http.Request) bool {
	return r.Method == http.MethodOptions &&
		r.Header.Get("Origin") != "" &&
		r.Header.Get("Access-Control-Request-Method") != ""
}
