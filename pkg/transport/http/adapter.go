package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rhuss/chatrelay/pkg/api"
	"github.com/rhuss/chatrelay/pkg/auth"
	"github.com/rhuss/chatrelay/pkg/observability"
	"github.com/rhuss/chatrelay/pkg/relay"
	"github.com/rhuss/chatrelay/pkg/transport"
)

// Accounts is the account functionality the adapter serves.
type Accounts interface {
	CreateUser(ctx context.Context, username, email, password string) (*api.User, error)
	Authenticate(ctx context.Context, username, password string) (*api.User, error)
	User(ctx context.Context, username string) (*api.User, error)
	CreateSession(ctx context.Context, username string) (string, error)
	EndSession(ctx context.Context, token string) error
	SessionTTL() time.Duration
}

// Chatter sends chat messages and reads chat logs.
type Chatter interface {
	Send(ctx context.Context, userID, content string) (*api.ChatMessage, error)
	History(ctx context.Context, userID string) ([]api.ChatMessage, error)
}

// TokenIssuer signs bearer tokens bound to a login session.
type TokenIssuer interface {
	Issue(username, sessionID string) (string, error)
}

// HealthChecker is implemented by stores that can report their health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Adapter serves the chatrelay API over HTTP.
// It routes requests to the account and chat services and serializes
// their results.
type Adapter struct {
	accounts       Accounts
	chat           Chatter
	authenticators []auth.Authenticator
	tokens         TokenIssuer // nil when bearer tokens are disabled
	health         []HealthChecker
	inflight       *transport.InFlightRegistry
	mux            *http.ServeMux
	config         Config
	logger         *slog.Logger
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	MaxBodySize int64

	// CookieName is the session cookie. Default: "session_id".
	CookieName   string
	CookieSecure bool

	// AllowAnonymous admits unauthenticated callers to /chat and
	// /chat/history. They chat under the userId they supply, or under
	// AnonymousUserID.
	AllowAnonymous  bool
	AnonymousUserID string

	// StaticDir is served at "/" when set.
	StaticDir string

	// MetricsPath mounts the Prometheus handler when set.
	MetricsPath string

	// CORSOrigins enables CORS for the listed origins when non-empty.
	CORSOrigins []string
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize:     1 << 20, // 1 MB
		CookieName:      "session_id",
		AllowAnonymous:  true,
		AnonymousUserID: "guest",
		MetricsPath:     "/metrics",
	}
}

// AdapterOption configures optional adapter collaborators.
type AdapterOption func(*Adapter)

// WithAuthenticators sets the authenticators consulted, in order, for
// every authenticated route.
func WithAuthenticators(authns ...auth.Authenticator) AdapterOption {
	return func(a *Adapter) { a.authenticators = authns }
}

// WithTokenIssuer makes /login return a bearer token.
func WithTokenIssuer(t TokenIssuer) AdapterOption {
	return func(a *Adapter) { a.tokens = t }
}

// WithHealthCheckers adds stores probed by /healthz.
func WithHealthCheckers(hc ...HealthChecker) AdapterOption {
	return func(a *Adapter) { a.health = append(a.health, hc...) }
}

// WithAdapterLogger sets the structured logger.
func WithAdapterLogger(l *slog.Logger) AdapterOption {
	return func(a *Adapter) { a.logger = l }
}

// NewAdapter creates an HTTP adapter and registers its routes.
func NewAdapter(accounts Accounts, chat Chatter, cfg Config, opts ...AdapterOption) *Adapter {
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultConfig().MaxBodySize
	}
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultConfig().CookieName
	}

	a := &Adapter{
		accounts: accounts,
		chat:     chat,
		inflight: transport.NewInFlightRegistry(),
		mux:      http.NewServeMux(),
		config:   cfg,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}

	requireUser := auth.Middleware(&auth.AuthChain{
		Authenticators:  a.authenticators,
		DefaultDecision: auth.No,
	})

	chatDefault := auth.No
	if cfg.AllowAnonymous {
		chatDefault = auth.Yes
	}
	chatAuth := auth.Middleware(&auth.AuthChain{
		Authenticators:  a.authenticators,
		DefaultDecision: chatDefault,
	})

	a.mux.HandleFunc("POST /register", a.handleRegister)
	a.mux.HandleFunc("POST /login", a.handleLogin)
	a.mux.HandleFunc("POST /logout", a.handleLogout)
	a.mux.Handle("GET /me", requireUser(http.HandlerFunc(a.handleMe)))
	a.mux.Handle("POST /chat", chatAuth(http.HandlerFunc(a.handleChat)))
	a.mux.Handle("GET /chat/history", chatAuth(http.HandlerFunc(a.handleHistory)))
	a.mux.HandleFunc("GET /healthz", a.handleHealth)

	if cfg.MetricsPath != "" {
		a.mux.Handle("GET "+cfg.MetricsPath, promhttp.Handler())
	}
	if cfg.StaticDir != "" {
		a.mux.Handle("GET /", http.FileServer(http.Dir(cfg.StaticDir)))
	}

	return a
}

// Handler returns the http.Handler for this adapter, wrapped in the
// default middleware. Use this to integrate with an http.Server or test
// with httptest.
func (a *Adapter) Handler() http.Handler {
	mws := []transport.Middleware{
		transport.RequestID(),
		transport.Logging(a.logger),
		transport.Recovery(a.logger),
	}
	if len(a.config.CORSOrigins) > 0 {
		mws = append(mws, transport.CORS(a.config.CORSOrigins))
	}
	mws = append(mws, observability.MetricsMiddleware)
	return transport.Chain(mws...)(a.mux)
}

// InFlight returns the registry of running chat calls.
func (a *Adapter) InFlight() *transport.InFlightRegistry {
	return a.inflight
}

// handleRegister handles POST /register.
func (a *Adapter) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if !a.decode(w, r, &req) {
		return
	}

	u, err := a.accounts.CreateUser(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusCreated, u)
}

// handleLogin handles POST /login. On success it sets the session cookie
// and, when bearer tokens are enabled, returns a token for the same session.
func (a *Adapter) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if !a.decode(w, r, &req) {
		return
	}

	u, err := a.accounts.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	token, err := a.accounts.CreateSession(r.Context(), u.Username)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	resp := api.LoginResponse{Username: u.Username, Message: "login successful"}
	if a.tokens != nil {
		resp.Token, err = a.tokens.Issue(u.Username, token)
		if err != nil {
			if endErr := a.accounts.EndSession(r.Context(), token); endErr != nil {
				a.logger.Warn("ending session after token failure",
					"request_id", transport.RequestIDFromContext(r.Context()),
					"username", u.Username,
					"error", endErr,
				)
			}
			a.writeError(w, r, err)
			return
		}
	}

	http.SetCookie(w, a.sessionCookie(token, int(a.accounts.SessionTTL().Seconds())))
	transport.WriteJSON(w, http.StatusOK, resp)
}

// handleLogout handles POST /logout. It ends the caller's session when one
// is presented and always clears the cookie, so a stale cookie can still
// log out.
func (a *Adapter) handleLogout(w http.ResponseWriter, r *http.Request) {
	chain := &auth.AuthChain{Authenticators: a.authenticators, DefaultDecision: auth.Yes}
	result := chain.Authenticate(r.Context(), r)
	if result.Decision == auth.Yes && result.Identity != nil && result.Identity.SessionID != "" {
		if err := a.accounts.EndSession(r.Context(), result.Identity.SessionID); err != nil {
			a.writeError(w, r, err)
			return
		}
		a.logger.Info("user logged out", "username", result.Identity.Subject)
	}

	http.SetCookie(w, a.sessionCookie("", -1))
	transport.WriteJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// handleMe handles GET /me.
func (a *Adapter) handleMe(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	if id.Anonymous() {
		transport.WriteAPIError(w, api.NewUnauthorizedError("authentication required"))
		return
	}

	u, err := a.accounts.User(r.Context(), id.Subject)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, u)
}

// handleChat handles POST /chat.
func (a *Adapter) handleChat(w http.ResponseWriter, r *http.Request) {
	var req api.ChatRequest
	if !a.decode(w, r, &req) {
		return
	}

	userID, ok := a.chatUser(w, r, req.UserID)
	if !ok {
		return
	}

	callID := transport.RequestIDFromContext(r.Context())
	if callID == "" {
		callID = api.NewMessageID()
	}
	ctx, release := a.inflight.Track(r.Context(), callID)
	defer release()

	reply, err := a.chat.Send(ctx, userID, req.Content)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, reply)
}

// handleHistory handles GET /chat/history.
func (a *Adapter) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.chatUser(w, r, r.URL.Query().Get("userId"))
	if !ok {
		return
	}

	msgs, err := a.chat.History(r.Context(), userID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, api.HistoryResponse{UserID: userID, Messages: msgs})
}

// handleHealth handles GET /healthz.
func (a *Adapter) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for _, hc := range a.health {
		if err := hc.HealthCheck(ctx); err != nil {
			a.logger.Warn("health check failed", "error", err)
			transport.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// chatUser picks the chat log for the caller. Authenticated callers always
// use their own username; anonymous callers use the requested ID or the
// configured default.
func (a *Adapter) chatUser(w http.ResponseWriter, r *http.Request, requested string) (string, bool) {
	id := auth.IdentityFromContext(r.Context())
	if !id.Anonymous() {
		return id.Subject, true
	}
	if !a.config.AllowAnonymous {
		transport.WriteAPIError(w, api.NewUnauthorizedError("authentication required"))
		return "", false
	}

	requested = strings.TrimSpace(requested)
	if requested == "" {
		return a.config.AnonymousUserID, true
	}
	if len(requested) > 128 {
		transport.WriteAPIError(w, api.NewInvalidRequestError("userId", "userId must be at most 128 bytes"))
		return "", false
	}
	return requested, true
}

// decode validates the content type and decodes a bounded JSON body into v.
// It writes the error response and returns false on failure.
func (a *Adapter) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || mt != "application/json" {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("content_type", "Content-Type must be application/json"),
				http.StatusUnsupportedMediaType,
			)
			return false
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("body", fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)),
				http.StatusRequestEntityTooLarge,
			)
			return false
		}
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("body", "invalid JSON: "+err.Error()),
			http.StatusBadRequest,
		)
		return false
	}
	return true
}

// writeError logs err and writes its client-facing mapping.
func (a *Adapter) writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := transport.APIErrorFrom(err)
	status := transport.HTTPStatusFromError(apiErr)

	attrs := []any{
		"request_id", transport.RequestIDFromContext(r.Context()),
		"path", r.URL.Path,
		"status", status,
		"error", err,
	}
	if kind := relay.KindOf(err); kind != "" {
		attrs = append(attrs, "relay_kind", string(kind), "relay_retryable", kind.Retryable())
	}
	if status >= 500 {
		a.logger.Error("request failed", attrs...)
	} else {
		a.logger.Debug("request rejected", attrs...)
	}

	transport.WriteAPIError(w, apiErr)
}

// sessionCookie builds the session cookie. A negative maxAge deletes it.
func (a *Adapter) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     a.config.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   a.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}
