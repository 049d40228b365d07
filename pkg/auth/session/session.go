// Package session provides a cookie authenticator that resolves the
// session_id cookie set at login.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/rhuss/chatrelay/pkg/account"
	"github.com/rhuss/chatrelay/pkg/api"
	"github.com/rhuss/chatrelay/pkg/auth"
)

// DefaultCookieName is the name of the session cookie.
const DefaultCookieName = "session_id"

// Resolver maps a session token to its user.
type Resolver interface {
	ResolveSession(ctx context.Context, token string) (*api.User, error)
}

// Authenticator validates session cookies.
type Authenticator struct {
	resolver   Resolver
	cookieName string
}

// New creates a cookie authenticator. An empty cookieName selects
// DefaultCookieName.
func New(resolver Resolver, cookieName string) *Authenticator {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return &Authenticator{resolver: resolver, cookieName: cookieName}
}

// CookieName returns the cookie the authenticator reads.
func (a *Authenticator) CookieName() string {
	return a.cookieName
}

// Authenticate looks up the session cookie.
//
// Decision outcomes:
//   - Abstain: no session cookie, or an empty one
//   - No: the session is unknown or expired, or the lookup failed
//   - Yes: the session resolves to a user
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) auth.AuthResult {
	c, err := r.Cookie(a.cookieName)
	if err != nil || c.Value == "" {
		return auth.AuthResult{Decision: auth.Abstain}
	}

	u, err := a.resolver.ResolveSession(ctx, c.Value)
	if err != nil {
		if !errors.Is(err, account.ErrSessionNotFound) {
			slog.Error("session lookup failed", "error", err)
			err = fmt.Errorf("session lookup: %w", err)
		} else {
			err = auth.ErrInvalidSession
		}
		return auth.AuthResult{Decision: auth.No, Err: err, Source: "session"}
	}

	return auth.AuthResult{
		Decision: auth.Yes,
		Identity: &auth.Identity{
			Subject:   u.Username,
			UserID:    u.ID,
			SessionID: c.Value,
			Method:    "session",
		},
		Source: "session",
	}
}
