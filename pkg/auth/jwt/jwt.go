// Package jwt issues and validates HS256 bearer tokens for logged-in users.
//
// A token carries the username in "sub" and the login session in "sid".
// Validation checks the signature and expiry, then resolves the session so
// that logging out revokes every token issued for it.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/rhuss/chatrelay/pkg/account"
	"github.com/rhuss/chatrelay/pkg/api"
	"github.com/rhuss/chatrelay/pkg/auth"
)

// minSecretLength is the shortest accepted HMAC secret, in bytes.
const minSecretLength = 32

// Resolver maps a session token to its user.
type Resolver interface {
	ResolveSession(ctx context.Context, token string) (*api.User, error)
}

// Config holds the JWT settings.
type Config struct {
	// Secret is the HMAC signing key (required, at least 32 bytes).
	Secret []byte

	// Issuer is set as the "iss" claim and, if non-empty, validated.
	Issuer string

	// TTL is the token lifetime. Default: 1 hour.
	TTL time.Duration
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.TTL == 0 {
		c.TTL = time.Hour
	}
}

// Claims is the token payload.
type Claims struct {
	SessionID string `json:"sid"`
	jwtlib.RegisteredClaims
}

// Authenticator issues tokens and validates bearer tokens.
type Authenticator struct {
	config   Config
	resolver Resolver
	now      func() time.Time
}

// New creates a JWT authenticator.
func New(cfg Config, resolver Resolver) (*Authenticator, error) {
	cfg.applyDefaults()
	if len(cfg.Secret) < minSecretLength {
		return nil, fmt.Errorf("jwt secret must be at least %d bytes", minSecretLength)
	}
	return &Authenticator{config: cfg, resolver: resolver, now: time.Now}, nil
}

// Issue signs a token for username bound to the login session sessionID.
func (a *Authenticator) Issue(username, sessionID string) (string, error) {
	now := a.now()
	claims := Claims{
		SessionID: sessionID,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   username,
			Issuer:    a.config.Issuer,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(a.config.TTL)),
		},
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	s, err := token.SignedString(a.config.Secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return s, nil
}

// Authenticate extracts a bearer token from the Authorization header,
// validates it, and returns an identity on success.
//
// Decision outcomes:
//   - Abstain: no Authorization header or not a Bearer scheme
//   - No: bearer token present but invalid (expired, bad signature, revoked session, etc.)
//   - Yes: valid token for a live session
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) auth.AuthResult {
	header := r.Header.Get("Authorization")
	if header == "" {
		return auth.AuthResult{Decision: auth.Abstain}
	}

	// Must be Bearer token.
	if !strings.HasPrefix(header, "Bearer ") {
		return auth.AuthResult{Decision: auth.Abstain}
	}

	tokenStr := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if tokenStr == "" {
		return deny(errors.New("empty bearer token"))
	}

	claims, err := a.parse(tokenStr)
	if err != nil {
		slog.Debug("JWT validation failed", "error", err)
		return deny(fmt.Errorf("invalid JWT: %w", err))
	}

	u, err := a.resolver.ResolveSession(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, account.ErrSessionNotFound) {
			return deny(auth.ErrInvalidSession)
		}
		slog.Error("session lookup failed", "error", err)
		return deny(fmt.Errorf("session lookup: %w", err))
	}
	if u.Username != claims.Subject {
		return deny(errors.New("token subject does not match session"))
	}

	return auth.AuthResult{
		Decision: auth.Yes,
		Identity: &auth.Identity{
			Subject:   u.Username,
			UserID:    u.ID,
			SessionID: claims.SessionID,
			Method:    "bearer",
		},
		Source: "bearer",
	}
}

// parse verifies the signature and registered claims.
func (a *Authenticator) parse(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(token *jwtlib.Token) (interface{}, error) {
		return a.config.Secret, nil
	}, a.parserOptions()...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token is not valid")
	}
	if claims.Subject == "" {
		return nil, errors.New(`missing "sub" claim`)
	}
	if claims.SessionID == "" {
		return nil, errors.New(`missing "sid" claim`)
	}
	return claims, nil
}

// parserOptions builds JWT parser options based on the configuration.
func (a *Authenticator) parserOptions() []jwtlib.ParserOption {
	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(a.now),
	}

	if a.config.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(a.config.Issuer))
	}

	return opts
}

func deny(err error) auth.AuthResult {
	return auth.AuthResult{Decision: auth.No, Err: err, Source: "bearer"}
}
