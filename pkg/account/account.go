// Package account manages registered users and their login sessions.
//
// The Service is storage-agnostic: users and sessions live behind the
// UserStore and SessionStore interfaces, and password digests are produced
// by a password.Hasher. Sessions are opaque random tokens with a fixed TTL.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rhuss/chatrelay/pkg/api"
	"github.com/rhuss/chatrelay/pkg/auth/password"
	"github.com/rhuss/chatrelay/pkg/storage"
)

// Sentinel errors returned by the Service.
var (
	ErrAlreadyExists      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrSessionNotFound    = errors.New("session not found or expired")
	ErrInvalidInput       = errors.New("invalid account data")
)

// DefaultSessionTTL is the lifetime of a new session.
const DefaultSessionTTL = time.Hour

// UserStore persists users keyed by username.
type UserStore interface {
	// CreateUser stores u and assigns its ID. Returns storage.ErrConflict
	// when the username is taken.
	CreateUser(ctx context.Context, u *api.User) error

	// GetUser returns storage.ErrNotFound for an unknown username.
	GetUser(ctx context.Context, username string) (*api.User, error)
}

// SessionStore persists sessions keyed by token.
type SessionStore interface {
	PutSession(ctx context.Context, s storage.Session) error

	// GetSession returns storage.ErrNotFound for unknown or expired tokens.
	GetSession(ctx context.Context, token string) (storage.Session, error)

	DeleteSession(ctx context.Context, token string) error
}

// SeedUser is an account created at startup.
type SeedUser struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// Service implements registration, login and session resolution.
type Service struct {
	users    UserStore
	sessions SessionStore
	hasher   password.Hasher
	ttl      time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// Option customizes the Service.
type Option func(*Service)

// WithSessionTTL overrides DefaultSessionTTL.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates an account service.
func NewService(users UserStore, sessions SessionStore, hasher password.Hasher, opts ...Option) *Service {
	s := &Service{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		ttl:      DefaultSessionTTL,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SessionTTL returns the lifetime given to new sessions.
func (s *Service) SessionTTL() time.Duration {
	return s.ttl
}

// CreateUser registers a new account.
func (s *Service) CreateUser(ctx context.Context, username, email, pw string) (*api.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	if pw == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}

	digest, err := s.hasher.Hash(pw)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	u := &api.User{
		Username:       username,
		Email:          email,
		PasswordDigest: digest,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.logger.Info("user registered", "username", u.Username, "user_id", u.ID)
	return u, nil
}

// Authenticate checks a username and password. Unknown users and wrong
// passwords both yield ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, username, pw string) (*api.User, error) {
	u, err := s.users.GetUser(ctx, strings.TrimSpace(username))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}

	if err := s.hasher.Verify(u.PasswordDigest, pw); err != nil {
		if !errors.Is(err, password.ErrMismatch) {
			s.logger.Warn("password verification failed", "username", u.Username, "error", err)
		}
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// User returns the account registered under username. Unknown usernames
// yield storage.ErrNotFound.
func (s *Service) User(ctx context.Context, username string) (*api.User, error) {
	u, err := s.users.GetUser(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("loading user %q: %w", username, err)
	}
	return u, nil
}

// CreateSession starts a session for username and returns its token.
func (s *Service) CreateSession(ctx context.Context, username string) (string, error) {
	token := uuid.NewString()
	sess := storage.Session{
		Token:     token,
		Username:  username,
		ExpiresAt: s.now().Add(s.ttl),
	}
	if err := s.sessions.PutSession(ctx, sess); err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}
	return token, nil
}

// ResolveSession returns the user owning token.
func (s *Service) ResolveSession(ctx context.Context, token string) (*api.User, error) {
	if token == "" {
		return nil, ErrSessionNotFound
	}
	sess, err := s.sessions.GetSession(ctx, token)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if sess.Expired(s.now()) {
		return nil, ErrSessionNotFound
	}

	u, err := s.users.GetUser(ctx, sess.Username)
	if errors.Is(err, storage.ErrNotFound) {
		// The account is gone; the session is useless.
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}
	return u, nil
}

// EndSession deletes the session. Unknown tokens are ignored.
func (s *Service) EndSession(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessions.DeleteSession(ctx, token); err != nil {
		return fmt.Errorf("ending session: %w", err)
	}
	return nil
}

// Seed creates the given accounts, skipping usernames that already exist.
func (s *Service) Seed(ctx context.Context, users []SeedUser) error {
	for _, su := range users {
		_, err := s.CreateUser(ctx, su.Username, su.Email, su.Password)
		if errors.Is(err, ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return fmt.Errorf("seeding user %q: %w", su.Username, err)
		}
	}
	return nil
}
