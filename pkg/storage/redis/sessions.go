// Package redis provides a session store backed by Redis. Sessions are
// stored as plain string keys holding the username, with the session
// lifetime carried by the key's native TTL.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/rhuss/chatrelay/pkg/storage"
)

// DefaultKeyPrefix namespaces session keys.
const DefaultKeyPrefix = "chatrelay:session:"

// Config holds the connection settings.
type Config struct {
	// URL is a redis:// or rediss:// connection URL.
	URL string

	// KeyPrefix overrides DefaultKeyPrefix.
	KeyPrefix string
}

// Sessions is a Redis-backed session store.
type Sessions struct {
	rdb    goredis.UniversalClient
	prefix string
	now    func() time.Time
}

// New connects to Redis and verifies the connection with PING.
func New(ctx context.Context, cfg Config) (*Sessions, error) {
	opt, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	s := NewWithClient(goredis.NewClient(opt), cfg.KeyPrefix)
	if err := s.HealthCheck(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(rdb goredis.UniversalClient, prefix string) *Sessions {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Sessions{rdb: rdb, prefix: prefix, now: time.Now}
}

func (s *Sessions) key(token string) string {
	return s.prefix + token
}

// PutSession stores a session with a TTL matching its expiry. A session that
// is already expired is removed instead.
func (s *Sessions) PutSession(ctx context.Context, sess storage.Session) error {
	var ttl time.Duration
	if !sess.ExpiresAt.IsZero() {
		ttl = sess.ExpiresAt.Sub(s.now())
		if ttl <= 0 {
			return s.DeleteSession(ctx, sess.Token)
		}
	}
	if err := s.rdb.Set(ctx, s.key(sess.Token), sess.Username, ttl).Err(); err != nil {
		return fmt.Errorf("storing session: %w", err)
	}
	return nil
}

// GetSession returns the session for token, or storage.ErrNotFound when the
// key is missing or has expired.
func (s *Sessions) GetSession(ctx context.Context, token string) (storage.Session, error) {
	var (
		get *goredis.StringCmd
		ttl *goredis.DurationCmd
	)
	_, err := s.rdb.Pipelined(ctx, func(p goredis.Pipeliner) error {
		get = p.Get(ctx, s.key(token))
		ttl = p.PTTL(ctx, s.key(token))
		return nil
	})
	if errors.Is(err, goredis.Nil) {
		return storage.Session{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Session{}, fmt.Errorf("loading session: %w", err)
	}

	sess := storage.Session{Token: token, Username: get.Val()}
	if d := ttl.Val(); d > 0 {
		sess.ExpiresAt = s.now().Add(d)
	}
	return sess, nil
}

// DeleteSession removes a session. Deleting an unknown token is not an error.
func (s *Sessions) DeleteSession(ctx context.Context, token string) error {
	if err := s.rdb.Del(ctx, s.key(token)).Err(); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// HealthCheck pings the server.
func (s *Sessions) HealthCheck(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (s *Sessions) Close() error {
	return s.rdb.Close()
}
