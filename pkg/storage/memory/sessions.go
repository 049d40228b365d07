package memory

import (
	"context"
	"sync"
	"time"

	"github.com/rhuss/chatrelay/pkg/storage"
)

// Sessions is an in-memory session store. Expired sessions are treated as
// missing and removed lazily on lookup.
type Sessions struct {
	mu       sync.Mutex
	sessions map[string]storage.Session
	now      func() time.Time
}

// NewSessions creates an empty session store.
func NewSessions() *Sessions {
	return &Sessions{
		sessions: make(map[string]storage.Session),
		now:      time.Now,
	}
}

// PutSession stores or replaces a session.
func (s *Sessions) PutSession(_ context.Context, sess storage.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sess.Token] = sess
	return nil
}

// GetSession returns the session for token, or storage.ErrNotFound when it
// is unknown or expired.
func (s *Sessions) GetSession(_ context.Context, token string) (storage.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return storage.Session{}, storage.ErrNotFound
	}
	if sess.Expired(s.now()) {
		delete(s.sessions, token)
		return storage.Session{}, storage.ErrNotFound
	}
	return sess, nil
}

// DeleteSession removes a session. Deleting an unknown token is not an error.
func (s *Sessions) DeleteSession(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, token)
	return nil
}

// HealthCheck always returns nil for the in-memory store.
func (s *Sessions) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Sessions) Close() error {
	return nil
}
