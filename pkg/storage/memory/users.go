package memory

import (
	"context"
	"sync"
	"time"

	"github.com/rhuss/chatrelay/pkg/api"
	"github.com/rhuss/chatrelay/pkg/storage"
)

// Users is an in-memory user store keyed by username. IDs are assigned
// sequentially starting at 1.
type Users struct {
	mu     sync.RWMutex
	byName map[string]*api.User
	nextID int64
}

// NewUsers creates an empty user store.
func NewUsers() *Users {
	return &Users{byName: make(map[string]*api.User)}
}

// CreateUser stores u, assigning its ID and CreatedAt. Returns
// storage.ErrConflict when the username is taken.
func (s *Users) CreateUser(_ context.Context, u *api.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byName[u.Username]; exists {
		return storage.ErrConflict
	}

	s.nextID++
	u.ID = s.nextID
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	stored := *u
	s.byName[u.Username] = &stored
	return nil
}

// GetUser returns a copy of the user with the given username.
func (s *Users) GetUser(_ context.Context, username string) (*api.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byName[username]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *u
	return &cp, nil
}
