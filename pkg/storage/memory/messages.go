package memory

import (
	"container/list"
	"context"
	"sync"

	"github.com/rhuss/chatrelay/pkg/api"
)

// userLog holds one user's messages and its LRU position.
type userLog struct {
	msgs    []api.ChatMessage
	lruElem *list.Element
}

// Messages is an in-memory, per-user append-only chat log with optional LRU
// eviction of whole user logs.
type Messages struct {
	mu      sync.Mutex
	logs    map[string]*userLog
	lruList *list.List // front = most recently used, back = least recently used
	maxLogs int        // 0 = unlimited
}

// NewMessages creates an empty message store. If maxUsers is 0, the store
// grows without limit. If maxUsers > 0, the log of the least recently used
// user is evicted when a new user would exceed the limit.
func NewMessages(maxUsers int) *Messages {
	return &Messages{
		logs:    make(map[string]*userLog),
		lruList: list.New(),
		maxLogs: maxUsers,
	}
}

// AppendMessages appends msgs to their users' logs in order. All messages
// are applied under one lock, so a concurrent reader sees all or none.
func (s *Messages) AppendMessages(_ context.Context, msgs ...api.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range msgs {
		l := s.touch(m.UserID, true)
		l.msgs = append(l.msgs, m)
	}
	return nil
}

// ListMessages returns a copy of the user's log in insertion order. An
// unknown user has an empty log.
func (s *Messages) ListMessages(_ context.Context, userID string) ([]api.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.touch(userID, false)
	if l == nil {
		return []api.ChatMessage{}, nil
	}
	out := make([]api.ChatMessage, len(l.msgs))
	copy(out, l.msgs)
	return out, nil
}

// HealthCheck always returns nil for the in-memory store.
func (s *Messages) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Messages) Close() error {
	return nil
}

// touch marks the user's log as most recently used, creating it when create
// is set. Must be called with s.mu held.
func (s *Messages) touch(userID string, create bool) *userLog {
	if l, ok := s.logs[userID]; ok {
		s.lruList.MoveToFront(l.lruElem)
		return l
	}
	if !create {
		return nil
	}

	if s.maxLogs > 0 && len(s.logs) >= s.maxLogs {
		s.evictOldest()
	}
	l := &userLog{lruElem: s.lruList.PushFront(userID)}
	s.logs[userID] = l
	return l
}

// evictOldest removes the least recently used log.
// Must be called with s.mu held.
func (s *Messages) evictOldest() {
	back := s.lruList.Back()
	if back == nil {
		return
	}

	userID := back.Value.(string)
	s.lruList.Remove(back)
	delete(s.logs, userID)
}
