// Package jsonfile provides a message store persisted as a single JSON
// document mapping user IDs to their message logs.
//
// Every read loads the whole file and every write rewrites it, so the store
// suits small deployments only. Access is serialized in-process with a mutex
// and across processes with an advisory lock on a sibling ".lock" file.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/rhuss/chatrelay/pkg/api"
)

// lockRetryDelay is the polling interval while waiting for the file lock.
const lockRetryDelay = 10 * time.Millisecond

// document is the on-disk layout.
type document map[string][]api.ChatMessage

// Store is a file-backed message store.
type Store struct {
	path string
	mu   sync.Mutex // a single Flock must not be shared by concurrent holders
	lock *flock.Flock
}

// New creates a store backed by path. The parent directory is created if
// needed; a missing file is an empty store.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("jsonfile: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("jsonfile: creating directory: %w", err)
	}
	return &Store{
		path: path,
		lock: flock.New(path + ".lock"),
	}, nil
}

// AppendMessages appends msgs to their users' logs in one rewrite of the file.
func (s *Store) AppendMessages(ctx context.Context, msgs ...api.ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("jsonfile: acquiring lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("jsonfile: lock %s not acquired", s.lock.Path())
	}
	defer s.lock.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	for _, m := range msgs {
		doc[m.UserID] = append(doc[m.UserID], m)
	}
	return s.save(doc)
}

// ListMessages returns the user's log in insertion order.
func (s *Store) ListMessages(ctx context.Context, userID string) ([]api.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	locked, err := s.lock.TryRLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("jsonfile: acquiring lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("jsonfile: lock %s not acquired", s.lock.Path())
	}
	defer s.lock.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	msgs := doc[userID]
	if msgs == nil {
		msgs = []api.ChatMessage{}
	}
	return msgs, nil
}

// HealthCheck verifies the file can be read and parsed.
func (s *Store) HealthCheck(ctx context.Context) error {
	_, err := s.ListMessages(ctx, "")
	return err
}

// Close releases the lock file handle.
func (s *Store) Close() error {
	return s.lock.Close()
}

// load reads and decodes the whole file. Must be called with the lock held.
func (s *Store) load() (document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("jsonfile: reading %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return document{}, nil
	}

	doc := document{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("jsonfile: decoding %s: %w", s.path, err)
	}
	return doc, nil
}

// save writes doc to a temp file in the same directory and renames it over
// the store file. Must be called with the exclusive lock held.
func (s *Store) save(doc document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("jsonfile: encoding: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("jsonfile: creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("jsonfile: writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("jsonfile: syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("jsonfile: closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("jsonfile: replacing %s: %w", s.path, err)
	}
	return nil
}
