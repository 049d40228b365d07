package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rhuss/chatrelay/pkg/api"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "messages.json")
	s, err := New(path)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestMissingFileIsEmpty(t *testing.T) {
	s, _ := newTestStore(t)

	got, err := s.ListMessages(context.Background(), "alice")
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("got %v, want empty non-nil slice", got)
	}
	if err := s.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck: %v", err)
	}
}

func TestAppendAndList(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()

	m1 := api.NewChatMessage("alice", api.RoleUser, "hi")
	m2 := api.NewChatMessage("alice", api.RoleAssistant, "hello")
	if err := s.AppendMessages(ctx, m1, m2); err != nil {
		t.Fatalf("AppendMessages failed: %v", err)
	}
	m3 := api.NewChatMessage("bob", api.RoleUser, "hey")
	if err := s.AppendMessages(ctx, m3); err != nil {
		t.Fatalf("AppendMessages failed: %v", err)
	}

	got, err := s.ListMessages(ctx, "alice")
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(got) != 2 || got[0].ID != m1.ID || got[1].ID != m2.ID {
		t.Errorf("alice log = %+v", got)
	}
	if got[1].Role != api.RoleAssistant || got[1].Content != "hello" {
		t.Errorf("second message = %+v", got[1])
	}

	// The file holds a userId-keyed document.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading file: %v", err)
	}
	var doc map[string][]api.ChatMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("file is not a JSON document: %v", err)
	}
	if len(doc["alice"]) != 2 || len(doc["bob"]) != 1 {
		t.Errorf("document = %v", doc)
	}
}

func TestPersistsAcrossInstances(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()

	m := api.NewChatMessage("alice", api.RoleUser, "remember me")
	if err := s.AppendMessages(ctx, m); err != nil {
		t.Fatalf("AppendMessages failed: %v", err)
	}

	reopened, err := New(path)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.ListMessages(ctx, "alice")
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(got) != 1 || got[0].Content != "remember me" {
		t.Errorf("got %+v", got)
	}
}

func TestCorruptFile(t *testing.T) {
	s, path := newTestStore(t)

	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("writing file: %v", err)
	}
	if _, err := s.ListMessages(context.Background(), "alice"); err == nil {
		t.Error("expected decode error")
	}
	if err := s.AppendMessages(context.Background(), api.NewChatMessage("alice", api.RoleUser, "x")); err == nil {
		t.Error("expected decode error on append")
	}
}

func TestConcurrentAppend(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := s.AppendMessages(ctx, api.NewChatMessage("alice", api.RoleUser, fmt.Sprintf("m%d", i))); err != nil {
				t.Errorf("AppendMessages: %v", err)
			}
		}(i)
	}
	wg.Wait()

	got, err := s.ListMessages(ctx, "alice")
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(got) != 20 {
		t.Errorf("len = %d, want 20", len(got))
	}
}

func TestNewRequiresPath(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("expected error for empty path")
	}
}
