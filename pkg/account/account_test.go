package account

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rhuss/chatrelay/pkg/auth/password"
	"github.com/rhuss/chatrelay/pkg/storage"
	"github.com/rhuss/chatrelay/pkg/storage/memory"
)

var (
	_ UserStore    = (*memory.Users)(nil)
	_ SessionStore = (*memory.Sessions)(nil)
)

func newTestService(t *testing.T) (*Service, *time.Time) {
	t.Helper()
	// The memory session store expires entries against the wall clock.
	now := time.Now().UTC()
	svc := NewService(memory.NewUsers(), memory.NewSessions(), password.SHA256{})
	svc.now = func() time.Time { return now }
	return svc, &now
}

func TestCreateUserAndAuthenticate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	u, err := svc.CreateUser(ctx, " alice ", "alice@example.com", "s3cret")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if u.ID != 1 || u.Username != "alice" {
		t.Errorf("user = %+v", u)
	}
	if u.PasswordDigest == "s3cret" || u.PasswordDigest == "" {
		t.Errorf("PasswordDigest = %q, want a digest", u.PasswordDigest)
	}

	got, err := svc.Authenticate(ctx, "alice", "s3cret")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("ID = %d, want %d", got.ID, u.ID)
	}
}

func TestAuthenticateFailures(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	svc.CreateUser(ctx, "alice", "", "s3cret")

	tests := []struct {
		name, username, password string
	}{
		{"wrong password", "alice", "nope"},
		{"unknown user", "mallory", "s3cret"},
		{"empty password", "alice", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Authenticate(ctx, tt.username, tt.password); !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("expected ErrInvalidCredentials, got %v", err)
			}
		})
	}
}

func TestCreateUserValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateUser(ctx, "  ", "", "pw"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty username: expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.CreateUser(ctx, "alice", "", ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty password: expected ErrInvalidInput, got %v", err)
	}

	svc.CreateUser(ctx, "alice", "", "pw")
	if _, err := svc.CreateUser(ctx, "alice", "", "other"); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("duplicate: expected ErrAlreadyExists, got %v", err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	svc.CreateUser(ctx, "alice", "", "pw")

	token, err := svc.CreateSession(ctx, "alice")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if token == "" {
		t.Fatal("empty token")
	}

	u, err := svc.ResolveSession(ctx, token)
	if err != nil {
		t.Fatalf("ResolveSession failed: %v", err)
	}
	if u.Username != "alice" {
		t.Errorf("Username = %q, want %q", u.Username, "alice")
	}

	if err := svc.EndSession(ctx, token); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}
	if _, err := svc.ResolveSession(ctx, token); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound after logout, got %v", err)
	}

	// Ending twice is fine.
	if err := svc.EndSession(ctx, token); err != nil {
		t.Errorf("second EndSession: %v", err)
	}
}

func TestSessionTokensAreUnique(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tok, err := svc.CreateSession(ctx, "alice")
		if err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}
		if seen[tok] {
			t.Fatalf("duplicate token %q", tok)
		}
		seen[tok] = true
	}
}

func TestSessionExpiry(t *testing.T) {
	users := memory.NewUsers()
	sessions := &fixedSessions{m: map[string]storage.Session{}}
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService(users, sessions, password.SHA256{}, WithSessionTTL(30*time.Minute))
	svc.now = func() time.Time { return now }
	ctx := context.Background()
	svc.CreateUser(ctx, "alice", "", "pw")

	token, _ := svc.CreateSession(ctx, "alice")
	if got := sessions.m[token].ExpiresAt; !got.Equal(now.Add(30 * time.Minute)) {
		t.Errorf("ExpiresAt = %v, want %v", got, now.Add(30*time.Minute))
	}

	now = now.Add(30 * time.Minute)
	if _, err := svc.ResolveSession(ctx, token); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound for expired session, got %v", err)
	}
}

func TestResolveSessionUnknown(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, tok := range []string{"", "no-such-token"} {
		if _, err := svc.ResolveSession(ctx, tok); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("ResolveSession(%q): expected ErrSessionNotFound, got %v", tok, err)
		}
	}
}

func TestResolveSessionStoreError(t *testing.T) {
	boom := errors.New("boom")
	svc := NewService(memory.NewUsers(), &failingSessions{err: boom}, password.SHA256{})

	_, err := svc.ResolveSession(context.Background(), "tok")
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped store error, got %v", err)
	}
	if errors.Is(err, ErrSessionNotFound) {
		t.Error("store failure must not look like a missing session")
	}
}

func TestSeed(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	seed := []SeedUser{
		{Username: "user1", Email: "user1@example.com", Password: "pass1111"},
		{Username: "user2", Email: "user2@example.com", Password: "pass2222"},
	}
	if err := svc.Seed(ctx, seed); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	// Seeding again skips existing users.
	if err := svc.Seed(ctx, seed); err != nil {
		t.Fatalf("second Seed failed: %v", err)
	}

	u, err := svc.Authenticate(ctx, "user2", "pass2222")
	if err != nil {
		t.Fatalf("Authenticate seeded user: %v", err)
	}
	if u.ID != 2 {
		t.Errorf("ID = %d, want 2", u.ID)
	}

	next, _ := svc.CreateUser(ctx, "user3", "", "pw")
	if next.ID != 3 {
		t.Errorf("next ID = %d, want 3", next.ID)
	}

	if err := svc.Seed(ctx, []SeedUser{{Username: "broken"}}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for seed without password, got %v", err)
	}
}

// fixedSessions stores sessions without evaluating expiry, leaving that to
// the service.
type fixedSessions struct {
	m map[string]storage.Session
}

func (f *fixedSessions) PutSession(_ context.Context, s storage.Session) error {
	f.m[s.Token] = s
	return nil
}

func (f *fixedSessions) GetSession(_ context.Context, token string) (storage.Session, error) {
	s, ok := f.m[token]
	if !ok {
		return storage.Session{}, storage.ErrNotFound
	}
	return s, nil
}

func (f *fixedSessions) DeleteSession(_ context.Context, token string) error {
	delete(f.m, token)
	return nil
}

type failingSessions struct {
	err error
}

func (f *failingSessions) PutSession(context.Context, storage.Session) error { return f.err }
func (f *failingSessions) GetSession(context.Context, string) (storage.Session, error) {
	return storage.Session{}, f.err
}
func (f *failingSessions) DeleteSession(context.Context, string) error { return f.err }

func TestUserLookup(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	svc.CreateUser(ctx, "alice", "alice@example.com", "pw")

	u, err := svc.User(ctx, "alice")
	if err != nil {
		t.Fatalf("User failed: %v", err)
	}
	if u.Email != "alice@example.com" {
		t.Errorf("Email = %q, want %q", u.Email, "alice@example.com")
	}

	if _, err := svc.User(ctx, "bob"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected storage.ErrNotFound, got %v", err)
	}
}
