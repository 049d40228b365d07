package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	dto "github.com/prometheus/client_model/go"

	"github.com/rhuss/chatrelay/pkg/observability"
)

func TestMiddleware_NoAuth_Rejects(t *testing.T) {
	chain := &AuthChain{DefaultDecision: No}
	mw := Middleware(chain)

	called := false
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest("GET", "/me", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no auth: status = %d, want 401", rec.Code)
	}
	if called {
		t.Error("handler should not run")
	}

	var body struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Error.Type != "unauthorized" {
		t.Errorf("error type = %q, want %q", body.Error.Type, "unauthorized")
	}
}

func TestMiddleware_InvalidCredentials_CountsFailure(t *testing.T) {
	chain := &AuthChain{
		Authenticators: []Authenticator{
			&mockAuthn{result: AuthResult{Decision: No, Err: ErrInvalidSession, Source: "session"}},
		},
		DefaultDecision: Yes,
	}
	mw := Middleware(chain)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	before := authFailures(t, "session")

	req := httptest.NewRequest("POST", "/chat", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	// A No vote wins even when anonymous callers are allowed.
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	after := authFailures(t, "session")
	if after-before != 1 {
		t.Errorf("auth failures delta = %v, want 1", after-before)
	}
}

func TestMiddleware_ValidAuth_Passes(t *testing.T) {
	chain := &AuthChain{
		Authenticators: []Authenticator{
			&mockAuthn{result: AuthResult{
				Decision: Yes,
				Identity: &Identity{Subject: "alice", UserID: 7, SessionID: "sess-1", Method: "session"},
			}},
		},
		DefaultDecision: No,
	}
	mw := Middleware(chain)

	var got *Identity
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/me", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("valid auth: status = %d, want 200", rec.Code)
	}
	if got == nil || got.Subject != "alice" || got.UserID != 7 || got.SessionID != "sess-1" {
		t.Errorf("identity = %+v", got)
	}
}

func TestMiddleware_AnonymousDefault(t *testing.T) {
	chain := &AuthChain{
		Authenticators:  []Authenticator{&mockAuthn{result: AuthResult{Decision: Abstain}}},
		DefaultDecision: Yes,
	}
	mw := Middleware(chain)

	var got *Identity
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = IdentityFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/chat", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if !got.Anonymous() || got.Subject != AnonymousSubject {
		t.Errorf("identity = %+v, want anonymous", got)
	}
}

func TestMiddleware_EmptySubject_ServerError(t *testing.T) {
	chain := &AuthChain{
		Authenticators: []Authenticator{
			&mockAuthn{result: AuthResult{Decision: Yes, Identity: &Identity{}}},
		},
	}
	mw := Middleware(chain)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/me", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q, want application/json", ct)
	}
}

func TestMiddleware_YesWithoutIdentity_Rejects(t *testing.T) {
	chain := &AuthChain{
		Authenticators: []Authenticator{&mockAuthn{result: AuthResult{Decision: Yes}}},
	}
	mw := Middleware(chain)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/me", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestSentinelErrorsDistinct(t *testing.T) {
	if errors.Is(ErrInvalidSession, ErrUnauthenticated) {
		t.Error("ErrInvalidSession should not match ErrUnauthenticated")
	}
}

func authFailures(t *testing.T, source string) float64 {
	t.Helper()
	var m dto.Metric
	if err := observability.AuthFailuresTotal.WithLabelValues(source).Write(&m); err != nil {
		t.Fatalf("reading counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

// Reuse mockAuthn from auth_test.go (same package).
var _ Authenticator = (*mockAuthn)(nil)
