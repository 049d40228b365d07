package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/rhuss/chatrelay/pkg/debug"
)

// AuthDecision represents the three possible outcomes of authentication.
type AuthDecision int

const (
	// Yes means credentials are valid. The chain stops and the identity is used.
	Yes AuthDecision = iota

	// No means credentials are present but invalid. The chain stops and the
	// request is rejected.
	No

	// Abstain means this authenticator cannot handle the credentials type.
	// The chain continues to the next authenticator.
	Abstain
)

func (d AuthDecision) String() string {
	switch d {
	case Yes:
		return "yes"
	case No:
		return "no"
	case Abstain:
		return "abstain"
	default:
		return "unknown"
	}
}

// AuthResult carries the outcome of an authentication attempt.
type AuthResult struct {
	Decision AuthDecision
	Identity *Identity // populated only when Decision == Yes
	Err      error     // populated only when Decision == No

	// Source names the authenticator that decided ("session", "bearer",
	// "default"). Used for logs and metrics.
	Source string
}

// AnonymousSubject is the subject of identities created by the default voter.
const AnonymousSubject = "anonymous"

// Identity represents the caller of a request.
type Identity struct {
	// Subject is the username, or AnonymousSubject (required, non-empty).
	Subject string

	// UserID is the account ID; zero for anonymous callers.
	UserID int64

	// SessionID is the login session backing the identity, if any. Logout
	// ends this session.
	SessionID string

	// Method is how the caller authenticated ("session", "bearer", or
	// "anonymous").
	Method string
}

// Anonymous reports whether the identity belongs to an unauthenticated caller.
func (id *Identity) Anonymous() bool {
	return id == nil || id.Method == "anonymous"
}

// Authenticator examines request credentials and returns a three-outcome vote.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) AuthResult
}

// Sentinel errors.
var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrInvalidSession  = errors.New("session is invalid or expired")
)

// AuthChain evaluates authenticators in order using three-outcome voting.
type AuthChain struct {
	// Authenticators are evaluated left to right.
	Authenticators []Authenticator

	// DefaultDecision is used when all authenticators abstain.
	// Yes admits the caller as anonymous; No rejects the request.
	DefaultDecision AuthDecision
}

// Authenticate runs the chain. Stops on the first Yes or No.
// If all abstain, returns the default decision.
func (c *AuthChain) Authenticate(ctx context.Context, r *http.Request) AuthResult {
	for _, authn := range c.Authenticators {
		result := authn.Authenticate(ctx, r)
		if result.Decision != Abstain {
			debug.Log("auth", "chain decided",
				"path", r.URL.Path,
				"source", result.Source,
				"decision", result.Decision.String(),
			)
			return result
		}
	}
	debug.Log("auth", "all authenticators abstained", "path", r.URL.Path, "default", c.DefaultDecision.String())

	// All abstained: use default.
	if c.DefaultDecision == Yes {
		return AuthResult{
			Decision: Yes,
			Identity: &Identity{Subject: AnonymousSubject, Method: "anonymous"},
			Source:   "default",
		}
	}

	return AuthResult{
		Decision: No,
		Err:      ErrUnauthenticated,
		Source:   "default",
	}
}
