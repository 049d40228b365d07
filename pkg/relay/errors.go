package relay

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a relay failure.
type Kind string

const (
	KindInvalidInput             Kind = "invalid_input"
	KindUpstreamRejected         Kind = "upstream_rejected"
	KindBadUpstreamRequest       Kind = "bad_upstream_request"
	KindUnexpectedUpstreamStatus Kind = "unexpected_upstream_status"
	KindMalformedResponse        Kind = "malformed_response"
	KindRateLimited              Kind = "rate_limited"
	KindUpstreamServerError      Kind = "upstream_server_error"
	KindUpstreamUnavailable      Kind = "upstream_unavailable"
	KindRetriesExhausted         Kind = "retries_exhausted"
	KindCancelled                Kind = "cancelled"
)

// Retryable reports whether the kind comes from a retryable failure, which
// means the retry loop ran out of attempts before the call gave up.
func (k Kind) Retryable() bool {
	switch k {
	case KindRateLimited, KindUpstreamServerError, KindUpstreamUnavailable, KindRetriesExhausted:
		return true
	}
	return false
}

// Error is the error type returned by Client.Relay.
type Error struct {
	Kind    Kind
	Message string

	// StatusCode is the HTTP status of the last upstream response, or 0 when
	// no response was received.
	StatusCode int

	// Body holds (a prefix of) the upstream response body for status failures.
	Body string

	// Attempts is the number of upstream attempts made before failing.
	Attempts int

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("relay ")
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.StatusCode)
	}
	if e.Attempts > 1 {
		fmt.Fprintf(&b, " after %d attempts", e.Attempts)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of a relay error, or "" if err is not one.
func KindOf(err error) Kind {
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr.Kind
	}
	return ""
}

func invalidInput(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Message: fmt.Sprintf(format, args...)}
}
