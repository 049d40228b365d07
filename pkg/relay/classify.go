package relay

import "net/http"

// Action is what the attempt loop does with one upstream outcome.
type Action int

const (
	// ActionParse means the response is a 200 whose body must be parsed.
	ActionParse Action = iota
	// ActionRetry means the failure is transient.
	ActionRetry
	// ActionFail means the failure is permanent for this input.
	ActionFail
)

func (a Action) String() string {
	switch a {
	case ActionParse:
		return "parse"
	case ActionRetry:
		return "retry"
	case ActionFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Decision is the result of classifying one attempt. For ActionRetry, Kind
// is the error reported if no attempts remain; for ActionFail it is the
// terminal error kind.
type Decision struct {
	Action Action
	Kind   Kind
}

// Classify maps the outcome of one upstream attempt to a Decision. A non-nil
// transportErr (timeout, refused connection, reset, DNS failure) takes
// precedence over statusCode. Caller cancellation must be checked before
// calling Classify.
func Classify(statusCode int, transportErr error) Decision {
	if transportErr != nil {
		return Decision{Action: ActionRetry, Kind: KindUpstreamUnavailable}
	}

	switch {
	case statusCode == http.StatusOK:
		return Decision{Action: ActionParse}
	case statusCode == http.StatusTooManyRequests:
		return Decision{Action: ActionRetry, Kind: KindRateLimited}
	case statusCode >= 500 && statusCode <= 599:
		return Decision{Action: ActionRetry, Kind: KindUpstreamServerError}
	case statusCode >= 400 && statusCode <= 499:
		return Decision{Action: ActionFail, Kind: KindBadUpstreamRequest}
	default:
		return Decision{Action: ActionFail, Kind: KindUnexpectedUpstreamStatus}
	}
}
