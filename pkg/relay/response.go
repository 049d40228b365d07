package relay

import (
	"encoding/json"
	"strings"
)

// maxErrorBody bounds how much of an upstream body is kept on an Error.
const maxErrorBody = 4096

// replyBody captures every reply shape the proxy is known to return.
// Pointer fields distinguish "absent" from "empty".
type replyBody struct {
	Error    json.RawMessage `json:"error"`
	Choices  *[]replyChoice  `json:"choices"`
	Content  *string         `json:"content"`
	Response *string         `json:"response"`
}

type replyChoice struct {
	Message *struct {
		Content *string `json:"content"`
	} `json:"message"`
}

type errorObject struct {
	Message *string `json:"message"`
}

// ExtractReply parses a 200 response body and returns the trimmed reply text.
// It tries choices[0].message.content, then content, then response.
// An error object in the body yields KindUpstreamRejected; anything
// else that does not produce non-blank text yields KindMalformedResponse.
func ExtractReply(body []byte) (string, *Error) {
	var reply replyBody
	if err := json.Unmarshal(body, &reply); err != nil {
		return "", &Error{
			Kind:    KindMalformedResponse,
			Message: "response is not a JSON object",
			Body:    truncate(body),
			Err:     err,
		}
	}

	if msg, ok := errorMessage(reply.Error); ok {
		return "", &Error{
			Kind:    KindUpstreamRejected,
			Message: msg,
			Body:    truncate(body),
		}
	}

	var text *string
	if reply.Choices != nil {
		choices := *reply.Choices
		if len(choices) == 0 {
			return "", &Error{
				Kind:    KindMalformedResponse,
				Message: "response has an empty choices array",
				Body:    truncate(body),
			}
		}
		if m := choices[0].Message; m != nil && m.Content != nil {
			text = m.Content
		}
	}
	if text == nil {
		text = reply.Content
	}
	if text == nil {
		text = reply.Response
	}

	if text == nil {
		return "", &Error{
			Kind:    KindMalformedResponse,
			Message: "response has no choices[0].message.content, content, or response field",
			Body:    truncate(body),
		}
	}

	trimmed := strings.TrimSpace(*text)
	if trimmed == "" {
		return "", &Error{
			Kind:    KindMalformedResponse,
			Message: "response content is empty",
			Body:    truncate(body),
		}
	}
	return trimmed, nil
}

// errorMessage reports whether raw is an error object carrying a message.
func errorMessage(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var obj errorObject
	if err := json.Unmarshal(raw, &obj); err != nil || obj.Message == nil {
		return "", false
	}
	msg := strings.TrimSpace(*obj.Message)
	if msg == "" {
		msg = "upstream returned an error object"
	}
	return msg, true
}

// describeBody extracts error.message from a failure body when present and
// falls back to the trimmed body text.
func describeBody(body []byte) string {
	var reply struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &reply); err == nil {
		if msg, ok := errorMessage(reply.Error); ok {
			return msg
		}
	}
	return strings.TrimSpace(truncate(body))
}

func truncate(body []byte) string {
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody])
	}
	return string(body)
}
