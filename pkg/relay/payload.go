package relay

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rhuss/chatrelay/pkg/api"
)

// PayloadShape selects how turns are serialized for the upstream proxy.
type PayloadShape string

const (
	// ShapeEnveloped sends {"model", "messages", "temperature", "max_tokens", "user"}.
	ShapeEnveloped PayloadShape = "enveloped"

	// ShapeBare sends the message array alone. Generation parameters are
	// not representable in this shape and are dropped.
	ShapeBare PayloadShape = "bare"
)

// Valid reports whether s is a known shape.
func (s PayloadShape) Valid() bool {
	return s == ShapeEnveloped || s == ShapeBare
}

// chatMessage is one {role, content} pair on the wire.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatEnvelope is the enveloped request body.
type chatEnvelope struct {
	Model       string        `json:"model,omitempty"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	User        string        `json:"user,omitempty"`
}

// translateTurns converts validated turns into wire messages. The input
// slice is never modified.
func translateTurns(turns []api.Turn) ([]chatMessage, error) {
	msgs := make([]chatMessage, 0, len(turns))
	for i, t := range turns {
		role, err := api.ParseRole(string(t.Role))
		if err != nil {
			return nil, fmt.Errorf("turn %d: %w", i, err)
		}
		msgs = append(msgs, chatMessage{
			Role:    string(role),
			Content: strings.TrimSpace(t.Content),
		})
	}
	return msgs, nil
}

// buildPayload serializes turns in the given shape.
func buildPayload(shape PayloadShape, model string, turns []api.Turn, opts Options) ([]byte, error) {
	msgs, err := translateTurns(turns)
	if err != nil {
		return nil, err
	}

	if shape == ShapeBare {
		return json.Marshal(msgs)
	}

	return json.Marshal(chatEnvelope{
		Model:       model,
		Messages:    msgs,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		User:        opts.CallerID,
	})
}
