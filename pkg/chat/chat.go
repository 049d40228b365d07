// Package chat ties the relay client to the per-user message log.
//
// Send builds the conversation from the system prompt, recent history and
// the new user message, relays it, and records the exchange. A failed relay
// leaves the log untouched.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rhuss/chatrelay/pkg/api"
	"github.com/rhuss/chatrelay/pkg/relay"
)

// DefaultSystemPrompt is used when Config.SystemPrompt is empty.
const DefaultSystemPrompt = "You are a helpful assistant."

// Relayer sends a conversation upstream. *relay.Client implements it.
type Relayer interface {
	Relay(ctx context.Context, turns []api.Turn, opts relay.Options) (string, error)
}

// MessageStore is a per-user append-only message log.
type MessageStore interface {
	// AppendMessages appends all msgs or none.
	AppendMessages(ctx context.Context, msgs ...api.ChatMessage) error

	// ListMessages returns the user's log in insertion order; empty for an
	// unknown user.
	ListMessages(ctx context.Context, userID string) ([]api.ChatMessage, error)
}

// Config controls conversation assembly.
type Config struct {
	// SystemPrompt opens every conversation. Default: DefaultSystemPrompt.
	SystemPrompt string

	// ContextTurns is how many prior messages are sent with each prompt.
	// Zero sends none.
	ContextTurns int

	// Relay carries per-call generation parameters.
	Relay relay.Options
}

// Service implements chat sends and history.
type Service struct {
	relayer Relayer
	store   MessageStore
	cfg     Config
	logger  *slog.Logger
}

// NewService creates a chat service.
func NewService(relayer Relayer, store MessageStore, cfg Config, logger *slog.Logger) *Service {
	if strings.TrimSpace(cfg.SystemPrompt) == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.ContextTurns < 0 {
		cfg.ContextTurns = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{relayer: relayer, store: store, cfg: cfg, logger: logger}
}

// Send relays content for userID and returns the assistant's message.
// Relay failures are returned unchanged so callers can inspect the
// *relay.Error.
func (s *Service) Send(ctx context.Context, userID, content string) (*api.ChatMessage, error) {
	history, err := s.store.ListMessages(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	turns := s.buildTurns(history, content)

	opts := s.cfg.Relay
	opts.CallerID = userID

	reply, err := s.relayer.Relay(ctx, turns, opts)
	if err != nil {
		s.logger.Debug("chat relay failed", "user_id", userID, "kind", relay.KindOf(err))
		return nil, err
	}

	userMsg := api.NewChatMessage(userID, api.RoleUser, strings.TrimSpace(content))
	replyMsg := api.NewChatMessage(userID, api.RoleAssistant, reply)
	if err := s.store.AppendMessages(ctx, userMsg, replyMsg); err != nil {
		return nil, fmt.Errorf("saving messages: %w", err)
	}

	s.logger.Debug("chat exchange stored", "user_id", userID, "message_id", replyMsg.ID)
	return &replyMsg, nil
}

// History returns the user's messages in order.
func (s *Service) History(ctx context.Context, userID string) ([]api.ChatMessage, error) {
	msgs, err := s.store.ListMessages(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	return msgs, nil
}

// buildTurns assembles [system] + recent history + the new user turn.
func (s *Service) buildTurns(history []api.ChatMessage, content string) []api.Turn {
	if n := s.cfg.ContextTurns; len(history) > n {
		history = history[len(history)-n:]
	}

	turns := make([]api.Turn, 0, len(history)+2)
	turns = append(turns, api.SystemTurn(s.cfg.SystemPrompt))
	for _, m := range history {
		turns = append(turns, m.Turn())
	}
	return append(turns, api.UserTurn(content))
}
