package api

import (
	"fmt"
	"strings"
	"time"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ParseRole maps an inbound sender type to a Role. The legacy sender type
// "ai" is accepted as an alias of assistant.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "system":
		return RoleSystem, nil
	case "user":
		return RoleUser, nil
	case "assistant", "ai":
		return RoleAssistant, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Turn is one role-tagged message of a conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// SystemTurn returns a system turn with the given content.
func SystemTurn(content string) Turn { return Turn{Role: RoleSystem, Content: content} }

// UserTurn returns a user turn with the given content.
func UserTurn(content string) Turn { return Turn{Role: RoleUser, Content: content} }

// AssistantTurn returns an assistant turn with the given content.
func AssistantTurn(content string) Turn { return Turn{Role: RoleAssistant, Content: content} }

// ChatMessage is one entry of a user's append-only chat log.
type ChatMessage struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Turn converts the message into a conversation turn.
func (m ChatMessage) Turn() Turn {
	return Turn{Role: m.Role, Content: m.Content}
}

// NewChatMessage creates a message with a fresh ID and the current time.
func NewChatMessage(userID string, role Role, content string) ChatMessage {
	return ChatMessage{
		ID:        NewMessageID(),
		UserID:    userID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// User is a registered account. PasswordDigest never leaves the server.
type User struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	PasswordDigest string    `json:"-"`
	CreatedAt      time.Time `json:"createdAt"`
}

// RegisterRequest is the body of POST /register.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is returned by POST /login. Token is only set when bearer
// tokens are enabled.
type LoginResponse struct {
	Username string `json:"username"`
	Message  string `json:"message"`
	Token    string `json:"token,omitempty"`
}

// ChatRequest is the body of POST /chat. UserID is only honored for
// anonymous callers; authenticated callers always chat as themselves.
type ChatRequest struct {
	UserID  string `json:"userId,omitempty"`
	Content string `json:"content"`
}

// HistoryResponse is returned by GET /chat/history.
type HistoryResponse struct {
	UserID   string        `json:"userId"`
	Messages []ChatMessage `json:"messages"`
}
