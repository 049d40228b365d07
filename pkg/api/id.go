package api

import (
	"github.com/google/uuid"
)

// NewMessageID returns a random UUID string for a chat message.
func NewMessageID() string {
	return uuid.NewString()
}
