package model

import (
	"encoding/json"
	"time"

	"github.com/palaver-ai/chat-platform/internal/content"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether the role is one a caller may submit.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message represents a persisted conversation message. Parts is never
// empty and always opens with a text part.
type Message struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	Role           Role           `json:"role"`
	Parts          []content.Part `json:"parts"`
	CreatedAt      time.Time      `json:"created_at"`
}

// ChatTurn is one submitted turn in a chat request. Either Parts (the
// composer shape) or Content (already-finalized history, a bare string
// or an encoded part array) is populated.
type ChatTurn struct {
	Role    Role            `json:"role"`
	Parts   json.RawMessage `json:"parts,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`
}

// ChatRequest is the body of the streaming chat endpoint.
type ChatRequest struct {
	Messages       []ChatTurn `json:"messages"`
	ConversationID *string    `json:"conversationId"`
}

// ListMessagesResponse is the response for a conversation's history,
// with content re-expanded into part arrays.
type ListMessagesResponse struct {
	Messages []Message `json:"messages"`
}
