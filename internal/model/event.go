package model

import (
	"time"
)

// StreamEventType discriminates wire protocol events on the chat
// stream. Consumers ignore unknown types.
type StreamEventType string

const (
	StreamEventDelta StreamEventType = "delta"
	StreamEventDone  StreamEventType = "done"
	StreamEventError StreamEventType = "error"
)

// StreamEvent is one newline-delimited payload line on the chat
// response stream.
type StreamEvent struct {
	Type    StreamEventType `json:"type"`
	Text    string          `json:"text,omitempty"`
	Message string          `json:"message,omitempty"`
}

// TurnEventType classifies persistence audit events.
type TurnEventType string

const (
	TurnEventPersisted       TurnEventType = "persisted"
	TurnEventPersistFailed   TurnEventType = "persist_failed"
	TurnEventConversationNew TurnEventType = "conversation_created"
)

// TurnEvent is published to the audit stream for every background
// persistence outcome, making fire-and-forget failures inspectable.
type TurnEvent struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversation_id"`
	UserID         string        `json:"user_id,omitempty"`
	Type           TurnEventType `json:"type"`
	Role           Role          `json:"role,omitempty"`
	Reason         string        `json:"reason,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}
