// Package model defines data structures for the chat platform.
package model

import (
	"time"
)

// Conversation represents a conversation thread. Conversations are
// created lazily on the first persisted turn and never exist empty.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     *string   `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListConversationsResponse is the response for listing conversations,
// ordered by last activity descending.
type ListConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
	Total         int            `json:"total"`
}
