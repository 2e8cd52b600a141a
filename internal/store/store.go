// Package store provides durable persistence for conversations and
// their append-only message logs.
package store

import (
	"context"
	"errors"

	"github.com/palaver-ai/chat-platform/internal/content"
	"github.com/palaver-ai/chat-platform/internal/model"
)

// ErrNotFound is returned when a conversation does not exist or is not
// owned by the requesting user. Callers on the write path fall back to
// creating a fresh conversation; read paths surface it as 404.
var ErrNotFound = errors.New("conversation not found")

// Store is the conversation store contract. Implementations own the
// persisted records exclusively; callers hold only request-scoped
// copies.
type Store interface {
	// FindOwned fetches a conversation iff it exists and belongs to
	// the user, returning ErrNotFound otherwise.
	FindOwned(ctx context.Context, conversationID, userID string) (*model.Conversation, error)

	// Create creates a new conversation for the user. A nil title is
	// allowed and stays unset until derived from the first turn.
	Create(ctx context.Context, userID string, title *string) (*model.Conversation, error)

	// AppendMessage appends one message to a conversation's log.
	AppendMessage(ctx context.Context, conversationID string, role model.Role, parts []content.Part) (*model.Message, error)

	// Touch bumps the conversation's last-activity time.
	Touch(ctx context.Context, conversationID string) error

	// ListMessages returns the conversation's messages in append order.
	ListMessages(ctx context.Context, conversationID string) ([]model.Message, error)

	// ListConversations returns the user's conversations ordered by
	// last activity descending.
	ListConversations(ctx context.Context, userID string) ([]model.Conversation, error)

	// Delete removes a conversation and cascades to its messages.
	Delete(ctx context.Context, conversationID string) error

	// Close releases the underlying storage handle.
	Close() error
}
