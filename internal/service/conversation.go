// Package service provides business logic for the chat platform.
package service

import (
	"context"
	"fmt"

	"github.com/palaver-ai/chat-platform/internal/model"
	"github.com/palaver-ai/chat-platform/internal/store"
	"github.com/palaver-ai/chat-platform/pkg/logger"
)

// ConversationService handles conversation read and lifecycle
// operations. Every operation is owner-checked.
type ConversationService struct {
	store  store.Store
	logger *logger.Logger
}

// NewConversationService creates a new conversation service.
func NewConversationService(st store.Store, log *logger.Logger) *ConversationService {
	return &ConversationService{store: st, logger: log}
}

// Get retrieves a conversation owned by the user.
func (s *ConversationService) Get(ctx context.Context, userID, conversationID string) (*model.Conversation, error) {
	return s.store.FindOwned(ctx, conversationID, userID)
}

// List retrieves the user's conversations, most recently active first.
func (s *ConversationService) List(ctx context.Context, userID string) (*model.ListConversationsResponse, error) {
	convs, err := s.store.ListConversations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return &model.ListConversationsResponse{
		Conversations: convs,
		Total:         len(convs),
	}, nil
}

// Messages returns a conversation's history with content expanded
// into part arrays. Returns store.ErrNotFound when the conversation
// is absent or not owned by the caller.
func (s *ConversationService) Messages(ctx context.Context, userID, conversationID string) (*model.ListMessagesResponse, error) {
	if _, err := s.store.FindOwned(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	messages, err := s.store.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return &model.ListMessagesResponse{Messages: messages}, nil
}

// Delete removes a conversation after an ownership check; messages
// cascade.
func (s *ConversationService) Delete(ctx context.Context, userID, conversationID string) error {
	if _, err := s.store.FindOwned(ctx, conversationID, userID); err != nil {
		return err
	}
	return s.store.Delete(ctx, conversationID)
}
