package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/palaver-ai/chat-platform/internal/content"
	"github.com/palaver-ai/chat-platform/internal/events"
	"github.com/palaver-ai/chat-platform/internal/llm"
	"github.com/palaver-ai/chat-platform/internal/model"
	"github.com/palaver-ai/chat-platform/internal/persist"
	"github.com/palaver-ai/chat-platform/internal/store"
	"github.com/palaver-ai/chat-platform/pkg/logger"
	"github.com/palaver-ai/chat-platform/pkg/metrics"
)

// systemDirective is the fixed format contract prepended to every
// model invocation.
const systemDirective = "You are a helpful assistant. Answer in GitHub-flavored Markdown. " +
	"Keep answers concise and use code blocks for code."

// ValidationError marks a malformed request envelope. It is a hard
// precondition failure: the caller must fix the request.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// ChatConfig carries the pipeline's model selection settings.
type ChatConfig struct {
	TextModel   string
	VisionModel string
	MaxTokens   int
}

// ChatService orchestrates a chat exchange: normalize the submitted
// turns, resolve or create the conversation, stream the model's
// answer, and persist both turns without blocking the stream.
type ChatService struct {
	store  store.Store
	queue  *persist.Queue
	events *events.Publisher
	llm    llm.Client
	cfg    ChatConfig
	logger *logger.Logger
}

// NewChatService creates a new chat service.
func NewChatService(
	st store.Store,
	queue *persist.Queue,
	pub *events.Publisher,
	llmClient llm.Client,
	cfg ChatConfig,
	log *logger.Logger,
) *ChatService {
	return &ChatService{
		store:  st,
		queue:  queue,
		events: pub,
		llm:    llmClient,
		cfg:    cfg,
		logger: log,
	}
}

// PreparedStream is the resolved request state, computed before any
// bytes are streamed so the conversation id can travel in a response
// header.
type PreparedStream struct {
	Conversation *model.Conversation
	Created      bool
	History      []llm.ChatMessage
	LatestUser   []content.Part
	Model        string
}

// Prepare validates and normalizes the submitted turns and resolves
// the conversation. A supplied conversation id that is absent or owned
// by someone else is treated as "no conversation": the pipeline
// creates a fresh one rather than operating on someone else's data.
func (s *ChatService) Prepare(ctx context.Context, userID string, req *model.ChatRequest) (*PreparedStream, error) {
	if len(req.Messages) == 0 {
		return nil, &ValidationError{Reason: "messages must be a non-empty array"}
	}

	history := make([]llm.ChatMessage, 0, len(req.Messages))
	var latestUser []content.Part
	hasImage := false

	for i, turn := range req.Messages {
		if !turn.Role.Valid() {
			return nil, &ValidationError{Reason: fmt.Sprintf("message %d: missing or invalid role", i)}
		}

		raw := turn.Parts
		if len(raw) == 0 {
			raw = turn.Content
		}
		parts := content.Normalize(raw)

		if content.HasImage(parts) {
			hasImage = true
		}
		if turn.Role == model.RoleUser {
			latestUser = parts
		}

		history = append(history, llm.ChatMessage{
			Role:  string(turn.Role),
			Parts: parts,
		})
	}

	conv, created, err := s.resolveConversation(ctx, userID, req.ConversationID, latestUser)
	if err != nil {
		return nil, err
	}

	modelName := s.cfg.TextModel
	if hasImage {
		modelName = s.cfg.VisionModel
	}

	return &PreparedStream{
		Conversation: conv,
		Created:      created,
		History:      history,
		LatestUser:   latestUser,
		Model:        modelName,
	}, nil
}

func (s *ChatService) resolveConversation(ctx context.Context, userID string, conversationID *string, latestUser []content.Part) (*model.Conversation, bool, error) {
	if conversationID != nil && *conversationID != "" {
		conv, err := s.store.FindOwned(ctx, *conversationID, userID)
		if err == nil {
			return conv, false, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("conversation lookup failed, creating fresh",
				zap.String("conversation_id", *conversationID),
				zap.Error(err),
			)
		}
	}

	title := persist.DeriveTitle(latestUser)
	conv, err := s.store.Create(ctx, userID, &title)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create conversation: %w", err)
	}

	metrics.ConversationsTotal.Inc()
	if err := s.events.PublishTurnEvent(ctx, &model.TurnEvent{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conv.ID,
		UserID:         userID,
		Type:           model.TurnEventConversationNew,
		CreatedAt:      time.Now().UTC(),
	}); err != nil {
		s.logger.Warn("failed to publish conversation event", zap.Error(err))
	}

	return conv, true, nil
}

// Stream relays the model's answer through onDelta while persisting
// the caller's latest turn concurrently. On completion the assistant
// turn is persisted the same way. Persistence never blocks or fails
// the stream.
func (s *ChatService) Stream(ctx context.Context, userID string, p *PreparedStream, onDelta func(delta string) error) (string, error) {
	if p.LatestUser != nil {
		s.queue.EnqueueTurn(p.Conversation.ID, userID, model.RoleUser, p.LatestUser)
	}

	start := time.Now()
	resp, err := s.llm.CompleteStream(ctx, &llm.CompletionRequest{
		Model:     p.Model,
		System:    systemDirective,
		Messages:  p.History,
		MaxTokens: s.cfg.MaxTokens,
	}, func(delta string, index int) error {
		return onDelta(delta)
	})
	if err != nil {
		metrics.RecordLLMStream(p.Model, "error", time.Since(start).Seconds(), 0, 0)
		return "", fmt.Errorf("model stream failed: %w", err)
	}

	s.queue.EnqueueTurn(p.Conversation.ID, userID, model.RoleAssistant,
		[]content.Part{content.TextPart(resp.Content)})

	metrics.RecordLLMStream(resp.Model, "success", time.Since(start).Seconds(), resp.TokensIn, resp.TokensOut)

	return resp.Content, nil
}
