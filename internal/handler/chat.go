package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/palaver-ai/chat-platform/internal/middleware"
	"github.com/palaver-ai/chat-platform/internal/model"
	"github.com/palaver-ai/chat-platform/internal/service"
	"github.com/palaver-ai/chat-platform/pkg/logger"
	"github.com/palaver-ai/chat-platform/pkg/metrics"
)

// LinePrefix marks payload lines on the chat response stream. Lines
// without it are ignored by consumers.
const LinePrefix = "data: "

// ConversationIDHeader carries the resolved conversation id
// out-of-band so callers can adopt it for subsequent turns.
const ConversationIDHeader = "X-Conversation-ID"

// ChatHandler handles the streaming chat endpoint.
type ChatHandler struct {
	chatService *service.ChatService
	logger      *logger.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(chatSvc *service.ChatService, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		chatService: chatSvc,
		logger:      log,
	}
}

// Chat handles POST /api/v1/chat. The response body is a sequence of
// newline-delimited lines; payload lines carry the LinePrefix followed
// by a JSON stream event.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req model.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	prepared, err := h.chatService.Prepare(ctx, userID, &req)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Reason)
			return
		}
		h.logger.Error("failed to prepare chat stream", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to start chat")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set(ConversationIDHeader, prepared.Conversation.ID)
	w.WriteHeader(http.StatusOK)

	metrics.IncrementStreamConnections()
	defer metrics.DecrementStreamConnections()

	_, err = h.chatService.Stream(ctx, userID, prepared, func(delta string) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		return writeStreamEvent(w, flusher, &model.StreamEvent{
			Type: model.StreamEventDelta,
			Text: delta,
		})
	})
	if err != nil {
		h.logger.Error("chat stream failed",
			zap.String("conversation_id", prepared.Conversation.ID),
			zap.Error(err),
		)
		writeStreamEvent(w, flusher, &model.StreamEvent{
			Type:    model.StreamEventError,
			Message: "model invocation failed",
		})
		return
	}

	writeStreamEvent(w, flusher, &model.StreamEvent{Type: model.StreamEventDone})
}

func writeStreamEvent(w http.ResponseWriter, flusher http.Flusher, event *model.StreamEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%s%s\n", LinePrefix, data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
