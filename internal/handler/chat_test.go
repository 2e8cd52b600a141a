package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palaver-ai/chat-platform/internal/content"
	"github.com/palaver-ai/chat-platform/internal/llm"
	"github.com/palaver-ai/chat-platform/internal/middleware"
	"github.com/palaver-ai/chat-platform/internal/model"
	"github.com/palaver-ai/chat-platform/internal/persist"
	"github.com/palaver-ai/chat-platform/internal/service"
	"github.com/palaver-ai/chat-platform/internal/store"
	"github.com/palaver-ai/chat-platform/pkg/logger"
)

// scriptedLLM emits fixed deltas, optionally failing partway through.
type scriptedLLM struct {
	deltas []string
	err    error
}

func (s *scriptedLLM) Name() string { return "scripted" }

func (s *scriptedLLM) CompleteStream(ctx context.Context, req *llm.CompletionRequest, callback llm.StreamCallback) (*llm.CompletionResponse, error) {
	var full string
	for i, d := range s.deltas {
		if err := callback(d, i); err != nil {
			return nil, err
		}
		full += d
	}
	if s.err != nil {
		return nil, s.err
	}
	return &llm.CompletionResponse{Content: full, Model: req.Model}, nil
}

func newChatHandler(t *testing.T, llmClient llm.Client) (*ChatHandler, *store.SQLiteStore, *persist.Queue) {
	t.Helper()
	st, err := store.NewSQLiteMemory()
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	queue := persist.NewQueue(st, nil, logger.NewNop())
	svc := service.NewChatService(st, queue, nil, llmClient, service.ChatConfig{
		TextModel:   "text-model",
		VisionModel: "vision-model",
		MaxTokens:   256,
	}, logger.NewNop())

	return NewChatHandler(svc, logger.NewNop()), st, queue
}

func authedRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	ctx := context.WithValue(req.Context(), middleware.UserIDKey, "user-1")
	return req.WithContext(ctx)
}

// parseStream decodes every prefixed line of a chat response body.
func parseStream(t *testing.T, body string) []model.StreamEvent {
	t.Helper()
	var events []model.StreamEvent
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, LinePrefix) {
			continue
		}
		var ev model.StreamEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, LinePrefix)), &ev))
		events = append(events, ev)
	}
	return events
}

func TestChat_StreamsDeltasAndDone(t *testing.T) {
	h, _, queue := newChatHandler(t, &scriptedLLM{deltas: []string{"Hel", "lo"}})

	body := `{"messages":[{"role":"user","parts":[{"type":"text","text":"hi"}]}]}`
	rec := httptest.NewRecorder()
	h.Chat(rec, authedRequest(http.MethodPost, "/api/v1/chat", body))
	queue.Close()

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get(ConversationIDHeader))

	events := parseStream(t, rec.Body.String())
	require.Len(t, events, 3)
	assert.Equal(t, model.StreamEventDelta, events[0].Type)
	assert.Equal(t, "Hel", events[0].Text)
	assert.Equal(t, "lo", events[1].Text)
	assert.Equal(t, model.StreamEventDone, events[2].Type)
}

func TestChat_PersistsBothTurns(t *testing.T) {
	h, st, queue := newChatHandler(t, &scriptedLLM{deltas: []string{"answer"}})

	body := `{"messages":[{"role":"user","content":"a question"}]}`
	rec := httptest.NewRecorder()
	h.Chat(rec, authedRequest(http.MethodPost, "/api/v1/chat", body))

	convID := rec.Header().Get(ConversationIDHeader)
	require.NotEmpty(t, convID)
	queue.Close()

	messages, err := st.ListMessages(context.Background(), convID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "a question", content.JoinText(messages[0].Parts))
	assert.Equal(t, "answer", content.JoinText(messages[1].Parts))
}

func TestChat_ReusesSuppliedConversation(t *testing.T) {
	h, st, _ := newChatHandler(t, &scriptedLLM{deltas: []string{"ok"}})

	conv, err := st.Create(context.Background(), "user-1", nil)
	require.NoError(t, err)

	body := `{"messages":[{"role":"user","content":"hi"}],"conversationId":"` + conv.ID + `"}`
	rec := httptest.NewRecorder()
	h.Chat(rec, authedRequest(http.MethodPost, "/api/v1/chat", body))

	assert.Equal(t, conv.ID, rec.Header().Get(ConversationIDHeader))
}

func TestChat_MalformedBody(t *testing.T) {
	h, _, _ := newChatHandler(t, &scriptedLLM{})

	rec := httptest.NewRecorder()
	h.Chat(rec, authedRequest(http.MethodPost, "/api/v1/chat", "{not json"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChat_EmptyMessages(t *testing.T) {
	h, _, _ := newChatHandler(t, &scriptedLLM{})

	rec := httptest.NewRecorder()
	h.Chat(rec, authedRequest(http.MethodPost, "/api/v1/chat", `{"messages":[]}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "non-empty")
}

func TestChat_InvalidRole(t *testing.T) {
	h, _, _ := newChatHandler(t, &scriptedLLM{})

	body := `{"messages":[{"role":"system","content":"sneaky"}]}`
	rec := httptest.NewRecorder()
	h.Chat(rec, authedRequest(http.MethodPost, "/api/v1/chat", body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChat_MidStreamFailureEmitsErrorEvent(t *testing.T) {
	h, st, queue := newChatHandler(t, &scriptedLLM{
		deltas: []string{"partial"},
		err:    errors.New("upstream gone"),
	})

	body := `{"messages":[{"role":"user","content":"hi"}]}`
	rec := httptest.NewRecorder()
	h.Chat(rec, authedRequest(http.MethodPost, "/api/v1/chat", body))

	// Headers were already committed, so the failure arrives in-band.
	assert.Equal(t, http.StatusOK, rec.Code)

	events := parseStream(t, rec.Body.String())
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, model.StreamEventError, last.Type)
	assert.NotEmpty(t, last.Message)

	// No assistant turn landed for the failed exchange.
	queue.Close()
	convID := rec.Header().Get(ConversationIDHeader)
	messages, err := st.ListMessages(context.Background(), convID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, model.RoleUser, messages[0].Role)
}
