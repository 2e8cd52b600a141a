package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palaver-ai/chat-platform/internal/content"
	"github.com/palaver-ai/chat-platform/internal/middleware"
	"github.com/palaver-ai/chat-platform/internal/model"
	"github.com/palaver-ai/chat-platform/internal/service"
	"github.com/palaver-ai/chat-platform/internal/store"
	"github.com/palaver-ai/chat-platform/pkg/logger"
)

func newConversationRouter(t *testing.T) (chi.Router, *store.SQLiteStore) {
	t.Helper()
	st, err := store.NewSQLiteMemory()
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	h := NewConversationHandler(service.NewConversationService(st, logger.NewNop()), logger.NewNop())

	r := chi.NewRouter()
	r.Route("/conversations", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Delete("/{id}", h.Delete)
		r.Get("/{id}/messages", h.Messages)
	})
	return r, st
}

func doAuthed(r chi.Router, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	ctx := context.WithValue(req.Context(), middleware.UserIDKey, "user-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req.WithContext(ctx))
	return rec
}

func TestListConversations(t *testing.T) {
	r, st := newConversationRouter(t)
	ctx := context.Background()

	title := "my chat"
	_, err := st.Create(ctx, "user-1", &title)
	require.NoError(t, err)
	_, err = st.Create(ctx, "user-2", nil)
	require.NoError(t, err)

	rec := doAuthed(r, http.MethodGet, "/conversations")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp model.ListConversationsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
	require.Len(t, resp.Conversations, 1)
	require.NotNil(t, resp.Conversations[0].Title)
	assert.Equal(t, "my chat", *resp.Conversations[0].Title)
}

func TestGetConversation(t *testing.T) {
	r, st := newConversationRouter(t)

	conv, err := st.Create(context.Background(), "user-1", nil)
	require.NoError(t, err)

	rec := doAuthed(r, http.MethodGet, "/conversations/"+conv.ID)
	assert.Equal(t, http.StatusOK, rec.Code)

	var got model.Conversation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, conv.ID, got.ID)
}

func TestGetConversation_ForeignIsNotFound(t *testing.T) {
	r, st := newConversationRouter(t)

	conv, err := st.Create(context.Background(), "user-2", nil)
	require.NoError(t, err)

	rec := doAuthed(r, http.MethodGet, "/conversations/"+conv.ID)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetConversation_InvalidID(t *testing.T) {
	r, _ := newConversationRouter(t)

	rec := doAuthed(r, http.MethodGet, "/conversations/not-a-uuid")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMessages(t *testing.T) {
	r, st := newConversationRouter(t)
	ctx := context.Background()

	conv, err := st.Create(ctx, "user-1", nil)
	require.NoError(t, err)
	_, err = st.AppendMessage(ctx, conv.ID, model.RoleUser, []content.Part{
		content.TextPart("see this"),
		content.ImagePart("data:image/png;base64,AAAA"),
	})
	require.NoError(t, err)

	rec := doAuthed(r, http.MethodGet, "/conversations/"+conv.ID+"/messages")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp model.ListMessagesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 1)
	require.Len(t, resp.Messages[0].Parts, 2)
	assert.Equal(t, "see this", resp.Messages[0].Parts[0].Text)
	assert.Equal(t, "data:image/png;base64,AAAA", resp.Messages[0].Parts[1].Image)
}

func TestMessages_AbsentConversation(t *testing.T) {
	r, _ := newConversationRouter(t)

	rec := doAuthed(r, http.MethodGet, "/conversations/00000000-0000-0000-0000-000000000000/messages")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteConversation(t *testing.T) {
	r, st := newConversationRouter(t)

	conv, err := st.Create(context.Background(), "user-1", nil)
	require.NoError(t, err)

	rec := doAuthed(r, http.MethodDelete, "/conversations/"+conv.ID)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doAuthed(r, http.MethodDelete, "/conversations/"+conv.ID)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
