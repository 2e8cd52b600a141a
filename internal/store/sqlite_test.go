package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palaver-ai/chat-platform/internal/content"
	"github.com/palaver-ai/chat-platform/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLiteMemory()
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func strPtr(s string) *string { return &s }

func TestCreateAndFindOwned(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	conv, err := st.Create(ctx, "user-1", strPtr("First chat"))
	require.NoError(t, err)
	require.NotEmpty(t, conv.ID)
	require.NotNil(t, conv.Title)
	assert.Equal(t, "First chat", *conv.Title)

	found, err := st.FindOwned(ctx, conv.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, conv.ID, found.ID)
	assert.Equal(t, "user-1", found.UserID)
}

func TestFindOwned_WrongOwner(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	conv, err := st.Create(ctx, "user-1", nil)
	require.NoError(t, err)

	_, err = st.FindOwned(ctx, conv.ID, "user-2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindOwned_Absent(t *testing.T) {
	st := newTestStore(t)

	_, err := st.FindOwned(context.Background(), "00000000-0000-0000-0000-000000000000", "user-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAppendAndListMessages(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	conv, err := st.Create(ctx, "user-1", nil)
	require.NoError(t, err)

	userParts := []content.Part{
		content.TextPart("what is in this picture"),
		content.ImagePart("data:image/png;base64,EEEE"),
	}
	_, err = st.AppendMessage(ctx, conv.ID, model.RoleUser, userParts)
	require.NoError(t, err)

	_, err = st.AppendMessage(ctx, conv.ID, model.RoleAssistant,
		[]content.Part{content.TextPart("a cat")})
	require.NoError(t, err)

	messages, err := st.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)

	// Re-read content keeps the original part order and the image
	// reference byte-for-byte.
	assert.Equal(t, model.RoleUser, messages[0].Role)
	require.Len(t, messages[0].Parts, 2)
	assert.Equal(t, "what is in this picture", messages[0].Parts[0].Text)
	assert.Equal(t, "data:image/png;base64,EEEE", messages[0].Parts[1].Image)

	assert.Equal(t, model.RoleAssistant, messages[1].Role)
	assert.Equal(t, []content.Part{content.TextPart("a cat")}, messages[1].Parts)
}

func TestAppendMessage_MissingConversation(t *testing.T) {
	st := newTestStore(t)

	_, err := st.AppendMessage(context.Background(), "missing-conv", model.RoleUser,
		[]content.Part{content.TextPart("hello")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTouch(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	conv, err := st.Create(ctx, "user-1", nil)
	require.NoError(t, err)

	time.Sleep(2 * time.Millisecond)
	require.NoError(t, st.Touch(ctx, conv.ID))

	found, err := st.FindOwned(ctx, conv.ID, "user-1")
	require.NoError(t, err)
	assert.True(t, found.UpdatedAt.After(conv.UpdatedAt))

	assert.ErrorIs(t, st.Touch(ctx, "missing"), ErrNotFound)
}

func TestListConversations_ActivityOrder(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	first, err := st.Create(ctx, "user-1", strPtr("first"))
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := st.Create(ctx, "user-1", strPtr("second"))
	require.NoError(t, err)

	// Other users' conversations stay invisible.
	_, err = st.Create(ctx, "user-2", strPtr("other"))
	require.NoError(t, err)

	convs, err := st.ListConversations(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, second.ID, convs[0].ID)
	assert.Equal(t, first.ID, convs[1].ID)

	// Touching the older one moves it to the front.
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, st.Touch(ctx, first.ID))

	convs, err = st.ListConversations(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, convs[0].ID)
}

func TestDelete_Cascades(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	conv, err := st.Create(ctx, "user-1", nil)
	require.NoError(t, err)
	_, err = st.AppendMessage(ctx, conv.ID, model.RoleUser,
		[]content.Part{content.TextPart("hi")})
	require.NoError(t, err)

	require.NoError(t, st.Delete(ctx, conv.ID))

	_, err = st.FindOwned(ctx, conv.ID, "user-1")
	assert.ErrorIs(t, err, ErrNotFound)

	messages, err := st.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, messages)

	assert.True(t, errors.Is(st.Delete(ctx, conv.ID), ErrNotFound))
}
