package streamclient

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textTurn(text string) Turn {
	return Turn{Role: "user", Parts: []Part{{Type: "text", Text: text}}}
}

func TestTranscript_SubmitEchoesUserTurn(t *testing.T) {
	tr := NewTranscript()

	require.NoError(t, tr.Submit(textTurn("hello")))

	messages := tr.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "user", messages[0].Role)
	assert.Equal(t, "hello", messages[0].Parts[0].Text)
	assert.True(t, messages[0].Ephemeral)
	assert.True(t, strings.HasPrefix(messages[0].ID, "pending-"))
}

func TestTranscript_SecondSubmitRejectedWhileInFlight(t *testing.T) {
	tr := NewTranscript()

	require.NoError(t, tr.Submit(textTurn("first")))
	assert.ErrorIs(t, tr.Submit(textTurn("second")), ErrRequestInFlight)

	// Settling the first request frees the slot.
	tr.Complete()
	assert.NoError(t, tr.Submit(textTurn("second")))
}

func TestTranscript_AppendDeltaGrowsAssistantMessage(t *testing.T) {
	tr := NewTranscript()
	require.NoError(t, tr.Submit(textTurn("question")))

	tr.AppendDelta("an")
	tr.AppendDelta("swer")

	messages := tr.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, "assistant", messages[1].Role)
	assert.Equal(t, "answer", messages[1].Parts[0].Text)
	assert.True(t, messages[1].Ephemeral)
}

func TestTranscript_FailDiscardsEphemeralEntries(t *testing.T) {
	tr := NewTranscript()
	tr.Apply([]TranscriptMessage{
		{ID: "m1", Role: "user", Parts: []Part{{Type: "text", Text: "old"}}},
	})

	require.NoError(t, tr.Submit(textTurn("doomed")))
	tr.AppendDelta("half-writ")
	tr.Fail()

	// Only the persisted entry survives; no orphaned half-answer.
	messages := tr.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "m1", messages[0].ID)

	// The in-flight slot is released.
	assert.NoError(t, tr.Submit(textTurn("retry")))
}

func TestTranscript_StateTransitions(t *testing.T) {
	tr := NewTranscript()
	assert.Equal(t, TranscriptEmpty, tr.State())

	tr.BeginLoad()
	assert.Equal(t, TranscriptLoading, tr.State())

	tr.Apply([]TranscriptMessage{{ID: "m1", Role: "user"}})
	assert.Equal(t, TranscriptLoaded, tr.State())
}

func TestTranscript_ApplyIsIdempotent(t *testing.T) {
	tr := NewTranscript()
	authoritative := []TranscriptMessage{
		{ID: "m1", Role: "user", Parts: []Part{{Type: "text", Text: "hi"}}},
		{ID: "m2", Role: "assistant", Parts: []Part{{Type: "text", Text: "hello"}}},
	}

	tr.Apply(authoritative)
	first := tr.Messages()

	// Re-applying identical content changes nothing.
	tr.Apply(authoritative)
	assert.Equal(t, first, tr.Messages())

	// Changed content does replace the view.
	tr.Apply(append(authoritative, TranscriptMessage{
		ID: "m3", Role: "user", Parts: []Part{{Type: "text", Text: "more"}},
	}))
	assert.Len(t, tr.Messages(), 3)
}

func TestTranscript_ApplyReplacesEphemeralWithAuthoritative(t *testing.T) {
	tr := NewTranscript()
	require.NoError(t, tr.Submit(textTurn("question")))
	tr.AppendDelta("answer")
	tr.Complete()

	tr.Apply([]TranscriptMessage{
		{ID: "m1", Role: "user", Parts: []Part{{Type: "text", Text: "question"}}},
		{ID: "m2", Role: "assistant", Parts: []Part{{Type: "text", Text: "answer"}}},
	})

	messages := tr.Messages()
	require.Len(t, messages, 2)
	for _, m := range messages {
		assert.False(t, m.Ephemeral)
		assert.False(t, strings.HasPrefix(m.ID, "pending-"))
	}
}
