package streamclient

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/google/uuid"
)

// TranscriptState is the transcript's load state. A single explicit
// state machine replaces scattered "have we applied this yet" flags:
// "already applied" is one hash comparison.
type TranscriptState int

const (
	TranscriptEmpty TranscriptState = iota
	TranscriptLoading
	TranscriptLoaded
)

// TranscriptMessage is one visible transcript entry. Ephemeral entries
// carry locally-generated ids and are replaced by persisted ones on
// reload.
type TranscriptMessage struct {
	ID        string
	Role      string
	Parts     []Part
	Ephemeral bool
}

// Transcript is the client-side view of one conversation. All methods
// are safe for concurrent use.
type Transcript struct {
	mu sync.Mutex

	state       TranscriptState
	contentHash string
	messages    []TranscriptMessage

	inFlight    bool
	assistantID string
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{state: TranscriptEmpty}
}

// State returns the current load state.
func (t *Transcript) State() TranscriptState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Messages returns a copy of the visible transcript.
func (t *Transcript) Messages() []TranscriptMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TranscriptMessage, len(t.messages))
	copy(out, t.messages)
	return out
}

// Submit registers an optimistic echo of the user's turn and marks a
// request in flight. Only one request may be pending per transcript;
// a second submission is rejected until the first settles.
func (t *Transcript) Submit(turn Turn) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.inFlight {
		return ErrRequestInFlight
	}

	t.inFlight = true
	t.assistantID = ""
	t.messages = append(t.messages, TranscriptMessage{
		ID:        ephemeralID(),
		Role:      turn.Role,
		Parts:     turn.Parts,
		Ephemeral: true,
	})
	return nil
}

// AppendDelta grows the in-progress assistant message, creating it on
// the first delta. Fragments are appended strictly in arrival order.
func (t *Transcript) AppendDelta(delta string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.assistantID == "" {
		t.assistantID = ephemeralID()
		t.messages = append(t.messages, TranscriptMessage{
			ID:        t.assistantID,
			Role:      "assistant",
			Parts:     []Part{{Type: "text"}},
			Ephemeral: true,
		})
	}

	last := &t.messages[len(t.messages)-1]
	last.Parts[0].Text += delta
}

// Fail discards every ephemeral entry so the transcript never shows a
// half-written or orphaned turn, and releases the in-flight slot.
func (t *Transcript) Fail() {
	t.mu.Lock()
	defer t.mu.Unlock()

	kept := t.messages[:0]
	for _, m := range t.messages {
		if !m.Ephemeral {
			kept = append(kept, m)
		}
	}
	t.messages = kept
	t.inFlight = false
	t.assistantID = ""
}

// Complete releases the in-flight slot after a successful stream. The
// ephemeral entries stay visible until Apply replaces them with the
// authoritative reload.
func (t *Transcript) Complete() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inFlight = false
	t.assistantID = ""
}

// BeginLoad marks an authoritative reload in progress.
func (t *Transcript) BeginLoad() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == TranscriptEmpty {
		t.state = TranscriptLoading
	}
}

// Apply replaces the transcript with the authoritative message list.
// Applying the same content twice is a no-op, so reloads are
// idempotent and safe to repeat.
func (t *Transcript) Apply(messages []TranscriptMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	hash := hashMessages(messages)
	if t.state == TranscriptLoaded && hash == t.contentHash {
		return
	}

	t.messages = make([]TranscriptMessage, len(messages))
	copy(t.messages, messages)
	t.state = TranscriptLoaded
	t.contentHash = hash
}

func ephemeralID() string {
	return "pending-" + uuid.New().String()
}

func hashMessages(messages []TranscriptMessage) string {
	h := sha256.New()
	for _, m := range messages {
		h.Write([]byte(m.ID))
		h.Write([]byte{0})
		h.Write([]byte(m.Role))
		h.Write([]byte{0})
		for _, p := range m.Parts {
			h.Write([]byte(p.Type))
			h.Write([]byte{0})
			h.Write([]byte(p.Text))
			h.Write([]byte{0})
			h.Write([]byte(p.Image))
			h.Write([]byte{0})
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
