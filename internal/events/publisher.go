package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/palaver-ai/chat-platform/internal/model"
)

const (
	// StreamName is the name of the turn-event audit stream.
	StreamName = "CHAT_TURNS"

	// SubjectPrefix is the prefix for all turn-event subjects.
	SubjectPrefix = "turn"
)

// Publisher publishes turn events to JetStream. A nil Publisher is
// valid and drops every event, so the server runs without NATS.
type Publisher struct {
	client *Client
}

// NewPublisher creates a publisher over an established client.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// EnsureStream ensures the audit stream exists.
func (p *Publisher) EnsureStream(ctx context.Context) error {
	if p == nil || p.client == nil {
		return nil
	}
	js := p.client.JetStream()

	if _, err := js.Stream(ctx, StreamName); err == nil {
		return nil
	}

	_, err := js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      30 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Turn persistence outcomes and conversation lifecycle events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// TurnSubject returns the subject for a turn event.
func TurnSubject(conversationID string, eventType model.TurnEventType) string {
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, conversationID, eventType)
}

// PublishTurnEvent publishes a turn event. Best-effort: errors are
// returned for the caller to log, never to act on.
func (p *Publisher) PublishTurnEvent(ctx context.Context, event *model.TurnEvent) error {
	if p == nil || p.client == nil {
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := TurnSubject(event.ConversationID, event.Type)
	if _, err := p.client.JetStream().Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}
