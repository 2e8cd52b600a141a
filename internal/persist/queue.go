// Package persist writes conversation turns in the background so the
// response stream never waits on storage. Failures are logged,
// counted, and published to the audit stream — they never reach the
// caller.
package persist

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/palaver-ai/chat-platform/internal/content"
	"github.com/palaver-ai/chat-platform/internal/events"
	"github.com/palaver-ai/chat-platform/internal/model"
	"github.com/palaver-ai/chat-platform/internal/store"
	"github.com/palaver-ai/chat-platform/pkg/logger"
	"github.com/palaver-ai/chat-platform/pkg/metrics"
)

// writeTimeout bounds a single background write. The queue must drain
// even when storage hangs.
const writeTimeout = 10 * time.Second

type job struct {
	conversationID string
	userID         string
	role           model.Role
	parts          []content.Part
	touch          bool
}

// Queue is the background turn persister. A single worker drains jobs
// in FIFO order, which also serializes persisted message order across
// concurrent requests: persisted order equals enqueue order.
type Queue struct {
	store  store.Store
	events *events.Publisher
	log    *logger.Logger

	jobs chan job
	wg   sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewQueue creates and starts the persister worker.
func NewQueue(st store.Store, pub *events.Publisher, log *logger.Logger) *Queue {
	q := &Queue{
		store:  st,
		events: pub,
		log:    log,
		jobs:   make(chan job, 256),
	}
	q.wg.Add(1)
	go q.run()
	return q
}

// EnqueueTurn schedules a turn append plus an activity bump. It never
// blocks the caller beyond the buffered channel send and never returns
// an error. Turns enqueued after Close are dropped like any other
// persistence failure.
func (q *Queue) EnqueueTurn(conversationID, userID string, role model.Role, parts []content.Part) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		q.log.Warn("persist queue closed, dropping turn",
			zap.String("conversation_id", conversationID),
			zap.String("role", string(role)),
		)
		metrics.PersistFailuresTotal.WithLabelValues("enqueue").Inc()
		return
	}

	select {
	case q.jobs <- job{conversationID: conversationID, userID: userID, role: role, parts: parts, touch: true}:
		metrics.PersistQueueDepth.Inc()
	default:
		// Queue full: drop rather than block the stream. Same
		// swallow-and-log policy as a failed write.
		q.log.Warn("persist queue full, dropping turn",
			zap.String("conversation_id", conversationID),
			zap.String("role", string(role)),
		)
		metrics.PersistFailuresTotal.WithLabelValues("enqueue").Inc()
	}
}

// Close drains outstanding jobs and stops the worker. Safe to call
// more than once and concurrently with EnqueueTurn; late enqueues are
// dropped rather than panicking on the closed channel.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()
	q.wg.Wait()
}

func (q *Queue) run() {
	defer q.wg.Done()
	for j := range q.jobs {
		metrics.PersistQueueDepth.Dec()
		q.process(j)
	}
}

func (q *Queue) process(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if _, err := q.store.AppendMessage(ctx, j.conversationID, j.role, j.parts); err != nil {
		q.log.Error("failed to persist turn",
			zap.String("conversation_id", j.conversationID),
			zap.String("role", string(j.role)),
			zap.Error(err),
		)
		metrics.PersistFailuresTotal.WithLabelValues("append").Inc()
		q.publish(ctx, j, model.TurnEventPersistFailed, err.Error())
		return
	}

	if j.touch {
		if err := q.store.Touch(ctx, j.conversationID); err != nil {
			q.log.Error("failed to touch conversation",
				zap.String("conversation_id", j.conversationID),
				zap.Error(err),
			)
			metrics.PersistFailuresTotal.WithLabelValues("touch").Inc()
		}
	}

	metrics.MessagesTotal.WithLabelValues(string(j.role)).Inc()
	q.publish(ctx, j, model.TurnEventPersisted, "")
}

func (q *Queue) publish(ctx context.Context, j job, eventType model.TurnEventType, reason string) {
	err := q.events.PublishTurnEvent(ctx, &model.TurnEvent{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: j.conversationID,
		UserID:         j.userID,
		Type:           eventType,
		Role:           j.role,
		Reason:         reason,
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		q.log.Warn("failed to publish turn event", zap.Error(err))
	}
}
