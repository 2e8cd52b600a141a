package handler

import (
	"net/http"

	"github.com/palaver-ai/chat-platform/internal/events"
	"github.com/palaver-ai/chat-platform/internal/store"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	store      store.Store
	natsClient *events.Client
}

// NewHealthHandler creates a new health handler. The NATS client may
// be nil when the audit stream is disabled.
func NewHealthHandler(st store.Store, natsClient *events.Client) *HealthHandler {
	return &HealthHandler{
		store:      st,
		natsClient: natsClient,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if _, err := h.store.ListConversations(r.Context(), "readiness-probe"); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "database unavailable",
		})
		return
	}

	if h.natsClient != nil && !h.natsClient.IsConnected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "NATS not connected",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
