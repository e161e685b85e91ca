package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/kpisonic1/puppyclass/internal/models"
	"github.com/kpisonic1/puppyclass/internal/service"
)

// PushService defines the interface for push operations required by the
// PushHandler.
type PushService interface {
	// PublicKey returns the VAPID public key, empty when push is disabled.
	PublicKey() string
	// Subscribe stores a push subscription, deduplicated by endpoint.
	Subscribe(ctx context.Context, sub models.PushSubscription) error
	// SendToAll delivers a push message to every subscriber, best effort.
	SendToAll(ctx context.Context, message string)
}

// PushHandler handles HTTP requests for push subscription bookkeeping.
type PushHandler struct {
	PushService PushService
}

// Ping handles GET /api/ping, the liveness probe. Only reachability
// matters; the body is informational.
func Ping(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ok": true,
		"ts": time.Now().UnixMilli(),
	})
}

// PublicKey handles GET /api/publicKey.
func (h *PushHandler) PublicKey(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"publicKey": h.PushService.PublicKey(),
	})
}

// Subscribe handles POST /api/subscriptions. A body without an endpoint
// yields 400.
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var sub models.PushSubscription
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		http.Error(w, "invalid subscription", http.StatusBadRequest)
		return
	}

	if err := h.PushService.Subscribe(r.Context(), sub); err != nil {
		if errors.Is(err, service.ErrInvalidSubscription) {
			http.Error(w, "invalid subscription", http.StatusBadRequest)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{"success": true})
}

// TestPush handles GET /api/testPush, sending a fixed message to all
// subscribers.
func (h *PushHandler) TestPush(w http.ResponseWriter, r *http.Request) {
	h.PushService.SendToAll(r.Context(), "Test push notification")

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{"success": true})
}
