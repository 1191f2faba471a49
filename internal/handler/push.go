package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mwhitfield/saasdash/internal/auth"
	"github.com/mwhitfield/saasdash/internal/notify"
	"github.com/mwhitfield/saasdash/internal/store"
)

// PushHandler registers browser push subscriptions.
type PushHandler struct {
	pushSubs *store.PushStore
	push     *notify.PushService
	logger   *slog.Logger
}

func NewPushHandler(pushSubs *store.PushStore, push *notify.PushService, logger *slog.Logger) *PushHandler {
	return &PushHandler{pushSubs: pushSubs, push: push, logger: logger}
}

// VAPIDKey returns the public key the browser needs to subscribe.
func (h *PushHandler) VAPIDKey(w http.ResponseWriter, r *http.Request) {
	if h.push == nil || !h.push.Configured() {
		writeError(w, http.StatusServiceUnavailable, "push notifications are not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": h.push.VAPIDPublicKey()})
}

type subscribeRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Endpoint == "" || req.Keys.P256dh == "" || req.Keys.Auth == "" {
		writeError(w, http.StatusBadRequest, "endpoint and keys are required")
		return
	}

	sub, err := h.pushSubs.Upsert(userID, req.Endpoint, req.Keys.P256dh, req.Keys.Auth)
	if err != nil {
		h.logger.Error("register push subscription", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to register subscription")
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}
