package handler

import (
	"log/slog"
	"net/http"

	"github.com/mwhitfield/saasdash/internal/model"
	"github.com/mwhitfield/saasdash/internal/store"
)

// UsersHandler serves the user roster for the users page.
type UsersHandler struct {
	profiles *store.ProfileStore
	logger   *slog.Logger
}

func NewUsersHandler(profiles *store.ProfileStore, logger *slog.Logger) *UsersHandler {
	return &UsersHandler{profiles: profiles, logger: logger}
}

// List returns all profiles, optionally filtered by the q query parameter
// matching name or email.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	profiles, err := h.profiles.List(query)
	if err != nil {
		h.logger.Error("list users", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	if profiles == nil {
		profiles = []*model.Profile{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": profiles})
}
