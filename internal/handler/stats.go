package handler

import (
	"log/slog"
	"net/http"

	"github.com/mwhitfield/saasdash/internal/store"
)

// StatsHandler serves the aggregate numbers behind the overview and analytics
// pages.
type StatsHandler struct {
	profiles *store.ProfileStore
	logger   *slog.Logger
}

func NewStatsHandler(profiles *store.ProfileStore, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{profiles: profiles, logger: logger}
}

func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	stats, err := h.profiles.Stats()
	if err != nil {
		h.logger.Error("load stats", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
