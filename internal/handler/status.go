package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/nudge/internal/model"
	"github.com/dukerupert/nudge/internal/registry"
)

type StatusHandler struct {
	registry *registry.Registry
	now      func() time.Time
	logger   *slog.Logger
}

func NewStatusHandler(reg *registry.Registry, now func() time.Time, logger *slog.Logger) *StatusHandler {
	if now == nil {
		now = time.Now
	}
	return &StatusHandler{registry: reg, now: now, logger: logger}
}

type statusResponse struct {
	OK   bool      `json:"ok"`
	Time time.Time `json:"time"`
	model.Counts
}

func (h *StatusHandler) Get(w http.ResponseWriter, r *http.Request) {
	counts, err := h.registry.Stats(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{OK: true, Time: h.now().UTC(), Counts: counts})
}
