package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/nudge/internal/auth"
	"github.com/dukerupert/nudge/internal/sweep"
)

type SweepHandler struct {
	engine *sweep.Engine
	now    func() time.Time
	logger *slog.Logger
}

func NewSweepHandler(engine *sweep.Engine, now func() time.Time, logger *slog.Logger) *SweepHandler {
	if now == nil {
		now = time.Now
	}
	return &SweepHandler{engine: engine, now: now, logger: logger}
}

type sweepResponse struct {
	OK bool `json:"ok"`
	sweep.Result
}

func (h *SweepHandler) Run(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.Sweep(r.Context(), h.now())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.logger.Info("sweep",
		"trigger", auth.Source(r.Context()),
		"processed", res.Processed,
		"failed", res.Failed,
		"pending", res.Pending,
	)
	writeJSON(w, http.StatusOK, sweepResponse{OK: true, Result: res})
}
