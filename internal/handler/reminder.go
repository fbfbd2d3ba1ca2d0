package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dukerupert/nudge/internal/apperr"
	"github.com/dukerupert/nudge/internal/model"
	"github.com/dukerupert/nudge/internal/registry"
	"github.com/dukerupert/nudge/internal/websocket"
)

type ReminderHandler struct {
	registry *registry.Registry
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewReminderHandler(reg *registry.Registry, hub *websocket.Hub, logger *slog.Logger) *ReminderHandler {
	return &ReminderHandler{registry: reg, hub: hub, logger: logger}
}

func (h *ReminderHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

func (h *ReminderHandler) List(w http.ResponseWriter, r *http.Request) {
	reminders, err := h.registry.List(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, reminders)
}

func (h *ReminderHandler) Get(w http.ResponseWriter, r *http.Request) {
	reminder, err := h.registry.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, reminder)
}

type upsertResponse struct {
	OK       bool           `json:"ok"`
	Reminder model.Reminder `json:"reminder"`
}

func (h *ReminderHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req registry.Fields
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeError(w, h.logger, apperr.Validation("upsert", "invalid JSON"))
		return
	}

	reminder, err := h.registry.Upsert(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.broadcast(websocket.ReminderMessage(websocket.ActionUpserted, reminder))

	writeJSON(w, http.StatusOK, upsertResponse{OK: true, Reminder: reminder})
}

type cancelResponse struct {
	OK        bool `json:"ok"`
	Cancelled int  `json:"cancelled"`
}

// Cancel serves both DELETE /reminders/{id} and DELETE /reminders?id=.
// Without an id every reminder is cancelled.
func (h *ReminderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		id = r.URL.Query().Get("id")
	}

	n, err := h.registry.Cancel(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if n > 0 {
		msg := websocket.NewMessage("reminder", websocket.ActionCancelled, id, map[string]any{"count": n})
		h.broadcast(msg)
	}

	writeJSON(w, http.StatusOK, cancelResponse{OK: true, Cancelled: n})
}
