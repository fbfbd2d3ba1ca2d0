package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dukerupert/nudge/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status and a {"error","message"} body. Only the
// caller-safe message is written; the full chain goes to the log.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	if status >= 500 {
		logger.Error("request failed", "kind", kind, "error", err)
	}
	writeJSON(w, status, map[string]string{
		"error":   string(kind),
		"message": apperr.MessageOf(err),
	})
}
