package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestLoggerLevels(t *testing.T) {
	tests := []struct {
		status    int
		wantLevel string
	}{
		{http.StatusOK, "level=INFO"},
		{http.StatusNotFound, "level=WARN"},
		{http.StatusInternalServerError, "level=ERROR"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))
		h := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			w.Write([]byte("body"))
		}))

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/reminders", nil))

		out := buf.String()
		if !strings.Contains(out, tt.wantLevel) {
			t.Errorf("status %d logged %q, want %s", tt.status, out, tt.wantLevel)
		}
		if !strings.Contains(out, "path=/reminders") || !strings.Contains(out, "bytes=4") {
			t.Errorf("missing attrs in %q", out)
		}
	}
}
