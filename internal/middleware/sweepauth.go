package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/nudge/internal/apperr"
	"github.com/dukerupert/nudge/internal/auth"
)

// SweepAuthConfig holds the credentials accepted on the sweep endpoint.
type SweepAuthConfig struct {
	// Secret is a plain shared secret or a bcrypt hash of one.
	Secret string
	// TrustedHeader, when set, admits requests carrying it with
	// TrustedValue. Only enable behind a proxy that strips it from
	// client requests.
	TrustedHeader string
	TrustedValue  string
}

// RequireSweepAuth admits a request that presents the configured bearer
// secret or the trusted scheduler header, and records the trigger source
// in the request context. With nothing configured every request is
// rejected.
func RequireSweepAuth(cfg SweepAuthConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := auth.Caller{Remote: RealIP(r)}

			switch {
			case bearerMatches(r, cfg.Secret):
				caller.Source = auth.SourceBearer
			case trustedHeaderMatches(r, cfg):
				caller.Source = auth.SourceTrusted
			default:
				err := apperr.Auth("sweep", "unauthorized")
				logger.Warn("sweep request rejected", "remote", caller.Remote, "error", err)
				writeAppError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithCaller(r.Context(), caller)))
		})
	}
}

func bearerMatches(r *http.Request, secret string) bool {
	if secret == "" {
		return false
	}
	h := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(h, "Bearer ")
	if !ok {
		return false
	}
	return auth.SecretMatches(secret, strings.TrimSpace(token))
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": kind, "message": message})
}

// writeAppError renders a classified error the same way handlers do.
func writeAppError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	writeError(w, apperr.HTTPStatus(kind), string(kind), apperr.MessageOf(err))
}

func trustedHeaderMatches(r *http.Request, cfg SweepAuthConfig) bool {
	if cfg.TrustedHeader == "" || cfg.TrustedValue == "" {
		return false
	}
	return r.Header.Get(cfg.TrustedHeader) == cfg.TrustedValue
}
