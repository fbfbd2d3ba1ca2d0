// Package notify delivers reminder notifications.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/nudge/internal/model"
)

// ErrNotConfigured is returned by a notifier missing required credentials.
var ErrNotConfigured = errors.New("notifier not configured")

// Notifier sends one notification for a reminder. A nil error means the
// provider accepted it; implementations are not idempotent.
type Notifier interface {
	Send(ctx context.Context, r model.Reminder) error
}

// Placeholder stands in for blank display fields.
const Placeholder = "—"

// DefaultTitle stands in for a blank title.
const DefaultTitle = "Task"

// Payload holds the display fields of a notification.
type Payload struct {
	Title    string `json:"title"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Category string `json:"category"`
	Priority string `json:"priority"`
	Notes    string `json:"notes"`
}

// ToPayload maps a reminder to display fields, substituting placeholders
// for blanks.
func ToPayload(r model.Reminder) Payload {
	return Payload{
		Title:    orDefault(r.Title, DefaultTitle),
		Date:     orDefault(r.Date, Placeholder),
		Time:     orDefault(r.Time, Placeholder),
		Category: orDefault(r.Category, Placeholder),
		Priority: orDefault(r.Priority, Placeholder),
		Notes:    orDefault(r.Notes, Placeholder),
	}
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// Config selects and configures a notifier.
type Config struct {
	Backend  string
	To       string
	ToName   string
	Timeout  time.Duration
	Postmark PostmarkConfig
	EmailJS  EmailJSConfig
}

// New builds the notifier named by cfg.Backend.
func New(cfg Config, logger *slog.Logger) (Notifier, error) {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	if cfg.Timeout <= 0 {
		httpClient.Timeout = 10 * time.Second
	}

	switch cfg.Backend {
	case "", "log":
		return NewLog(logger), nil
	case "postmark":
		return NewPostmark(cfg.Postmark, cfg.To, WithHTTPClient(httpClient)), nil
	case "emailjs":
		return NewEmailJS(cfg.EmailJS, cfg.To, cfg.ToName, WithHTTPClient(httpClient)), nil
	default:
		return nil, fmt.Errorf("unknown notify backend %q", cfg.Backend)
	}
}

type clientOptions struct {
	httpClient *http.Client
}

type Option func(*clientOptions)

func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) {
		o.httpClient = c
	}
}

func applyOptions(opts []Option) clientOptions {
	o := clientOptions{httpClient: http.DefaultClient}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
