package notify

import (
	"context"
	"log/slog"

	"github.com/dukerupert/nudge/internal/model"
)

// Log writes notifications to the logger instead of delivering them.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Send(ctx context.Context, r model.Reminder) error {
	p := ToPayload(r)
	l.logger.InfoContext(ctx, "reminder notification",
		"id", r.ID,
		"title", p.Title,
		"date", p.Date,
		"time", p.Time,
		"category", p.Category,
		"priority", p.Priority,
	)
	return nil
}
