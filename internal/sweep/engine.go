// Package sweep finds reminders that have come due and delivers them.
package sweep

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/nudge/internal/apperr"
	"github.com/dukerupert/nudge/internal/metrics"
	"github.com/dukerupert/nudge/internal/model"
	"github.com/dukerupert/nudge/internal/notify"
	"github.com/dukerupert/nudge/internal/store"
)

const (
	// UpcomingWindow is how far ahead of its due instant a reminder may fire.
	UpcomingWindow = 60 * time.Second
	// GraceWindow is how long after its due instant a reminder still fires.
	GraceWindow = 5 * time.Minute
)

// ErrSweepInProgress is returned when another sweep holds the engine.
var ErrSweepInProgress = errors.New("sweep already in progress")

// Result summarises one sweep.
type Result struct {
	// Processed counts notifications sent, including any whose reminder
	// was replaced before its sent mark could be recorded.
	Processed int `json:"processed"`
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Failed    int `json:"failed"`
}

// IsDue reports whether a pending reminder falls inside the delivery
// window around now. Both window edges are inclusive. Sent or cancelled
// reminders are never due.
func IsDue(r model.Reminder, now time.Time, loc *time.Location) (bool, error) {
	if !r.Pending() {
		return false, nil
	}
	due, err := r.DueAt(loc)
	if err != nil {
		return false, err
	}
	diff := due.Sub(now)
	return diff <= UpcomingWindow && diff >= -GraceWindow, nil
}

type Engine struct {
	mu       sync.Mutex
	coll     *store.Collection
	notifier notify.Notifier
	loc      *time.Location
	metrics  *metrics.Metrics
	onSent   func(model.Reminder)
	logger   *slog.Logger
}

type Option func(*Engine)

// WithLocation sets the zone reminder dates and times are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		e.loc = loc
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithOnSent registers a callback run for each reminder whose sent mark
// was persisted.
func WithOnSent(fn func(model.Reminder)) Option {
	return func(e *Engine) {
		e.onSent = fn
	}
}

func NewEngine(coll *store.Collection, notifier notify.Notifier, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		coll:     coll,
		notifier: notifier,
		loc:      time.UTC,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Sweep delivers every pending reminder due at now and persists the sent
// marks in a single write. Delivery failures are counted and leave the
// reminder pending; store failures abort the sweep.
func (e *Engine) Sweep(ctx context.Context, now time.Time) (Result, error) {
	if !e.mu.TryLock() {
		e.metrics.ObserveSweep(metrics.ResultConflict, 0, 0, 0, 0)
		return Result{}, apperr.Conflict("sweep", "a sweep is already running", ErrSweepInProgress)
	}
	defer e.mu.Unlock()

	start := time.Now()
	reminders, err := e.coll.Load(ctx)
	if err != nil {
		e.metrics.ObserveSweep(metrics.ResultError, 0, 0, 0, 0)
		return Result{}, apperr.Store("sweep", err)
	}

	var (
		delivered []model.Reminder
		failed    int
	)
	for _, r := range reminders {
		if ctx.Err() != nil {
			break
		}
		due, err := IsDue(r, now, e.loc)
		if err != nil {
			e.logger.Debug("skipping reminder with unparseable due time", "id", r.ID, "error", err)
			continue
		}
		if !due {
			continue
		}

		if err := e.notifier.Send(ctx, r); err != nil {
			failed++
			e.logger.Warn("reminder delivery failed", "error", apperr.Delivery("sweep", r.ID, err))
			continue
		}
		delivered = append(delivered, r)
		e.logger.Info("reminder sent", "id", r.ID, "title", r.Title)
	}

	if len(delivered) == 0 {
		c := model.Count(reminders)
		res := Result{Total: c.Total, Pending: c.Pending, Failed: failed}
		e.metrics.ObserveSweep(metrics.ResultOK, time.Since(start), 0, failed, res.Pending)
		return res, nil
	}

	// Notifications already left; persist their marks even if the caller
	// has gone away.
	var marked []model.Reminder
	final, _, err := e.coll.Update(context.WithoutCancel(ctx), func(current []model.Reminder) ([]model.Reminder, bool, error) {
		marked = marked[:0]
		for i := range current {
			for _, d := range delivered {
				if current[i].SameEntry(d) && !current[i].Sent {
					current[i].MarkSent(now)
					marked = append(marked, current[i])
					break
				}
			}
		}
		return current, len(marked) > 0, nil
	})
	if err != nil {
		e.metrics.ObserveSweep(metrics.ResultError, 0, 0, 0, 0)
		e.logger.Error("sent reminders not recorded, they may be delivered again", "count", len(delivered), "error", err)
		return Result{}, apperr.Store("sweep", err)
	}

	if n := len(delivered) - len(marked); n > 0 {
		e.logger.Info("delivered reminders changed during sweep, left pending", "count", n)
	}

	if e.onSent != nil {
		for _, r := range marked {
			e.onSent(r)
		}
	}

	c := model.Count(final)
	res := Result{
		Processed: len(delivered),
		Total:     c.Total,
		Pending:   c.Pending,
		Failed:    failed,
	}
	e.metrics.ObserveSweep(metrics.ResultOK, time.Since(start), res.Processed, failed, res.Pending)
	return res, nil
}
