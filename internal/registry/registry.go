// Package registry manages the reminder collection: create or replace by
// id, soft-cancel, list. It has no timing logic beyond the optional
// past-due check at creation.
package registry

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/nudge/internal/apperr"
	"github.com/dukerupert/nudge/internal/model"
	"github.com/dukerupert/nudge/internal/store"
)

// ErrPastDue is the cause of the validation error returned by Upsert when
// past-due rejection is enabled and the reminder's time has passed.
var ErrPastDue = errors.New("reminder time already passed")

// Fields are the caller-supplied attributes of a reminder.
type Fields struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Category string `json:"category"`
	Priority string `json:"priority"`
	Notes    string `json:"notes"`
}

type Registry struct {
	coll          *store.Collection
	loc           *time.Location
	rejectPastDue bool
	now           func() time.Time
	logger        *slog.Logger
}

type Option func(*Registry)

// WithLocation sets the zone reminder dates and times are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(r *Registry) {
		r.loc = loc
	}
}

// WithRejectPastDue refuses reminders whose due time has already passed.
func WithRejectPastDue(reject bool) Option {
	return func(r *Registry) {
		r.rejectPastDue = reject
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

func New(coll *store.Collection, logger *slog.Logger, opts ...Option) *Registry {
	r := &Registry{
		coll:   coll,
		loc:    time.UTC,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// List returns the stored collection in insertion order. It never returns
// a nil slice.
func (r *Registry) List(ctx context.Context) ([]model.Reminder, error) {
	reminders, err := r.coll.Load(ctx)
	if err != nil {
		return nil, apperr.Store("list", err)
	}
	if reminders == nil {
		reminders = []model.Reminder{}
	}
	return reminders, nil
}

// Get returns the reminder with the given id.
func (r *Registry) Get(ctx context.Context, id string) (model.Reminder, error) {
	reminders, err := r.coll.Load(ctx)
	if err != nil {
		return model.Reminder{}, apperr.Store("get", err)
	}
	if i := indexOf(reminders, id); i >= 0 {
		return reminders[i], nil
	}
	return model.Reminder{}, apperr.NotFound("get", "reminder %q not found", id)
}

// Upsert builds a fresh reminder from f and stores it, replacing any entry
// with the same id in place. Replacement resets delivery state: the new
// entry is a different logical reminder.
func (r *Registry) Upsert(ctx context.Context, f Fields) (model.Reminder, error) {
	entry, err := r.build(f)
	if err != nil {
		return model.Reminder{}, err
	}

	_, _, err = r.coll.Update(ctx, func(reminders []model.Reminder) ([]model.Reminder, bool, error) {
		if i := indexOf(reminders, entry.ID); i >= 0 {
			reminders[i] = entry
		} else {
			reminders = append(reminders, entry)
		}
		return reminders, true, nil
	})
	if err != nil {
		return model.Reminder{}, apperr.Store("upsert", err)
	}

	r.logger.Info("reminder scheduled", "id", entry.ID, "date", entry.Date, "time", entry.Time)
	return entry, nil
}

// Cancel tombstones the reminder with the given id, or every reminder when
// id is empty. It returns how many entries were newly cancelled.
func (r *Registry) Cancel(ctx context.Context, id string) (int, error) {
	id = strings.TrimSpace(id)
	cancelled := 0

	_, _, err := r.coll.Update(ctx, func(reminders []model.Reminder) ([]model.Reminder, bool, error) {
		cancelled = 0
		if id == "" {
			for i := range reminders {
				if !reminders[i].Cancelled {
					reminders[i].Cancel()
					cancelled++
				}
			}
			return reminders, cancelled > 0, nil
		}

		i := indexOf(reminders, id)
		if i < 0 {
			return nil, false, apperr.NotFound("cancel", "reminder %q not found", id)
		}
		if !reminders[i].Cancelled {
			reminders[i].Cancel()
			cancelled = 1
		}
		return reminders, cancelled > 0, nil
	})
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return 0, err
		}
		return 0, apperr.Store("cancel", err)
	}

	if id == "" {
		r.logger.Info("all reminders cancelled", "count", cancelled)
	} else {
		r.logger.Info("reminder cancelled", "id", id)
	}
	return cancelled, nil
}

// Stats counts reminders by delivery state.
func (r *Registry) Stats(ctx context.Context) (model.Counts, error) {
	reminders, err := r.coll.Load(ctx)
	if err != nil {
		return model.Counts{}, apperr.Store("stats", err)
	}
	return model.Count(reminders), nil
}

func (r *Registry) build(f Fields) (model.Reminder, error) {
	entry := model.Reminder{
		ID:        strings.TrimSpace(f.ID),
		Title:     strings.TrimSpace(f.Title),
		Date:      strings.TrimSpace(f.Date),
		Time:      strings.TrimSpace(f.Time),
		Category:  strings.TrimSpace(f.Category),
		Priority:  strings.TrimSpace(f.Priority),
		Notes:     strings.TrimSpace(f.Notes),
		CreatedAt: r.now().UTC(),
	}

	var missing []string
	if entry.ID == "" {
		missing = append(missing, "id")
	}
	if entry.Title == "" {
		missing = append(missing, "title")
	}
	if entry.Date == "" {
		missing = append(missing, "date")
	}
	if len(missing) > 0 {
		return model.Reminder{}, apperr.Validation("upsert", "%s required", strings.Join(missing, ", "))
	}
	if entry.Time == "" {
		entry.Time = model.DefaultTime
	}

	if r.rejectPastDue {
		due, err := entry.DueAt(r.loc)
		if err != nil {
			return model.Reminder{}, apperr.Validation("upsert", "invalid date or time")
		}
		if due.Before(r.now()) {
			return model.Reminder{}, &apperr.Error{
				Kind:    apperr.KindValidation,
				Op:      "upsert",
				Message: "reminder time already passed",
				Err:     ErrPastDue,
			}
		}
	}

	return entry, nil
}

func indexOf(reminders []model.Reminder, id string) int {
	for i := range reminders {
		if reminders[i].ID == id {
			return i
		}
	}
	return -1
}
