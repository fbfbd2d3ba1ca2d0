package model

import (
	"fmt"
	"strings"
	"time"
)

// DefaultTime is used when a reminder has no time of day.
const DefaultTime = "09:00"

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Reminder is a single scheduled notification. The whole collection is
// persisted as one ordered JSON array, so field names are part of the
// stored format.
type Reminder struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Date      string     `json:"date"`
	Time      string     `json:"time"`
	Category  string     `json:"category,omitempty"`
	Priority  string     `json:"priority,omitempty"`
	Notes     string     `json:"notes,omitempty"`
	Sent      bool       `json:"sent"`
	SentAt    *time.Time `json:"sentAt,omitempty"`
	Cancelled bool       `json:"cancelled"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Pending reports whether the reminder is still eligible for delivery.
func (r Reminder) Pending() bool {
	return !r.Sent && !r.Cancelled
}

// SameEntry reports whether o is the same logical reminder as r. An upsert
// replaces an entry with a fresh one, so the id alone is not enough.
func (r Reminder) SameEntry(o Reminder) bool {
	return r.ID == o.ID && r.CreatedAt.Equal(o.CreatedAt)
}

// DueAt combines Date and Time in loc. A blank time means DefaultTime.
func (r Reminder) DueAt(loc *time.Location) (time.Time, error) {
	return DueInstant(r.Date, r.Time, loc)
}

// DueInstant parses a calendar date and a local time of day in loc.
// Seconds are accepted on the time but not required.
func DueInstant(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	clock = strings.TrimSpace(clock)
	if clock == "" {
		clock = DefaultTime
	}
	date = strings.TrimSpace(date)

	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, date+" "+clock, loc)
	if err == nil {
		return t, nil
	}
	t, err2 := time.ParseInLocation(DateLayout+" "+TimeLayout+":05", date+" "+clock, loc)
	if err2 == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("parse due time %q %q: %w", date, clock, err)
}

// MarkSent records a successful delivery. It never clears an earlier mark.
func (r *Reminder) MarkSent(at time.Time) {
	if r.Sent {
		return
	}
	at = at.UTC()
	r.Sent = true
	r.SentAt = &at
}

// Cancel tombstones the reminder.
func (r *Reminder) Cancel() {
	r.Cancelled = true
}

// Counts summarises a collection by delivery state.
type Counts struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Sent      int `json:"sent"`
	Cancelled int `json:"cancelled"`
}

// Count tallies reminders. A reminder that is both sent and cancelled
// counts in both buckets.
func Count(reminders []Reminder) Counts {
	c := Counts{Total: len(reminders)}
	for _, r := range reminders {
		if r.Sent {
			c.Sent++
		}
		if r.Cancelled {
			c.Cancelled++
		}
		if r.Pending() {
			c.Pending++
		}
	}
	return c
}

// Clone returns a deep copy so callers can mutate without aliasing a
// loaded snapshot.
func Clone(reminders []Reminder) []Reminder {
	out := make([]Reminder, len(reminders))
	copy(out, reminders)
	for i := range out {
		if out[i].SentAt != nil {
			at := *out[i].SentAt
			out[i].SentAt = &at
		}
	}
	return out
}
