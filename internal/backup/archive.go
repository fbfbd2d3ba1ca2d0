// Package backup exports and imports the reminder collection, optionally
// encrypted with a passphrase.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dukerupert/nudge/internal/apperr"
	"github.com/dukerupert/nudge/internal/model"
	"github.com/dukerupert/nudge/internal/store"
)

const archiveVersion = 1

type archive struct {
	Version    int              `json:"version"`
	ExportedAt time.Time        `json:"exportedAt"`
	Reminders  []model.Reminder `json:"reminders"`
}

// Export serializes the whole collection. A non-empty passphrase encrypts
// the result.
func Export(ctx context.Context, coll *store.Collection, passphrase string, now time.Time) ([]byte, error) {
	reminders, err := coll.Load(ctx)
	if err != nil {
		return nil, apperr.Store("export", err)
	}
	if reminders == nil {
		reminders = []model.Reminder{}
	}

	data, err := json.MarshalIndent(archive{
		Version:    archiveVersion,
		ExportedAt: now.UTC(),
		Reminders:  reminders,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode archive: %w", err)
	}
	if passphrase == "" {
		return data, nil
	}
	return Seal(data, passphrase)
}

// ImportMode selects how imported reminders combine with stored ones.
type ImportMode int

const (
	// Merge replaces stored reminders that share an id and appends the rest.
	Merge ImportMode = iota
	// Replace discards stored reminders missing from the archive.
	Replace
)

// Import loads an archive into the collection and returns how many
// reminders it contained. An archive entry that is the same reminder as a
// stored one never clears the stored sent or cancelled marks, so restoring
// an older archive cannot cause a second delivery.
func Import(ctx context.Context, coll *store.Collection, data []byte, passphrase string, mode ImportMode) (int, error) {
	if IsSealed(data) {
		if passphrase == "" {
			return 0, ErrPassphraseRequired
		}
		var err error
		if data, err = Open(data, passphrase); err != nil {
			return 0, err
		}
	}

	var a archive
	if err := json.Unmarshal(data, &a); err != nil {
		return 0, apperr.Validation("import", "archive is not valid JSON")
	}
	if a.Version != archiveVersion {
		return 0, apperr.Validation("import", "unsupported archive version %d", a.Version)
	}

	seen := make(map[string]bool, len(a.Reminders))
	for _, r := range a.Reminders {
		if r.ID == "" {
			return 0, apperr.Validation("import", "archive contains a reminder without an id")
		}
		if seen[r.ID] {
			return 0, apperr.Validation("import", "archive contains duplicate id %q", r.ID)
		}
		seen[r.ID] = true
	}

	_, _, err := coll.Update(ctx, func(current []model.Reminder) ([]model.Reminder, bool, error) {
		pos := make(map[string]int, len(current))
		for i, r := range current {
			pos[r.ID] = i
		}

		if mode == Replace {
			next := model.Clone(a.Reminders)
			for i, r := range next {
				if j, ok := pos[r.ID]; ok {
					next[i] = keepDelivery(r, current[j])
				}
			}
			return next, true, nil
		}

		for _, r := range model.Clone(a.Reminders) {
			if i, ok := pos[r.ID]; ok {
				current[i] = keepDelivery(r, current[i])
				continue
			}
			current = append(current, r)
		}
		return current, len(a.Reminders) > 0, nil
	})
	if err != nil {
		return 0, apperr.Store("import", err)
	}
	return len(a.Reminders), nil
}

// keepDelivery returns archived with any terminal state already recorded
// on stored. Entries that are not the same reminder are left as archived.
func keepDelivery(archived, stored model.Reminder) model.Reminder {
	if !archived.SameEntry(stored) {
		return archived
	}
	if stored.Sent && !archived.Sent {
		archived.Sent = true
		archived.SentAt = nil
		if stored.SentAt != nil {
			at := *stored.SentAt
			archived.SentAt = &at
		}
	}
	if stored.Cancelled {
		archived.Cancelled = true
	}
	return archived
}
