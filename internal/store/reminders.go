package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dukerupert/nudge/internal/model"
)

// Key is the single logical key holding the serialized collection.
const Key = "reminders"

// ErrConflict is returned by Backend.Save when the stored version no longer
// matches the expected one.
var ErrConflict = errors.New("reminder collection changed concurrently")

// Snapshot is a loaded collection plus the opaque version it was read at.
// An empty Version means the key has never been written.
type Snapshot struct {
	Reminders []model.Reminder
	Version   string
}

// Backend persists the whole reminder collection under one key. Save is a
// compare-and-swap: it writes only if the stored version still equals
// expected and returns the new version.
type Backend interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, reminders []model.Reminder, expected string) (string, error)
}

func encodeReminders(reminders []model.Reminder) ([]byte, error) {
	if reminders == nil {
		reminders = []model.Reminder{}
	}
	data, err := json.Marshal(reminders)
	if err != nil {
		return nil, fmt.Errorf("encode reminders: %w", err)
	}
	return data, nil
}

func decodeReminders(data []byte) ([]model.Reminder, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var reminders []model.Reminder
	if err := json.Unmarshal(data, &reminders); err != nil {
		return nil, fmt.Errorf("decode reminders: %w", err)
	}
	return reminders, nil
}
