package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/dukerupert/nudge/internal/model"
)

// SQLite keeps the collection in the kv table. The row's integer version
// column provides the compare-and-swap.
type SQLite struct {
	db  *sql.DB
	key string
}

func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db, key: Key}
}

func (s *SQLite) Load(ctx context.Context) (Snapshot, error) {
	var data []byte
	var version int64
	err := s.db.QueryRowContext(ctx, `SELECT value, version FROM kv WHERE key = ?`, s.key).Scan(&data, &version)
	if err == sql.ErrNoRows {
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("load reminders: %w", err)
	}

	reminders, err := decodeReminders(data)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Reminders: reminders, Version: strconv.FormatInt(version, 10)}, nil
}

func (s *SQLite) Save(ctx context.Context, reminders []model.Reminder, expected string) (string, error) {
	data, err := encodeReminders(reminders)
	if err != nil {
		return "", err
	}

	if expected == "" {
		result, err := s.db.ExecContext(ctx,
			`INSERT INTO kv (key, value, version) VALUES (?, ?, 1) ON CONFLICT(key) DO NOTHING`,
			s.key, data,
		)
		if err != nil {
			return "", fmt.Errorf("insert reminders: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return "", ErrConflict
		}
		return "1", nil
	}

	version, err := strconv.ParseInt(expected, 10, 64)
	if err != nil {
		return "", fmt.Errorf("parse version %q: %w", expected, err)
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE kv SET value = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP WHERE key = ? AND version = ?`,
		data, s.key, version,
	)
	if err != nil {
		return "", fmt.Errorf("update reminders: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return "", ErrConflict
	}
	return strconv.FormatInt(version+1, 10), nil
}
