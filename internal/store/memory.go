package store

import (
	"context"
	"strconv"
	"sync"

	"github.com/dukerupert/nudge/internal/model"
)

// Memory keeps the serialized collection in process memory. Nothing
// survives a restart; it backs tests and throwaway deployments.
type Memory struct {
	mu      sync.Mutex
	data    []byte
	version uint64
	saves   int
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Load(_ context.Context) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	reminders, err := decodeReminders(m.data)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Reminders: reminders, Version: m.versionString()}, nil
}

func (m *Memory) Save(_ context.Context, reminders []model.Reminder, expected string) (string, error) {
	data, err := encodeReminders(reminders)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if expected != m.versionString() {
		return "", ErrConflict
	}
	m.data = data
	m.version++
	m.saves++
	return m.versionString(), nil
}

// Saves returns how many writes have succeeded.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *Memory) versionString() string {
	if m.version == 0 {
		return ""
	}
	return strconv.FormatUint(m.version, 10)
}
