package store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/natefinch/atomic"

	"github.com/dukerupert/nudge/internal/model"
)

// File stores the collection as a JSON array in a single file. Writes hold
// an exclusive lock on a sibling ".lock" file and replace the data file by
// atomic rename, so readers never observe a partial write. The version is
// the SHA-256 of the file contents.
type File struct {
	path string
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Load(_ context.Context) (Snapshot, error) {
	data, version, err := f.read()
	if err != nil {
		return Snapshot{}, err
	}
	reminders, err := decodeReminders(data)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%s: %w", f.path, err)
	}
	return Snapshot{Reminders: reminders, Version: version}, nil
}

func (f *File) Save(ctx context.Context, reminders []model.Reminder, expected string) (string, error) {
	data, err := encodeReminders(reminders)
	if err != nil {
		return "", err
	}

	lock, err := acquireLock(ctx, f.path)
	if err != nil {
		return "", fmt.Errorf("lock %s: %w", f.path, err)
	}
	defer lock.release()

	_, current, err := f.read()
	if err != nil {
		return "", err
	}
	if current != expected {
		return "", ErrConflict
	}

	if err := atomic.WriteFile(f.path, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("write %s: %w", f.path, err)
	}
	return digest(data), nil
}

func (f *File) read() ([]byte, string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", f.path, err)
	}
	return data, digest(data), nil
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
