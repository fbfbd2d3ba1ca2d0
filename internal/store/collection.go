package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dukerupert/nudge/internal/model"
)

// MutateFunc edits a private copy of the collection. Returning changed=false
// skips the write entirely.
type MutateFunc func(reminders []model.Reminder) (next []model.Reminder, changed bool, err error)

// Collection serialises read-modify-write cycles on the reminders key.
// Writers in this process queue on a mutex; writers in other processes are
// detected through the backend's version check and the mutation is re-run
// on a fresh load.
type Collection struct {
	mu         sync.Mutex
	backend    Backend
	maxRetries uint64
	backoff    time.Duration
}

type Option func(*Collection)

// WithRetries sets how many times a conflicting update is re-applied.
func WithRetries(n uint64, base time.Duration) Option {
	return func(c *Collection) {
		c.maxRetries = n
		c.backoff = base
	}
}

func NewCollection(backend Backend, opts ...Option) *Collection {
	c := &Collection{
		backend:    backend,
		maxRetries: 5,
		backoff:    20 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load returns a copy of the stored collection.
func (c *Collection) Load(ctx context.Context) ([]model.Reminder, error) {
	snap, err := c.backend.Load(ctx)
	if err != nil {
		return nil, err
	}
	return model.Clone(snap.Reminders), nil
}

// Update loads the collection, applies fn and saves the result if fn
// reports a change. It returns the collection as it stands after the call
// and whether a write happened. Errors returned by fn are passed through
// unchanged.
func (c *Collection) Update(ctx context.Context, fn MutateFunc) ([]model.Reminder, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		result []model.Reminder
		wrote  bool
	)
	b := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		snap, err := c.backend.Load(ctx)
		if err != nil {
			return err
		}
		next, changed, err := fn(model.Clone(snap.Reminders))
		if err != nil {
			return err
		}
		if !changed {
			result, wrote = next, false
			return nil
		}
		if _, err := c.backend.Save(ctx, next, snap.Version); err != nil {
			if errors.Is(err, ErrConflict) {
				return retry.RetryableError(err)
			}
			return err
		}
		result, wrote = next, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return result, wrote, nil
}
