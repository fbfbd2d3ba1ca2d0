package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/dukerupert/nudge/internal/model"
)

// errCodeWrongLastSequence is the JetStream API error code for a failed
// expected-revision check.
const errCodeWrongLastSequence jetstream.ErrorCode = 10071

// NATS keeps the collection in a JetStream key-value bucket. Entry
// revisions provide the compare-and-swap.
type NATS struct {
	kv  jetstream.KeyValue
	key string
}

// NewNATS binds to bucket, creating it if needed.
func NewNATS(ctx context.Context, nc *nats.Conn, bucket string) (*NATS, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "nudge reminder collection",
		History:     5,
	})
	if err != nil {
		return nil, fmt.Errorf("key-value bucket %q: %w", bucket, err)
	}
	return &NATS{kv: kv, key: Key}, nil
}

func (n *NATS) Load(ctx context.Context) (Snapshot, error) {
	entry, err := n.kv.Get(ctx, n.key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("get %s: %w", n.key, err)
	}

	reminders, err := decodeReminders(entry.Value())
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Reminders: reminders, Version: strconv.FormatUint(entry.Revision(), 10)}, nil
}

func (n *NATS) Save(ctx context.Context, reminders []model.Reminder, expected string) (string, error) {
	data, err := encodeReminders(reminders)
	if err != nil {
		return "", err
	}

	var rev uint64
	if expected == "" {
		rev, err = n.kv.Create(ctx, n.key, data)
	} else {
		last, perr := strconv.ParseUint(expected, 10, 64)
		if perr != nil {
			return "", fmt.Errorf("parse revision %q: %w", expected, perr)
		}
		rev, err = n.kv.Update(ctx, n.key, data, last)
	}
	if err != nil {
		if isRevisionMismatch(err) {
			return "", ErrConflict
		}
		return "", fmt.Errorf("put %s: %w", n.key, err)
	}
	return strconv.FormatUint(rev, 10), nil
}

func isRevisionMismatch(err error) bool {
	if errors.Is(err, jetstream.ErrKeyExists) {
		return true
	}
	var apiErr *jetstream.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == errCodeWrongLastSequence
}
