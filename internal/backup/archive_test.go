package backup

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/dukerupert/nudge/internal/apperr"
	"github.com/dukerupert/nudge/internal/model"
	"github.com/dukerupert/nudge/internal/store"
	"github.com/dukerupert/nudge/internal/sweep"
)

var exportTime = time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

func collectionWith(t *testing.T, reminders ...model.Reminder) *store.Collection {
	t.Helper()
	m := store.NewMemory()
	if len(reminders) > 0 {
		if _, err := m.Save(context.Background(), reminders, ""); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return store.NewCollection(m)
}

func sample() []model.Reminder {
	sentAt := time.Date(2025, 1, 9, 9, 0, 0, 0, time.UTC)
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return []model.Reminder{
		{ID: "a", Title: "A", Date: "2025-01-09", Time: "09:00", Sent: true, SentAt: &sentAt, CreatedAt: created},
		{ID: "b", Title: "B", Date: "2025-02-01", Time: "10:30", Priority: "high", CreatedAt: created},
	}
}

func TestExportImportEncrypted(t *testing.T) {
	ctx := context.Background()
	src := collectionWith(t, sample()...)

	data, err := Export(ctx, src, "pass", exportTime)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !IsSealed(data) {
		t.Fatal("export with passphrase should be sealed")
	}

	dst := collectionWith(t)
	if _, err := Import(ctx, dst, data, "", Merge); !errors.Is(err, ErrPassphraseRequired) {
		t.Errorf("import without passphrase err = %v", err)
	}

	n, err := Import(ctx, dst, data, "pass", Merge)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if n != 2 {
		t.Errorf("imported %d, want 2", n)
	}
	got, _ := dst.Load(ctx)
	if diff := cmp.Diff(sample(), got); diff != "" {
		t.Errorf("imported collection (-want +got):\n%s", diff)
	}
}

func TestImportMerge(t *testing.T) {
	ctx := context.Background()
	existing := model.Reminder{ID: "b", Title: "old B", Date: "2024-12-01"}
	other := model.Reminder{ID: "z", Title: "Z", Date: "2025-03-01"}
	dst := collectionWith(t, existing, other)

	data, err := Export(ctx, collectionWith(t, sample()...), "", exportTime)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if _, err := Import(ctx, dst, data, "", Merge); err != nil {
		t.Fatalf("import: %v", err)
	}

	got, _ := dst.Load(ctx)
	ids := make([]string, len(got))
	for i, r := range got {
		ids[i] = r.ID
	}
	if diff := cmp.Diff([]string{"b", "z", "a"}, ids); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}
	if got[0].Title != "B" {
		t.Errorf("b not replaced: %+v", got[0])
	}
}

func TestImportReplace(t *testing.T) {
	ctx := context.Background()
	dst := collectionWith(t, model.Reminder{ID: "z", Title: "Z", Date: "2025-03-01"})

	data, _ := Export(ctx, collectionWith(t, sample()...), "", exportTime)
	if _, err := Import(ctx, dst, data, "", Replace); err != nil {
		t.Fatalf("import: %v", err)
	}
	got, _ := dst.Load(ctx)
	if len(got) != 2 || got[0].ID != "a" {
		t.Errorf("collection = %+v", got)
	}
}

func TestImportRejectsBadArchives(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `nope`},
		{"wrong version", `{"version":7,"reminders":[]}`},
		{"missing id", `{"version":1,"reminders":[{"title":"x"}]}`},
		{"duplicate id", `{"version":1,"reminders":[{"id":"a"},{"id":"a"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := collectionWith(t)
			_, err := Import(context.Background(), dst, []byte(tt.data), "", Merge)
			if apperr.KindOf(err) != apperr.KindValidation {
				t.Errorf("kind = %v, want validation (err %v)", apperr.KindOf(err), err)
			}
		})
	}
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (n *recordingNotifier) Send(_ context.Context, r model.Reminder) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, r.ID)
	return nil
}

func TestImportOlderArchiveDoesNotRedeliver(t *testing.T) {
	modes := []struct {
		name string
		mode ImportMode
	}{
		{"merge", Merge},
		{"replace", Replace},
	}
	for _, tt := range modes {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
			coll := collectionWith(t, model.Reminder{ID: "r1", Title: "Pay bill", Date: "2025-01-10", Time: "09:00", CreatedAt: created})

			data, err := Export(ctx, coll, "", exportTime)
			if err != nil {
				t.Fatalf("export: %v", err)
			}

			n := &recordingNotifier{}
			engine := sweep.NewEngine(coll, n, slog.New(slog.NewTextHandler(io.Discard, nil)))
			due := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
			if _, err := engine.Sweep(ctx, due); err != nil {
				t.Fatalf("first sweep: %v", err)
			}

			if _, err := Import(ctx, coll, data, "", tt.mode); err != nil {
				t.Fatalf("import: %v", err)
			}
			got, _ := coll.Load(ctx)
			if len(got) != 1 || !got[0].Sent || got[0].SentAt == nil || !got[0].SentAt.Equal(due) {
				t.Fatalf("after import = %+v, want r1 still sent at %v", got, due)
			}

			if _, err := engine.Sweep(ctx, due.Add(time.Minute)); err != nil {
				t.Fatalf("second sweep: %v", err)
			}
			if diff := cmp.Diff([]string{"r1"}, n.sent); diff != "" {
				t.Errorf("deliveries (-want +got):\n%s", diff)
			}
		})
	}
}

func TestImportKeepsStoredCancellation(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	archived := model.Reminder{ID: "r1", Title: "Restored title", Date: "2025-02-01", CreatedAt: created}
	data, _ := Export(ctx, collectionWith(t, archived), "", exportTime)

	stored := archived
	stored.Title = "Current title"
	stored.Cancelled = true
	dst := collectionWith(t, stored)

	if _, err := Import(ctx, dst, data, "", Merge); err != nil {
		t.Fatalf("import: %v", err)
	}
	got, _ := dst.Load(ctx)
	if !got[0].Cancelled {
		t.Error("cancellation cleared by import")
	}
	if got[0].Title != "Restored title" {
		t.Errorf("title = %q, want archived content", got[0].Title)
	}
}

func TestImportReplacedEntryTakesArchiveState(t *testing.T) {
	ctx := context.Background()
	sentAt := time.Date(2025, 1, 9, 9, 0, 0, 0, time.UTC)
	stored := model.Reminder{ID: "r1", Title: "Old", Date: "2025-01-09", Sent: true, SentAt: &sentAt,
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	dst := collectionWith(t, stored)

	fresh := model.Reminder{ID: "r1", Title: "New", Date: "2025-03-01",
		CreatedAt: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)}
	data, _ := Export(ctx, collectionWith(t, fresh), "", exportTime)

	if _, err := Import(ctx, dst, data, "", Merge); err != nil {
		t.Fatalf("import: %v", err)
	}
	got, _ := dst.Load(ctx)
	if got[0].Sent || !got[0].Pending() {
		t.Errorf("a different reminder under the same id should stay pending: %+v", got[0])
	}
}
