package sweep

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/dukerupert/nudge/internal/apperr"
	"github.com/dukerupert/nudge/internal/metrics"
	"github.com/dukerupert/nudge/internal/model"
	"github.com/dukerupert/nudge/internal/store"
)

var due = time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

// fakeNotifier records deliveries and fails for ids in fail.
type fakeNotifier struct {
	mu     sync.Mutex
	sent   []string
	fail   map[string]bool
	before func(model.Reminder)
}

func (f *fakeNotifier) Send(_ context.Context, r model.Reminder) error {
	if f.before != nil {
		f.before(r)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[r.ID] {
		return errors.New("provider rejected message")
	}
	f.sent = append(f.sent, r.ID)
	return nil
}

func (f *fakeNotifier) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seed(t *testing.T, reminders ...model.Reminder) (*store.Memory, *store.Collection) {
	t.Helper()
	m := store.NewMemory()
	if len(reminders) > 0 {
		if _, err := m.Save(context.Background(), reminders, ""); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return m, store.NewCollection(m)
}

func reminder(id string) model.Reminder {
	return model.Reminder{
		ID:        id,
		Title:     "Reminder " + id,
		Date:      "2025-01-10",
		Time:      "09:00",
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func load(t *testing.T, coll *store.Collection) map[string]model.Reminder {
	t.Helper()
	reminders, err := coll.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	out := make(map[string]model.Reminder, len(reminders))
	for _, r := range reminders {
		out[r.ID] = r
	}
	return out
}

func TestIsDueWindow(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"61s early", due.Add(-61 * time.Second), false},
		{"60s early", due.Add(-60 * time.Second), true},
		{"on time", due, true},
		{"300s late", due.Add(300 * time.Second), true},
		{"301s late", due.Add(301 * time.Second), false},
		{"a day late", due.Add(24 * time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IsDue(reminder("r1"), tt.now, time.UTC)
			if err != nil {
				t.Fatalf("is due: %v", err)
			}
			if got != tt.want {
				t.Errorf("IsDue at %v = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

func TestIsDueTerminalStates(t *testing.T) {
	sent := reminder("a")
	sent.MarkSent(due)
	cancelled := reminder("b")
	cancelled.Cancel()

	for _, r := range []model.Reminder{sent, cancelled} {
		if ok, _ := IsDue(r, due, time.UTC); ok {
			t.Errorf("reminder %s should never be due", r.ID)
		}
	}
}

func TestIsDueUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC-3", -3*60*60)
	// 09:00 at UTC-3 is 12:00 UTC.
	if ok, _ := IsDue(reminder("r1"), due, loc); ok {
		t.Error("reminder should not be due three hours early")
	}
	if ok, _ := IsDue(reminder("r1"), due.Add(3*time.Hour), loc); !ok {
		t.Error("reminder should be due at 12:00 UTC")
	}
}

func TestSweepEndToEnd(t *testing.T) {
	_, coll := seed(t, reminder("r1"))
	n := &fakeNotifier{}
	e := NewEngine(coll, n, testLogger())
	ctx := context.Background()

	first := due.Add(-30 * time.Second)
	res, err := e.Sweep(ctx, first)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res != (Result{Processed: 1, Total: 1, Pending: 0}) {
		t.Errorf("first sweep = %+v", res)
	}

	got := load(t, coll)["r1"]
	if !got.Sent || got.SentAt == nil || !got.SentAt.Equal(first) {
		t.Errorf("r1 after sweep = %+v, want sent at %v", got, first)
	}

	res, err = e.Sweep(ctx, due.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if res.Processed != 0 || res.Pending != 0 {
		t.Errorf("second sweep = %+v", res)
	}
	if len(n.Sent()) != 1 {
		t.Errorf("notifications = %v, want exactly one", n.Sent())
	}
}

func TestSweepIdempotent(t *testing.T) {
	m, coll := seed(t, reminder("r1"), reminder("r2"))
	n := &fakeNotifier{}
	e := NewEngine(coll, n, testLogger())
	ctx := context.Background()

	if _, err := e.Sweep(ctx, due); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	saves := m.Saves()

	res, err := e.Sweep(ctx, due)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.Processed != 0 {
		t.Errorf("processed = %d on repeat sweep", res.Processed)
	}
	if m.Saves() != saves {
		t.Errorf("repeat sweep wrote to the store")
	}
	if len(n.Sent()) != 2 {
		t.Errorf("notifications = %v", n.Sent())
	}
}

func TestSweepPartialFailure(t *testing.T) {
	_, coll := seed(t, reminder("a"), reminder("b"))
	n := &fakeNotifier{fail: map[string]bool{"a": true}}
	e := NewEngine(coll, n, testLogger())

	res, err := e.Sweep(context.Background(), due)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res != (Result{Processed: 1, Total: 2, Pending: 1, Failed: 1}) {
		t.Errorf("result = %+v", res)
	}

	got := load(t, coll)
	if got["a"].Sent || got["a"].SentAt != nil {
		t.Errorf("failed reminder was marked: %+v", got["a"])
	}
	if !got["b"].Sent {
		t.Errorf("delivered reminder not marked: %+v", got["b"])
	}
}

func TestSweepNothingDueDoesNotWrite(t *testing.T) {
	later := reminder("later")
	later.Date = "2025-02-01"
	m, coll := seed(t, later)
	saves := m.Saves()
	e := NewEngine(coll, &fakeNotifier{}, testLogger())

	res, err := e.Sweep(context.Background(), due)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res != (Result{Total: 1, Pending: 1}) {
		t.Errorf("result = %+v", res)
	}
	if m.Saves() != saves {
		t.Error("sweep with nothing due wrote to the store")
	}
}

func TestSweepEmptyStore(t *testing.T) {
	m, coll := seed(t)
	e := NewEngine(coll, &fakeNotifier{}, testLogger())

	res, err := e.Sweep(context.Background(), due)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res != (Result{}) {
		t.Errorf("result = %+v, want zero", res)
	}
	if m.Saves() != 0 {
		t.Error("empty sweep wrote to the store")
	}
}

func TestSweepSkipsCancelled(t *testing.T) {
	a, b := reminder("a"), reminder("b")
	a.Cancel()
	b.MarkSent(due.Add(-time.Hour))
	b.Cancel()
	_, coll := seed(t, a, b)
	n := &fakeNotifier{}
	e := NewEngine(coll, n, testLogger())

	res, err := e.Sweep(context.Background(), due)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.Processed != 0 || len(n.Sent()) != 0 {
		t.Errorf("cancelled reminders delivered: %+v %v", res, n.Sent())
	}
}

func TestSweepSkipsMalformedDates(t *testing.T) {
	bad := reminder("bad")
	bad.Date = "next tuesday"
	_, coll := seed(t, bad, reminder("good"))
	n := &fakeNotifier{}
	e := NewEngine(coll, n, testLogger())

	res, err := e.Sweep(context.Background(), due)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.Processed != 1 || res.Pending != 1 {
		t.Errorf("result = %+v", res)
	}
	if got := load(t, coll)["bad"]; !got.Pending() {
		t.Errorf("malformed reminder changed: %+v", got)
	}
}

func TestSweepDefaultTime(t *testing.T) {
	r := reminder("r1")
	r.Time = ""
	_, coll := seed(t, r)
	e := NewEngine(coll, &fakeNotifier{}, testLogger())

	res, err := e.Sweep(context.Background(), due)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.Processed != 1 {
		t.Errorf("blank time should fire at 09:00, result = %+v", res)
	}
}

func TestSweepInProgress(t *testing.T) {
	_, coll := seed(t, reminder("r1"))
	entered := make(chan struct{})
	release := make(chan struct{})
	n := &fakeNotifier{before: func(model.Reminder) {
		close(entered)
		<-release
	}}
	e := NewEngine(coll, n, testLogger())

	done := make(chan error, 1)
	go func() {
		_, err := e.Sweep(context.Background(), due)
		done <- err
	}()
	<-entered

	_, err := e.Sweep(context.Background(), due)
	if !errors.Is(err, ErrSweepInProgress) {
		t.Errorf("err = %v, want ErrSweepInProgress", err)
	}
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Errorf("kind = %v, want conflict", apperr.KindOf(err))
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	if len(n.Sent()) != 1 {
		t.Errorf("notifications = %v", n.Sent())
	}
}

func TestSweepReplacedDuringDelivery(t *testing.T) {
	_, coll := seed(t, reminder("r1"))
	replaced := reminder("r1")
	replaced.Date = "2025-03-01"
	replaced.CreatedAt = due

	n := &fakeNotifier{before: func(model.Reminder) {
		_, _, err := coll.Update(context.Background(), func(rs []model.Reminder) ([]model.Reminder, bool, error) {
			rs[0] = replaced
			return rs, true, nil
		})
		if err != nil {
			t.Errorf("replace: %v", err)
		}
	}}
	var logs bytes.Buffer
	e := NewEngine(coll, n, slog.New(slog.NewTextHandler(&logs, nil)))

	res, err := e.Sweep(context.Background(), due)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.Processed != 1 || res.Pending != 1 {
		t.Errorf("result = %+v, want one send and the replacement pending", res)
	}
	if !strings.Contains(logs.String(), "left pending") || !strings.Contains(logs.String(), "count=1") {
		t.Errorf("unrecorded send not logged: %s", logs.String())
	}
	got := load(t, coll)["r1"]
	if got.Sent {
		t.Errorf("replacement reminder was marked sent: %+v", got)
	}
	if got.Date != "2025-03-01" {
		t.Errorf("replacement lost: %+v", got)
	}
}

type failingBackend struct{}

func (failingBackend) Load(context.Context) (store.Snapshot, error) {
	return store.Snapshot{}, errors.New("disk on fire")
}

func (failingBackend) Save(context.Context, []model.Reminder, string) (string, error) {
	return "", errors.New("disk on fire")
}

func TestSweepStoreFailure(t *testing.T) {
	n := &fakeNotifier{}
	e := NewEngine(store.NewCollection(failingBackend{}), n, testLogger())

	_, err := e.Sweep(context.Background(), due)
	if apperr.KindOf(err) != apperr.KindStore {
		t.Errorf("kind = %v, want store (err %v)", apperr.KindOf(err), err)
	}
	if len(n.Sent()) != 0 {
		t.Error("delivered despite store failure")
	}
}

func TestSweepOnSentAndMetrics(t *testing.T) {
	_, coll := seed(t, reminder("a"), reminder("b"))
	m := metrics.New(prometheus.NewRegistry())

	var events []string
	e := NewEngine(coll, &fakeNotifier{fail: map[string]bool{"b": true}}, testLogger(),
		WithMetrics(m),
		WithOnSent(func(r model.Reminder) {
			if !r.Sent {
				t.Errorf("hook saw unsent reminder %s", r.ID)
			}
			events = append(events, r.ID)
		}),
	)

	if _, err := e.Sweep(context.Background(), due); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(events) != 1 || events[0] != "a" {
		t.Errorf("events = %v", events)
	}
	if got := testutil.ToFloat64(m.SentTotal); got != 1 {
		t.Errorf("sent metric = %v", got)
	}
	if got := testutil.ToFloat64(m.FailuresTotal); got != 1 {
		t.Errorf("failure metric = %v", got)
	}
	if got := testutil.ToFloat64(m.RemindersPending); got != 1 {
		t.Errorf("pending metric = %v", got)
	}
}
