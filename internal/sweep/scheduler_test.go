package sweep

import (
	"context"
	"testing"
	"time"
)

func TestSchedulerSweepsOnInterval(t *testing.T) {
	_, coll := seed(t, reminder("r1"))
	n := &fakeNotifier{}
	s := NewScheduler(NewEngine(coll, n, testLogger()), 10*time.Millisecond, testLogger())
	s.now = func() time.Time { return due }

	s.Start(context.Background())
	deadline := time.Now().Add(2 * time.Second)
	for len(n.Sent()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	// Let a few more ticks pass; the sent mark must stop repeats.
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	if got := n.Sent(); len(got) != 1 {
		t.Errorf("notifications = %v, want exactly one", got)
	}
	if r := load(t, coll)["r1"]; !r.Sent {
		t.Errorf("r1 not marked sent: %+v", r)
	}
}

func TestSchedulerStopWithoutStart(t *testing.T) {
	s := NewScheduler(nil, 0, testLogger())
	s.Stop()
	if s.interval != time.Minute {
		t.Errorf("interval = %v, want default of one minute", s.interval)
	}
}
