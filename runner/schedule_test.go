package runner

import (
	"context"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"profilewatch/store"
)

// schedClock lets the scheduler's interval fire a fixed number of times,
// then cancels the context instead.
type schedClock struct {
	fakeClock
	fires  int
	cancel context.CancelFunc
}

func (c *schedClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	if c.fires > 0 {
		c.fires--
		ch <- time.Time{}
	} else {
		c.cancel()
	}
	return ch
}

func TestScheduler_RunsCyclesUntilCancelled(t *testing.T) {
	db := setupDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := &schedClock{
		fakeClock: fakeClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)},
		fires:     2,
		cancel:    cancel,
	}
	sc := &fakeScraper{nicks: []string{"bob"}}
	r := newTestRunner(t, Config{Mode: ModeOnline}, db, sc, WithClock(clock))

	sched := NewScheduler(r, 5*time.Minute, nil)
	// Cancellation after completed cycles is a clean stop, not an error.
	if err := sched.Run(ctx); err != nil {
		t.Fatalf("got %v, want nil", err)
	}

	// The immediate cycle plus one per interval fire.
	last, err := db.LastRunMetrics(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if last.RunNumber != 3 {
		t.Fatalf("cycles run: got %d, want 3", last.RunNumber)
	}
}

func TestScheduler_TriggerKinds(t *testing.T) {
	db := setupDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := &schedClock{
		fakeClock: fakeClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)},
		fires:     1,
		cancel:    cancel,
	}
	sc := &fakeScraper{nicks: []string{"bob"}}
	obs := &recordingObserver{}
	r := newTestRunner(t, Config{Mode: ModeOnline}, db, sc,
		WithClock(clock), WithObserver(obs))

	sched := NewScheduler(r, time.Minute, nil)
	sched.Run(ctx)

	if len(obs.cycles) != 2 {
		t.Fatalf("cycles: got %d, want 2", len(obs.cycles))
	}
	if obs.cycles[0].Trigger != store.TriggerManual {
		t.Fatalf("first trigger: got %q, want manual", obs.cycles[0].Trigger)
	}
	if obs.cycles[1].Trigger != store.TriggerScheduled {
		t.Fatalf("second trigger: got %q, want scheduled", obs.cycles[1].Trigger)
	}
}

func TestScheduler_CycleErrorDoesNotStopLoop(t *testing.T) {
	db := setupDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := &schedClock{
		fakeClock: fakeClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)},
		fires:     1,
		cancel:    cancel,
	}
	sc := &fakeScraper{feedErr: context.DeadlineExceeded}
	r := newTestRunner(t, Config{Mode: ModeOnline}, db, sc, WithClock(clock))

	sched := NewScheduler(r, time.Minute, nil)
	// Both attempts ran despite the feed failing every time; only the
	// interval exhaustion stopped the loop, and stopping is still clean.
	if err := sched.Run(ctx); err != nil {
		t.Fatalf("got %v, want nil", err)
	}
}
