package runner

import (
	"context"
	"log/slog"
	"time"

	"profilewatch/store"
)

// Scheduler repeats cycles at a fixed interval. Cancellation and deadlines
// are honoured only between cycles: a started cycle always runs to
// completion or explicit failure, never stops mid-item.
type Scheduler struct {
	runner *Runner
	every  time.Duration
	clock  Clock
	logger *slog.Logger
}

// NewScheduler wraps a Runner in a repeat loop.
func NewScheduler(r *Runner, every time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{runner: r, every: every, clock: r.clock, logger: logger}
}

// Run executes the first cycle immediately (manual trigger, the operator
// started it) and then one cycle per interval (scheduled trigger) until ctx
// is cancelled or its deadline passes. A failed cycle is logged and the
// loop keeps going; the next interval may succeed. Shutdown after completed
// cycles is the normal way a repeat run ends, so Run returns nil for it.
func (s *Scheduler) Run(ctx context.Context) error {
	trigger := store.TriggerManual
	for {
		if _, err := s.runner.RunCycle(ctx, trigger); err != nil {
			s.logger.Error("scheduler: cycle failed", "error", err)
		}
		trigger = store.TriggerScheduled

		s.logger.Info("scheduler: next cycle scheduled", "in", s.every)
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler: stopped", "reason", ctx.Err())
			return nil
		case <-s.clock.After(s.every):
		}
	}
}
