package runner

import (
	"time"

	"profilewatch/reconcile"
	"profilewatch/store"
)

// aggregator accumulates per-run counters. The run number is fixed at cycle
// start and held for the whole run; concurrent runs against one store are
// not supported, so no locking is needed here.
type aggregator struct {
	runNumber int64
	startedAt time.Time
	trigger   store.TriggerKind

	total     int
	succeeded int
	failed    int
	new       int
	updated   int
	unchanged int
}

func newAggregator(runNumber int64, startedAt time.Time, trigger store.TriggerKind) *aggregator {
	return &aggregator{runNumber: runNumber, startedAt: startedAt, trigger: trigger}
}

// addSuccess tallies one reconciled item.
func (a *aggregator) addSuccess(d reconcile.Decision) {
	a.total++
	a.succeeded++
	switch d {
	case reconcile.New:
		a.new++
	case reconcile.Updated:
		a.updated++
	case reconcile.Unchanged:
		a.unchanged++
	}
}

// addFailure tallies one item that could not be processed.
func (a *aggregator) addFailure() {
	a.total++
	a.failed++
}

// snapshot freezes the counters into a persistable RunMetrics.
func (a *aggregator) snapshot(now time.Time) store.RunMetrics {
	return store.RunMetrics{
		RunNumber: a.runNumber,
		StartedAt: a.startedAt,
		Duration:  now.Sub(a.startedAt),
		Total:     a.total,
		Succeeded: a.succeeded,
		Failed:    a.failed,
		New:       a.new,
		Updated:   a.updated,
		Unchanged: a.unchanged,
		Trigger:   a.trigger,
	}
}
