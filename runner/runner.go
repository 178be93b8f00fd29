// Package runner drives one reconciliation cycle: it pulls nicknames from a
// source feed, normalizes each scraped profile, reconciles it into the
// store, keeps task bookkeeping consistent, paces itself against the store's
// quota, and emits a run-metrics snapshot at the end.
//
// Two pipeline variants share the same per-item core. The online variant
// feeds off currently-present users and never touches the task table, so
// the queue keeps reflecting only manually-queued work. The task variant
// feeds off Pending tasks and walks each one through
// Pending → InProgress → Complete/Failed.
//
// Processing is strictly sequential by design: the source site and the
// backing store are both rate limited, and parallel workers would only
// multiply quota risk without the pace controller being able to see across
// them.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"profilewatch/idgen"
	"profilewatch/pace"
	"profilewatch/profile"
	"profilewatch/reconcile"
	"profilewatch/store"
)

// Mode selects the pipeline variant.
type Mode string

const (
	// ModeOnline feeds off the currently-online listing.
	ModeOnline Mode = "online"
	// ModeTasks feeds off the persisted Pending task queue.
	ModeTasks Mode = "tasks"
)

// Source tags recorded with every sighting.
const (
	SourceOnline = "Online"
	SourceTasks  = "Tasks"
)

// Scraper is the source-site collaborator. It yields nicknames and raw
// profile payloads; all interpretation happens in the normalizer.
type Scraper interface {
	OnlineNicks(ctx context.Context) ([]string, error)
	Scrape(ctx context.Context, nick string) (profile.Raw, error)
}

// Store is the backing-store contract the pipeline consumes. The SQLite
// implementation lives in the store package; tests substitute fakes.
type Store interface {
	GetProfile(ctx context.Context, nick string) (*profile.Profile, error)
	UpsertProfile(ctx context.Context, p *profile.Profile, note string) error
	TouchProfile(ctx context.Context, nick string, at time.Time) error
	AppendTiming(ctx context.Context, e store.TimingEntry) error
	PendingTasks(ctx context.Context) ([]store.TaskItem, error)
	SetTaskStatus(ctx context.Context, nick string, status store.TaskStatus, remark string) error
	BumpNickFrequency(ctx context.Context, nick string, seen time.Time) error
	WriteRunMetrics(ctx context.Context, m store.RunMetrics) error
	NextRunNumber(ctx context.Context) (int64, error)
}

// Observer receives pipeline events. The status endpoint implements it to
// export counters; a nil observer is a no-op.
type Observer interface {
	ItemProcessed(decision string, failed bool)
	CycleFinished(m store.RunMetrics)
	QuotaWarning()
}

// Config tunes one Runner.
type Config struct {
	Mode Mode
	// Limit caps items per cycle. 0 means the pace controller's batch size
	// is the only cap.
	Limit int
	// Pace tunes the adaptive rate controller built for each run.
	Pace pace.Config
	// RetryAttempts bounds per-item persistence retries.
	RetryAttempts int
	// RetryBackoff is the base wait between persistence retries; actual
	// waits grow linearly with the attempt number.
	RetryBackoff time.Duration
}

func (c *Config) defaults() {
	if c.Mode == "" {
		c.Mode = ModeOnline
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 2 * time.Second
	}
}

// Runner owns one configured pipeline. Create with New, then call RunCycle
// once per cycle (the Scheduler does this in repeat mode).
type Runner struct {
	cfg     Config
	store   Store
	scraper Scraper
	norm    *profile.Normalizer
	clock   Clock
	logger  *slog.Logger
	obs     Observer
	summary io.Writer
}

// Option configures a Runner.
type Option func(*Runner)

// WithClock injects a clock; tests use a fake to avoid real sleeps.
func WithClock(c Clock) Option { return func(r *Runner) { r.clock = c } }

// WithObserver attaches a pipeline observer.
func WithObserver(o Observer) Option { return func(r *Runner) { r.obs = o } }

// WithSummaryWriter redirects the human-readable cycle summary.
func WithSummaryWriter(w io.Writer) Option { return func(r *Runner) { r.summary = w } }

// New creates a Runner.
func New(cfg Config, st Store, scraper Scraper, norm *profile.Normalizer, logger *slog.Logger, opts ...Option) *Runner {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		cfg:     cfg,
		store:   st,
		scraper: scraper,
		norm:    norm,
		clock:   RealClock,
		logger:  logger,
		summary: os.Stdout,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// RunCycle executes one full cycle and returns its metrics snapshot. An
// error means the cycle could not start (feed or run-number acquisition
// failed); per-item failures are contained and only show up in the counts.
func (r *Runner) RunCycle(ctx context.Context, trigger store.TriggerKind) (store.RunMetrics, error) {
	cycleID := idgen.New()
	log := r.logger.With("cycle_id", cycleID, "mode", string(r.cfg.Mode))

	runNumber, err := r.store.NextRunNumber(ctx)
	if err != nil {
		return store.RunMetrics{}, fmt.Errorf("runner: acquire run number: %w", err)
	}

	nicks, sourceTag, err := r.feed(ctx)
	if err != nil {
		return store.RunMetrics{}, fmt.Errorf("runner: feed: %w", err)
	}

	ctrl := pace.New(r.cfg.Pace)
	agg := newAggregator(runNumber, r.clock.Now(), trigger)
	log.Info("runner: cycle started",
		"run", runNumber, "trigger", string(trigger), "feed_size", len(nicks))

	for _, nick := range nicks {
		if r.cfg.Limit > 0 && agg.total >= r.cfg.Limit {
			log.Info("runner: item limit reached", "limit", r.cfg.Limit)
			break
		}
		if agg.total >= ctrl.BatchSize() {
			log.Info("runner: batch size reached", "batch", ctrl.BatchSize())
			break
		}

		decision, itemErr := r.processItem(ctx, log, ctrl, runNumber, nick, sourceTag)

		outcome := pace.OK
		if itemErr != nil {
			outcome = pace.Failed
			agg.addFailure()
			if r.obs != nil {
				r.obs.ItemProcessed("", true)
			}
		} else {
			agg.addSuccess(decision)
			if r.obs != nil {
				r.obs.ItemProcessed(decision.String(), false)
			}
		}

		r.clock.Sleep(ctrl.NextDelay(outcome))
	}

	m := agg.snapshot(r.clock.Now())
	if err := r.store.WriteRunMetrics(ctx, m); err != nil {
		// The cycle itself succeeded; a lost snapshot is logged, not fatal.
		log.Error("runner: write run metrics failed", "run", runNumber, "error", err)
	}
	if r.obs != nil {
		r.obs.CycleFinished(m)
	}

	state := ctrl.Snapshot()
	log.Info("runner: cycle complete",
		"run", runNumber, "total", m.Total, "succeeded", m.Succeeded,
		"failed", m.Failed, "new", m.New, "updated", m.Updated,
		"unchanged", m.Unchanged, "quota_warnings", state.QuotaWarnings,
		"batch", state.BatchSize)
	r.printSummary(m)

	return m, nil
}

// feed yields the nicknames for this cycle plus the source tag to record
// with each sighting.
func (r *Runner) feed(ctx context.Context) ([]string, string, error) {
	switch r.cfg.Mode {
	case ModeTasks:
		items, err := r.store.PendingTasks(ctx)
		if err != nil {
			return nil, "", err
		}
		nicks := make([]string, 0, len(items))
		for _, item := range items {
			nicks = append(nicks, item.Nick)
		}
		return nicks, SourceTasks, nil
	default:
		nicks, err := r.scraper.OnlineNicks(ctx)
		if err != nil {
			return nil, "", err
		}
		return nicks, SourceOnline, nil
	}
}

// stageError tags a per-item failure with the pipeline stage that caused
// it, for task remarks and logs.
type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string { return e.stage + ": " + e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

// processItem runs the per-item core: scrape, normalize, reconcile,
// persist, audit. Task bookkeeping wraps it only in task mode. Every error
// is contained to the item.
func (r *Runner) processItem(ctx context.Context, log *slog.Logger, ctrl *pace.Controller, runNumber int64, nick, sourceTag string) (reconcile.Decision, error) {
	taskMode := r.cfg.Mode == ModeTasks
	if taskMode {
		if err := r.store.SetTaskStatus(ctx, nick, store.TaskInProgress, ""); err != nil {
			log.Warn("runner: mark in progress failed", "nick", nick, "error", err)
		}
	}

	decision, err := r.reconcileOne(ctx, log, ctrl, runNumber, nick, sourceTag)
	if err != nil {
		if taskMode {
			if serr := r.store.SetTaskStatus(ctx, nick, store.TaskFailed, err.Error()); serr != nil {
				log.Warn("runner: mark failed failed", "nick", nick, "error", serr)
			}
		}
		log.Warn("runner: item failed", "nick", nick, "error", err)
		return decision, err
	}

	if taskMode {
		remark := decision.String()
		if serr := r.store.SetTaskStatus(ctx, nick, store.TaskComplete, remark); serr != nil {
			log.Warn("runner: mark complete failed", "nick", nick, "error", serr)
		}
	}

	log.Info("runner: item done", "nick", nick, "decision", decision.String())
	return decision, nil
}

func (r *Runner) reconcileOne(ctx context.Context, log *slog.Logger, ctrl *pace.Controller, runNumber int64, nick, sourceTag string) (reconcile.Decision, error) {
	raw, err := r.scraper.Scrape(ctx, nick)
	if err != nil {
		return 0, &stageError{"fetch", err}
	}

	p := r.norm.Normalize(raw)
	if p.Nick == "" {
		p.Nick = profile.Key(nick)
	}
	p.Source = sourceTag
	p.ScrapedAt = r.clock.Now()

	existing, err := r.lookup(ctx, nick)
	if err != nil {
		// Never assume New on a failed lookup: that would overwrite the
		// record's history. The item fails and may be retried later.
		return 0, &stageError{"lookup", err}
	}

	decision, note := reconcile.Reconcile(existing, &p)

	persist := func(ctx context.Context) error {
		if decision == reconcile.Unchanged {
			return r.store.TouchProfile(ctx, p.Nick, p.ScrapedAt)
		}
		return r.store.UpsertProfile(ctx, &p, note)
	}
	if err := r.retryWrite(ctx, log, ctrl, persist); err != nil {
		return decision, &stageError{"persist", err}
	}

	appendTiming := func(ctx context.Context) error {
		return r.store.AppendTiming(ctx, store.TimingEntry{
			Nick:      p.Nick,
			Timestamp: p.ScrapedAt,
			Source:    sourceTag,
			RunNumber: runNumber,
		})
	}
	if err := r.retryWrite(ctx, log, ctrl, appendTiming); err != nil {
		return decision, &stageError{"audit", err}
	}

	// The frequency counter is advisory; losing one bump is not worth
	// failing the item over.
	if err := r.store.BumpNickFrequency(ctx, p.Nick, p.ScrapedAt); err != nil {
		log.Warn("runner: nick frequency bump failed", "nick", p.Nick, "error", err)
	}

	return decision, nil
}

// lookup fetches the existing record, retrying transient store errors.
// Absence is a valid answer; only I/O failures retry.
func (r *Runner) lookup(ctx context.Context, nick string) (*profile.Profile, error) {
	var lastErr error
	for attempt := 1; attempt <= r.cfg.RetryAttempts; attempt++ {
		p, err := r.store.GetProfile(ctx, nick)
		if err == nil {
			return p, nil
		}
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		lastErr = err
		r.clock.Sleep(time.Duration(attempt) * r.cfg.RetryBackoff)
	}
	return nil, lastErr
}

// quotaRetryLimit bounds consecutive quota retries per write. It is kept
// well above RetryAttempts: a quota refusal is pacing pressure, not an item
// failure, so only a store that refuses persistently gives up the item.
const quotaRetryLimit = 10

// retryWrite runs a store write with the contract's error policy: a quota
// signal widens the pace window and retries after backoff on its own, more
// generous budget; plain I/O errors retry a bounded number of times with
// increasing backoff.
func (r *Runner) retryWrite(ctx context.Context, log *slog.Logger, ctrl *pace.Controller, write func(context.Context) error) error {
	var lastErr error
	attempts, quotaRetries := 0, 0
	for {
		err := write(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if errors.Is(err, store.ErrQuota) {
			quotaRetries++
			if quotaRetries >= quotaRetryLimit {
				return lastErr
			}
			ctrl.QuotaWarning()
			if r.obs != nil {
				r.obs.QuotaWarning()
			}
			backoff := ctrl.Backoff()
			log.Warn("runner: quota signal, backing off", "backoff", backoff, "error", err)
			r.clock.Sleep(backoff)
			continue
		}

		attempts++
		if attempts >= r.cfg.RetryAttempts {
			return lastErr
		}
		r.clock.Sleep(time.Duration(attempts) * r.cfg.RetryBackoff)
	}
}

func (r *Runner) printSummary(m store.RunMetrics) {
	fmt.Fprintf(r.summary,
		"run %d (%s): %d processed, %d new, %d updated, %d unchanged, %d failed in %s\n",
		m.RunNumber, m.Trigger, m.Total, m.New, m.Updated, m.Unchanged,
		m.Failed, m.Duration.Round(time.Millisecond))
}
