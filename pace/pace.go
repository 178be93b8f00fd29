// Package pace implements the adaptive throttle for the scrape-and-persist
// loop. The backing API's quota rules are opaque, so the controller is
// deliberately conservative: it speeds up at most once per run, after a
// clean warm-up sample, and slows down without limit whenever the store
// signals a quota condition. A controller is built once per run and owned by
// the processing loop; there is no shared tuning state.
package pace

import (
	"math/rand"
	"sync"
	"time"
)

// Outcome is what the controller observes after each item.
type Outcome int

const (
	OK Outcome = iota
	Failed
	// QuotaHit marks an item during which the store reported a rate-limit
	// condition. It freezes the one-shot speed-up for the rest of the run.
	QuotaHit
)

// Config tunes the controller. Zero values fall back to defaults.
type Config struct {
	// WarmupItems is the sample size before the one-shot adjustment.
	WarmupItems int
	// MinDelay and MaxDelay bound the inter-item delay window.
	MinDelay time.Duration
	MaxDelay time.Duration
	// BatchSize is the starting batch size.
	BatchSize int
	// GrowthFactor multiplies the batch size on the one-shot adjustment.
	// Must be > 1 to have any effect.
	GrowthFactor float64
	// ShrinkFactor multiplies the delay window on the one-shot adjustment.
	// Must be < 1 to have any effect.
	ShrinkFactor float64
	// WidenFactor multiplies the delay window on every quota warning after
	// the window has been reverted. Always >= 1.
	WidenFactor float64
}

func (c *Config) defaults() {
	if c.WarmupItems <= 0 {
		c.WarmupItems = 10
	}
	if c.MinDelay <= 0 {
		c.MinDelay = time.Second
	}
	if c.MaxDelay < c.MinDelay {
		c.MaxDelay = 2 * c.MinDelay
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 20
	}
	if c.GrowthFactor <= 1 {
		c.GrowthFactor = 1.5
	}
	if c.ShrinkFactor <= 0 || c.ShrinkFactor >= 1 {
		c.ShrinkFactor = 0.7
	}
	if c.WidenFactor < 1 {
		c.WidenFactor = 1.5
	}
}

// State is a snapshot of the controller for logging and the run summary.
type State struct {
	BatchSize     int
	MinDelay      time.Duration
	MaxDelay      time.Duration
	Processed     int
	QuotaWarnings int
	Adjusted      bool
	Frozen        bool
}

// Controller owns the transient pacing state for one run.
type Controller struct {
	mu   sync.Mutex
	cfg  Config
	rand *rand.Rand

	batch    int
	minDelay time.Duration
	maxDelay time.Duration

	processed     int
	quotaWarnings int
	adjusted      bool // the one-shot speed-up has happened
	frozen        bool // a quota warning forbids it for the rest of the run
}

// Option configures a Controller.
type Option func(*Controller)

// WithRand sets the random source used to draw delays. Tests inject a
// seeded source to make delay draws deterministic.
func WithRand(r *rand.Rand) Option {
	return func(c *Controller) { c.rand = r }
}

// New creates a controller for one run.
func New(cfg Config, opts ...Option) *Controller {
	cfg.defaults()
	c := &Controller{
		cfg:      cfg,
		rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
		batch:    cfg.BatchSize,
		minDelay: cfg.MinDelay,
		maxDelay: cfg.MaxDelay,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// NextDelay records the outcome of one item and returns the delay to wait
// before the next. The delay is drawn uniformly from the current window.
func (c *Controller) NextDelay(outcome Outcome) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.processed++
	if outcome == QuotaHit {
		c.quotaWarningLocked()
	}

	// One-shot adjustment: only after a full clean warm-up sample.
	if !c.adjusted && !c.frozen && c.processed >= c.cfg.WarmupItems {
		c.adjusted = true
		c.batch = int(float64(c.batch) * c.cfg.GrowthFactor)
		c.minDelay = time.Duration(float64(c.minDelay) * c.cfg.ShrinkFactor)
		c.maxDelay = time.Duration(float64(c.maxDelay) * c.cfg.ShrinkFactor)
	}

	return c.drawLocked()
}

// QuotaWarning tells the controller the store reported a rate-limit
// condition outside the per-item outcome path (e.g. mid-retry). The delay
// window reverts to its configured bounds, widens with every further
// warning, and the one-shot speed-up is off the table for this run.
func (c *Controller) QuotaWarning() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quotaWarningLocked()
}

func (c *Controller) quotaWarningLocked() {
	c.quotaWarnings++
	c.frozen = true

	if c.adjusted {
		// Undo the speed-up entirely.
		c.adjusted = false
		c.batch = c.cfg.BatchSize
		c.minDelay = c.cfg.MinDelay
		c.maxDelay = c.cfg.MaxDelay
	}
	// Widen further on every warning. Slow-down is unbounded.
	c.minDelay = time.Duration(float64(c.minDelay) * c.cfg.WidenFactor)
	c.maxDelay = time.Duration(float64(c.maxDelay) * c.cfg.WidenFactor)
}

// Backoff returns the wait before retrying a quota-refused write. It is the
// top of the current delay window, which QuotaWarning has already widened.
func (c *Controller) Backoff() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxDelay
}

// BatchSize returns the current batch size.
func (c *Controller) BatchSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.batch
}

// Snapshot returns the current controller state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		BatchSize:     c.batch,
		MinDelay:      c.minDelay,
		MaxDelay:      c.maxDelay,
		Processed:     c.processed,
		QuotaWarnings: c.quotaWarnings,
		Adjusted:      c.adjusted,
		Frozen:        c.frozen,
	}
}

func (c *Controller) drawLocked() time.Duration {
	if c.maxDelay <= c.minDelay {
		return c.minDelay
	}
	return c.minDelay + time.Duration(c.rand.Int63n(int64(c.maxDelay-c.minDelay)))
}
