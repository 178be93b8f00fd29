package pace

import (
	"math/rand"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		WarmupItems:  10,
		MinDelay:     time.Second,
		MaxDelay:     2 * time.Second,
		BatchSize:    20,
		GrowthFactor: 1.5,
		ShrinkFactor: 0.7,
		WidenFactor:  1.5,
	}
}

func TestController_OneShotAdjustmentAfterCleanWarmup(t *testing.T) {
	c := New(testConfig(), WithRand(rand.New(rand.NewSource(1))))

	for i := 0; i < 9; i++ {
		c.NextDelay(OK)
	}
	if s := c.Snapshot(); s.Adjusted {
		t.Fatal("adjusted before warm-up completed")
	}

	c.NextDelay(OK)
	s := c.Snapshot()
	if !s.Adjusted {
		t.Fatal("not adjusted after clean warm-up")
	}
	if s.BatchSize != 30 {
		t.Fatalf("batch: got %d, want 30", s.BatchSize)
	}
	if s.MinDelay != 700*time.Millisecond {
		t.Fatalf("min delay: got %v, want 700ms", s.MinDelay)
	}
	if s.MaxDelay != 1400*time.Millisecond {
		t.Fatalf("max delay: got %v, want 1.4s", s.MaxDelay)
	}
}

func TestController_AdjustmentHappensOnlyOnce(t *testing.T) {
	c := New(testConfig(), WithRand(rand.New(rand.NewSource(1))))

	for i := 0; i < 50; i++ {
		c.NextDelay(OK)
	}
	s := c.Snapshot()
	if s.BatchSize != 30 {
		t.Fatalf("batch grew again: got %d, want 30", s.BatchSize)
	}
	if s.MinDelay != 700*time.Millisecond {
		t.Fatalf("delay shrank again: got %v", s.MinDelay)
	}
}

func TestController_QuotaDuringWarmupFreezesAdjustment(t *testing.T) {
	c := New(testConfig(), WithRand(rand.New(rand.NewSource(1))))

	for i := 0; i < 4; i++ {
		c.NextDelay(OK)
	}
	c.NextDelay(QuotaHit)
	for i := 0; i < 20; i++ {
		c.NextDelay(OK)
	}

	s := c.Snapshot()
	if s.Adjusted {
		t.Fatal("adjusted despite quota during warm-up")
	}
	if s.BatchSize != 20 {
		t.Fatalf("batch: got %d, want 20", s.BatchSize)
	}
	if s.QuotaWarnings != 1 {
		t.Fatalf("warnings: got %d, want 1", s.QuotaWarnings)
	}
}

func TestController_QuotaAfterAdjustmentRevertsAndWidens(t *testing.T) {
	c := New(testConfig(), WithRand(rand.New(rand.NewSource(1))))

	for i := 0; i < 10; i++ {
		c.NextDelay(OK)
	}
	if !c.Snapshot().Adjusted {
		t.Fatal("warm-up adjustment did not happen")
	}

	c.QuotaWarning()
	s := c.Snapshot()
	if s.Adjusted {
		t.Fatal("still marked adjusted after quota")
	}
	if s.BatchSize != 20 {
		t.Fatalf("batch: got %d, want configured 20", s.BatchSize)
	}
	// Configured window times the widen factor.
	if s.MinDelay != 1500*time.Millisecond {
		t.Fatalf("min delay: got %v, want 1.5s", s.MinDelay)
	}
	if s.MaxDelay != 3*time.Second {
		t.Fatalf("max delay: got %v, want 3s", s.MaxDelay)
	}
}

func TestController_RepeatedQuotaWidensWithoutBound(t *testing.T) {
	c := New(testConfig(), WithRand(rand.New(rand.NewSource(1))))

	c.QuotaWarning()
	c.QuotaWarning()
	c.QuotaWarning()

	s := c.Snapshot()
	// 2s * 1.5^3.
	if s.MaxDelay != 6750*time.Millisecond {
		t.Fatalf("max delay: got %v, want 6.75s", s.MaxDelay)
	}
	if s.QuotaWarnings != 3 {
		t.Fatalf("warnings: got %d", s.QuotaWarnings)
	}
}

func TestController_DelayStaysInWindow(t *testing.T) {
	c := New(testConfig(), WithRand(rand.New(rand.NewSource(42))))

	for i := 0; i < 100; i++ {
		d := c.NextDelay(OK)
		s := c.Snapshot()
		if d < s.MinDelay || d > s.MaxDelay {
			t.Fatalf("delay %v outside window [%v, %v]", d, s.MinDelay, s.MaxDelay)
		}
	}
}

func TestController_BackoffIsWindowTop(t *testing.T) {
	c := New(testConfig(), WithRand(rand.New(rand.NewSource(1))))

	c.QuotaWarning()
	if got := c.Backoff(); got != 3*time.Second {
		t.Fatalf("backoff: got %v, want 3s", got)
	}
}

func TestConfig_Defaults(t *testing.T) {
	var cfg Config
	cfg.defaults()

	if cfg.WarmupItems != 10 || cfg.BatchSize != 20 {
		t.Fatalf("got %+v", cfg)
	}
	if cfg.MinDelay != time.Second || cfg.MaxDelay != 2*time.Second {
		t.Fatalf("delay defaults: got %v/%v", cfg.MinDelay, cfg.MaxDelay)
	}
}
