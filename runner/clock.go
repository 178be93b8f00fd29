package runner

import (
	"time"

	"profilewatch/profile"
)

// Clock abstracts wall time so scheduler and pacing tests can simulate
// delays without real waits.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d. Used for inter-item pacing inside a cycle, which
	// deliberately cannot be interrupted: a cycle runs to completion.
	Sleep(d time.Duration)
	// After returns a channel that fires once d has elapsed. Used for the
	// between-cycle wait, where cancellation is allowed.
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

// Now returns the current time localized to the site zone, so every
// timestamp the pipeline stamps is site-local wall time.
func (realClock) Now() time.Time { return time.Now().In(profile.PKT) }
func (realClock) Sleep(d time.Duration)                  { time.Sleep(d) }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock is the production clock.
var RealClock Clock = realClock{}
