// Package testutil provides deterministic helpers for tests: a
// controllable clock and a sequential ID generator. Wired through the
// service options, they make provisioning runs reproducible enough for
// golden file comparison.
package testutil

import (
	"sync"
	"time"
)

// Clock is a controllable time source. It hands out a pinned instant
// until advanced, so anything derived from time (rate-limit windows,
// placeholder slugs, trash file suffixes) is reproducible across runs.
//
// Thread-safety: all methods are safe for concurrent use.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a clock pinned to start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current instant. Pass this method as the clock
// function in service or guard options.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set pins the clock to a new instant. Used for test reuse; Advance is
// preferred inside a single scenario so time never goes backwards.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
