package testutil

import (
	"sync"
	"time"
)

// FixedClock is a deterministic clock for tests.
//
// Every call to Now returns the current instant and then advances it by the
// configured step, so durations measured across two calls equal the step.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FixedClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewFixedClock creates a clock starting at start that advances by step on
// every read. A zero step freezes time.
func NewFixedClock(start time.Time, step time.Duration) *FixedClock {
	return &FixedClock{now: start, step: step}
}

// Now returns the current instant and advances the clock.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// Peek returns the current instant without advancing.
func (c *FixedClock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
