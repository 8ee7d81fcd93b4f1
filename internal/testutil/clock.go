package testutil

import (
	"sync"
	"time"
)

// Clock is a deterministic wall clock for tests.
//
// Each call to Now returns the current instant and then advances it by
// the configured step, so consecutive operations get distinct, predictable
// timestamps.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Clock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// DefaultStart is the first instant returned by NewClock.
var DefaultStart = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// NewClock creates a clock starting at DefaultStart that advances one
// minute per call.
func NewClock() *Clock {
	return NewClockAt(DefaultStart, time.Minute)
}

// NewClockAt creates a clock starting at start that advances by step.
func NewClockAt(start time.Time, step time.Duration) *Clock {
	return &Clock{now: start, step: step}
}

// Now returns the current instant and advances the clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}
