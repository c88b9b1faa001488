package testutil

import (
	"sync"
	"time"
)

// ManualClock is a controllable wall clock for tests.
//
// Each call to Now advances the clock by one millisecond so consecutive
// actions never share a timestamp - creation order stays unambiguous
// without real sleeping.
//
// Thread-safety: all methods are safe for concurrent use via internal
// mutex.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock creates a clock starting at a fixed, arbitrary instant.
func NewManualClock() *ManualClock {
	return &ManualClock{
		now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

// Now returns the current instant and ticks the clock forward 1ms.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(time.Millisecond)
	return t
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
