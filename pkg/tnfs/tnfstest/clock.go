// Package tnfstest provides test doubles for the TNFS client: a virtual
// clock, a scripted in-memory datagram transport and an in-memory server.
package tnfstest

import (
	"sync"
	"time"
)

// Clock is a virtual transport.Clock. Yield advances time by Step; Sleep
// advances it by the requested duration and records it.
type Clock struct {
	mu     sync.Mutex
	now    time.Time
	step   time.Duration
	sleeps []time.Duration
	yields int
}

// NewClock returns a clock starting at a fixed instant whose Yield advances
// by step (1ms if zero).
func NewClock(step time.Duration) *Clock {
	if step <= 0 {
		step = time.Millisecond
	}
	return &Clock{
		now:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		step: step,
	}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Yield() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.yields++
	c.now = c.now.Add(c.step)
}

func (c *Clock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	if d > 0 {
		c.now = c.now.Add(d)
	}
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Sleeps returns the durations passed to Sleep so far.
func (c *Clock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

// Yields returns how many times Yield was called.
func (c *Clock) Yields() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.yields
}
