// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync"
	"time"
)

// Fake returns a FakeClock initialized to the given time. Time moves
// only through Sleep.
//
// FakeClock is safe for concurrent use by multiple goroutines.
func Fake(initial time.Time) *FakeClock {
	return &FakeClock{current: initial}
}

// FakeClock is a deterministic Clock for testing. Sleep advances the
// clock by the requested duration and returns immediately.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	sleeps  []time.Duration
	onSleep func(count int)
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Sleep records d, advances the clock by d, then runs the OnSleep hook
// (if any) with the number of sleeps so far. Non-positive durations
// are recorded but do not move the clock.
func (c *FakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	if d > 0 {
		c.current = c.current.Add(d)
	}
	count := len(c.sleeps)
	hook := c.onSleep
	c.mu.Unlock()

	// The hook runs unlocked so it may call Now.
	if hook != nil {
		hook(count)
	}
}

// OnSleep installs a hook called at the end of every Sleep with the
// 1-based count of Sleep calls so far. Passing nil removes it.
func (c *FakeClock) OnSleep(hook func(count int)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSleep = hook
}

// Sleeps returns a copy of every duration passed to Sleep, in call
// order.
func (c *FakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}
