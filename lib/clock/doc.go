// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction for testability.
//
// Code that waits calls Clock.Sleep instead of time.Sleep. In
// production, Real() provides the standard library behavior. In tests,
// Fake() provides a clock whose Sleep returns at once after moving
// virtual time forward, so a sequential poll loop runs at full speed and
// every wait is observable.
//
// # Wiring Pattern
//
// Add a Clock field to structs that wait:
//
//	type Scheduler struct {
//	    clock clock.Clock
//	    // ...
//	}
//
// In production:
//
//	s := &Scheduler{clock: clock.Real()}
//
// In tests:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	c.OnSleep(func(n int) {
//	    // runs inside the nth Sleep call; mutate test fixtures here
//	})
//	s := &Scheduler{clock: c}
//
// The fake never blocks, so it only suits code that sleeps on the
// goroutine doing the work. It has no timers or tickers.
package clock
