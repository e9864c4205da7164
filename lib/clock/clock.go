// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock abstracts the two time operations the loader needs. Production
// code injects Real(); tests inject Fake().
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Sleep pauses the calling goroutine for at least duration d.
	// Equivalent to time.Sleep. Returns immediately if d <= 0.
	Sleep(d time.Duration)
}
