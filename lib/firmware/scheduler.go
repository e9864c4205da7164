// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package firmware

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/fwloader/lib/clock"
)

// Reason says why a scheduler run ended.
type Reason string

const (
	// ReasonComplete means every registered entry was delivered.
	ReasonComplete Reason = "complete"

	// ReasonTimeout means the stall budget ran out with entries still
	// undelivered. They stay undelivered.
	ReasonTimeout Reason = "timeout"
)

// Loader performs one handshake. [*Deliverer] is the production
// implementation.
type Loader interface {
	Deliver(node, source string) (Delivery, error)
}

// SchedulerConfig holds the collaborators and policy for a [Scheduler].
type SchedulerConfig struct {
	// Registry holds the entries to deliver. Required.
	Registry *Registry

	// Scanner lists pending requests. Defaults to a [DirScanner] on
	// [DefaultClassDirectory].
	Scanner Scanner

	// Loader runs the handshake. Defaults to [NewDeliverer].
	Loader Loader

	// Clock provides Sleep between cycles. Defaults to clock.Real().
	Clock clock.Clock

	// PollInterval is the fixed sleep between cycles. Must be positive.
	PollInterval time.Duration

	// StallThreshold is the number of consecutive cycles without a new
	// delivery after which the run ends with [ReasonTimeout]. Zero
	// disables the timeout. See [StallThreshold].
	StallThreshold int

	// Logger receives progress events. Nil discards them.
	Logger *slog.Logger
}

// Result summarizes a finished run.
type Result struct {
	// Reason is empty when the run ended with an error.
	Reason Reason

	// Cycles is the number of scan/match/deliver cycles started.
	Cycles int

	// Delivered and Remaining count entries at the end of the run.
	Delivered int
	Remaining int
}

// Scheduler drives the poll loop. A Scheduler runs once; it owns the
// registry for the duration of [Scheduler.Run].
type Scheduler struct {
	registry     *Registry
	scanner      Scanner
	loader       Loader
	clock        clock.Clock
	pollInterval time.Duration
	threshold    int
	logger       *slog.Logger
}

// NewScheduler validates config and fills in defaults.
func NewScheduler(config SchedulerConfig) (*Scheduler, error) {
	if config.Registry == nil {
		return nil, errors.New("scheduler requires a registry")
	}
	if config.PollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %v", config.PollInterval)
	}
	if config.StallThreshold < 0 {
		return nil, fmt.Errorf("stall threshold must not be negative, got %d", config.StallThreshold)
	}

	scheduler := &Scheduler{
		registry:     config.Registry,
		scanner:      config.Scanner,
		loader:       config.Loader,
		clock:        config.Clock,
		pollInterval: config.PollInterval,
		threshold:    config.StallThreshold,
		logger:       config.Logger,
	}
	if scheduler.scanner == nil {
		scheduler.scanner = DirScanner{Root: DefaultClassDirectory}
	}
	if scheduler.loader == nil {
		scheduler.loader = NewDeliverer()
	}
	if scheduler.clock == nil {
		scheduler.clock = clock.Real()
	}
	if scheduler.logger == nil {
		scheduler.logger = slog.New(slog.DiscardHandler)
	}
	return scheduler, nil
}

// StallThreshold converts a stall timeout into a number of poll cycles:
// ceil(timeout / interval), which is at least 1 for any positive
// timeout. A non-positive timeout returns 0, which disables the
// timeout.
func StallThreshold(timeout, interval time.Duration) int {
	if timeout <= 0 || interval <= 0 {
		return 0
	}
	cycles := timeout / interval
	if timeout%interval != 0 {
		cycles++
	}
	return int(cycles)
}

// Run executes cycles until every entry is delivered or the stall
// threshold is reached. Each cycle:
//
//  1. tries every undelivered entry in registration order, scanning
//     the request directory afresh for each and delivering to the first
//     matching request;
//  2. returns [ReasonComplete] if nothing is left;
//  3. sleeps for the poll interval;
//  4. counts the cycle as stalled if it delivered nothing, otherwise
//     resets the stall count;
//  5. returns [ReasonTimeout] once the stall count reaches the
//     threshold.
//
// A scan or delivery error ends the run immediately and is returned
// as-is (wrapping an [*Error]). It is never retried.
func (s *Scheduler) Run() (Result, error) {
	var result Result
	stalled := 0

	for {
		result.Cycles++

		progress, err := s.cycle()
		if err != nil {
			s.fillCounts(&result)
			return result, err
		}

		if s.registry.AllDelivered() {
			result.Reason = ReasonComplete
			s.fillCounts(&result)
			return result, nil
		}

		s.clock.Sleep(s.pollInterval)

		if progress == 0 {
			stalled++
		} else {
			stalled = 0
		}

		s.logger.Debug("poll cycle finished",
			"cycle", result.Cycles,
			"delivered", progress,
			"remaining", s.registry.Remaining(),
			"stalled", stalled,
		)

		if s.threshold > 0 && stalled >= s.threshold {
			result.Reason = ReasonTimeout
			s.fillCounts(&result)
			return result, nil
		}
	}
}

// cycle makes one delivery attempt for every undelivered entry and
// returns how many were delivered.
func (s *Scheduler) cycle() (int, error) {
	progress := 0
	for i := range s.registry.entries {
		entry := s.registry.entries[i]
		if entry.delivered {
			continue
		}

		requests, err := s.scanner.ListRequests()
		if err != nil {
			return progress, fmt.Errorf("scanning firmware requests: %w", err)
		}

		for _, request := range requests {
			if !Matches(entry.Name, request) {
				continue
			}

			node := s.scanner.RequestPath(request)
			s.logger.Info("loading firmware",
				"name", entry.Name,
				"request", request,
				"file", entry.Source,
			)

			delivery, err := s.loader.Deliver(node, entry.Source)
			if err != nil {
				return progress, fmt.Errorf("loading firmware %q into %s: %w", entry.Name, node, err)
			}
			s.registry.markDelivered(i)
			progress++

			if delivery.Short() {
				s.logger.Warn("kernel stopped accepting firmware data",
					"name", entry.Name,
					"request", request,
					"written", delivery.Written,
					"size", delivery.Size,
				)
			}
			s.logger.Info("delivered firmware",
				"name", entry.Name,
				"request", request,
				"bytes", delivery.Written,
				"blake3", delivery.Digest,
			)
			break
		}
	}
	return progress, nil
}

func (s *Scheduler) fillCounts(result *Result) {
	result.Remaining = s.registry.Remaining()
	result.Delivered = s.registry.Len() - result.Remaining
}
