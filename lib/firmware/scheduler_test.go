// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package firmware

import (
	"bytes"
	"errors"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/fwloader/lib/clock"
	"github.com/bureau-foundation/fwloader/lib/testutil"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

const testPollInterval = 100 * time.Millisecond

// loaderCall is one Deliver call seen by recordingLoader.
type loaderCall struct {
	node   string
	source string
}

// recordingLoader is a Loader that records calls and optionally fails.
type recordingLoader struct {
	calls []loaderCall
	err   error
}

func (l *recordingLoader) Deliver(node, source string) (Delivery, error) {
	l.calls = append(l.calls, loaderCall{node: node, source: source})
	if l.err != nil {
		return Delivery{}, l.err
	}
	return Delivery{}, nil
}

// countingScanner wraps a Scanner and counts ListRequests calls.
type countingScanner struct {
	Scanner
	scans int
}

func (s *countingScanner) ListRequests() ([]string, error) {
	s.scans++
	return s.Scanner.ListRequests()
}

type schedulerFixture struct {
	class    *testutil.FirmwareClass
	registry *Registry
	scanner  *countingScanner
	loader   *recordingLoader
	clock    *clock.FakeClock
}

func newSchedulerFixture(t *testing.T) *schedulerFixture {
	t.Helper()
	class := testutil.NewFirmwareClass(t)
	return &schedulerFixture{
		class:    class,
		registry: &Registry{},
		scanner:  &countingScanner{Scanner: DirScanner{Root: class.Root}},
		loader:   &recordingLoader{},
		clock:    clock.Fake(epoch),
	}
}

func (f *schedulerFixture) scheduler(t *testing.T, threshold int) *Scheduler {
	t.Helper()
	scheduler, err := NewScheduler(SchedulerConfig{
		Registry:       f.registry,
		Scanner:        f.scanner,
		Loader:         f.loader,
		Clock:          f.clock,
		PollInterval:   testPollInterval,
		StallThreshold: threshold,
	})
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	return scheduler
}

func (f *schedulerFixture) node(request string) string {
	return filepath.Join(f.class.Root, request)
}

func TestSchedulerEmptyRegistryCompletesImmediately(t *testing.T) {
	fixture := newSchedulerFixture(t)

	result, err := fixture.scheduler(t, 5).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Reason != ReasonComplete || result.Cycles != 1 {
		t.Fatalf("result = %+v, want complete after 1 cycle", result)
	}
	if fixture.scanner.scans != 0 {
		t.Errorf("scanned %d times with nothing to deliver", fixture.scanner.scans)
	}
	if len(fixture.clock.Sleeps()) != 0 {
		t.Errorf("slept %v before completing", fixture.clock.Sleeps())
	}
}

func TestSchedulerTimeoutOnEmptyDirectory(t *testing.T) {
	fixture := newSchedulerFixture(t)
	fixture.registry.Register("wlan0", "/lib/firmware/wlan0.bin")
	threshold := StallThreshold(time.Second, testPollInterval)

	result, err := fixture.scheduler(t, threshold).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Reason != ReasonTimeout {
		t.Fatalf("Reason = %q, want %q", result.Reason, ReasonTimeout)
	}
	if result.Cycles != threshold {
		t.Errorf("Cycles = %d, want exactly the threshold %d", result.Cycles, threshold)
	}
	if result.Delivered != 0 || result.Remaining != 1 {
		t.Errorf("Delivered=%d Remaining=%d, want 0 1", result.Delivered, result.Remaining)
	}
	if got := len(fixture.clock.Sleeps()); got != threshold {
		t.Errorf("slept %d times, want %d", got, threshold)
	}
	if elapsed := fixture.clock.Now().Sub(epoch); elapsed != time.Second {
		t.Errorf("virtual time elapsed = %v, want 1s", elapsed)
	}
	if len(fixture.loader.calls) != 0 {
		t.Errorf("loader called with no requests present: %+v", fixture.loader.calls)
	}
}

func TestSchedulerCompletesInOneCycle(t *testing.T) {
	fixture := newSchedulerFixture(t)
	fixture.class.AddRequest("wlan0.bin")
	fixture.class.AddRequest("hci0-bt.hcd")
	fixture.registry.Register("wlan0", "/lib/firmware/wlan0.bin")
	fixture.registry.Register("bt", "/lib/firmware/bt.hcd")

	result, err := fixture.scheduler(t, 10).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Reason != ReasonComplete || result.Cycles != 1 || result.Delivered != 2 {
		t.Fatalf("result = %+v, want complete after 1 cycle with 2 delivered", result)
	}

	// Registration order, one handshake each.
	want := []loaderCall{
		{node: fixture.node("wlan0.bin"), source: "/lib/firmware/wlan0.bin"},
		{node: fixture.node("hci0-bt.hcd"), source: "/lib/firmware/bt.hcd"},
	}
	if len(fixture.loader.calls) != len(want) {
		t.Fatalf("loader calls = %+v, want %+v", fixture.loader.calls, want)
	}
	for i := range want {
		if fixture.loader.calls[i] != want[i] {
			t.Errorf("call %d = %+v, want %+v", i, fixture.loader.calls[i], want[i])
		}
	}
	// One fresh scan per undelivered entry.
	if fixture.scanner.scans != 2 {
		t.Errorf("scans = %d, want 2", fixture.scanner.scans)
	}
}

func TestSchedulerRequestAppearsLater(t *testing.T) {
	fixture := newSchedulerFixture(t)
	fixture.registry.Register("wlan0", "/lib/firmware/wlan0.bin")
	fixture.clock.OnSleep(func(count int) {
		if count == 3 {
			fixture.class.AddRequest("wlan0.bin")
		}
	})

	result, err := fixture.scheduler(t, 5).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Reason != ReasonComplete || result.Cycles != 4 {
		t.Fatalf("result = %+v, want complete after 4 cycles", result)
	}
	if len(fixture.loader.calls) != 1 {
		t.Errorf("loader called %d times, want once", len(fixture.loader.calls))
	}
}

func TestSchedulerProgressResetsStall(t *testing.T) {
	fixture := newSchedulerFixture(t)
	fixture.registry.Register("wlan0", "wlan0.bin")
	fixture.registry.Register("bt", "bt.hcd")
	fixture.clock.OnSleep(func(count int) {
		switch count {
		case 2:
			fixture.class.AddRequest("wlan0.bin")
		case 5:
			fixture.class.AddRequest("bt.hcd")
		}
	})

	// Cycles 1-2 stall, 3 delivers wlan0, 4-5 stall, 6 delivers bt.
	// Without the reset the stall count would reach 3 at cycle 4.
	result, err := fixture.scheduler(t, 3).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Reason != ReasonComplete || result.Cycles != 6 {
		t.Fatalf("result = %+v, want complete after 6 cycles", result)
	}
}

func TestSchedulerTimeoutWithPartialDelivery(t *testing.T) {
	fixture := newSchedulerFixture(t)
	fixture.class.AddRequest("wlan0.bin")
	fixture.registry.Register("wlan0", "wlan0.bin")
	fixture.registry.Register("gpu", "gpu.bin")

	result, err := fixture.scheduler(t, 4).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Reason != ReasonTimeout {
		t.Fatalf("Reason = %q, want timeout", result.Reason)
	}
	// The delivering cycle does not count as a stall.
	if result.Cycles != 5 {
		t.Errorf("Cycles = %d, want 5", result.Cycles)
	}
	if result.Delivered != 1 || result.Remaining != 1 {
		t.Errorf("Delivered=%d Remaining=%d, want 1 1", result.Delivered, result.Remaining)
	}

	// The request node is still present on every later scan, but a
	// delivered entry is never revisited.
	if len(fixture.loader.calls) != 1 {
		t.Errorf("loader called %d times, want once", len(fixture.loader.calls))
	}
	entries := fixture.registry.Entries()
	if !entries[0].Delivered() || entries[1].Delivered() {
		t.Errorf("entries = %+v, want only wlan0 delivered", entries)
	}
}

func TestSchedulerOverlappingNames(t *testing.T) {
	fixture := newSchedulerFixture(t)
	fixture.class.AddRequest("eth0.bin")
	fixture.registry.Register("eth", "/lib/firmware/eth.bin")
	fixture.registry.Register("eth0", "/lib/firmware/eth0.bin")

	if _, err := fixture.scheduler(t, 1).Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// "eth" is registered first and is a substring of "eth0.bin", so it
	// claims the node with its own source.
	if len(fixture.loader.calls) == 0 {
		t.Fatal("no delivery")
	}
	first := fixture.loader.calls[0]
	if first.node != fixture.node("eth0.bin") || first.source != "/lib/firmware/eth.bin" {
		t.Errorf("first delivery = %+v, want eth.bin into eth0.bin", first)
	}
}

func TestSchedulerZeroThresholdWaitsForever(t *testing.T) {
	fixture := newSchedulerFixture(t)
	fixture.registry.Register("wlan0", "wlan0.bin")
	fixture.clock.OnSleep(func(count int) {
		if count == 500 {
			fixture.class.AddRequest("wlan0.bin")
		}
	})

	result, err := fixture.scheduler(t, 0).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Reason != ReasonComplete || result.Cycles != 501 {
		t.Fatalf("result = %+v, want complete after 501 cycles", result)
	}
}

func TestSchedulerScanErrorIsFatal(t *testing.T) {
	fixture := newSchedulerFixture(t)
	fixture.registry.Register("wlan0", "wlan0.bin")
	missing := filepath.Join(t.TempDir(), "no-firmware-class")
	fixture.scanner = &countingScanner{Scanner: DirScanner{Root: missing}}

	result, err := fixture.scheduler(t, 10).Run()

	var scanErr *Error
	if !errors.As(err, &scanErr) || scanErr.Kind != KindDirectoryScan || scanErr.Path != missing {
		t.Fatalf("Run error = %v, want KindDirectoryScan on %s", err, missing)
	}
	if result.Reason != "" || result.Cycles != 1 {
		t.Errorf("result = %+v, want no reason after 1 cycle", result)
	}
	if len(fixture.clock.Sleeps()) != 0 {
		t.Error("scheduler slept after a fatal scan error")
	}
}

func TestSchedulerDeliveryErrorIsFatal(t *testing.T) {
	fixture := newSchedulerFixture(t)
	fixture.class.AddRequest("wlan0.bin")
	fixture.class.AddRequest("bt.hcd")
	fixture.registry.Register("wlan0", "wlan0.bin")
	fixture.registry.Register("bt", "bt.hcd")
	injected := &Error{Kind: KindWrite, Path: fixture.node("wlan0.bin") + "/data", Err: errInjected}
	fixture.loader.err = injected

	result, err := fixture.scheduler(t, 10).Run()
	if !errors.Is(err, errInjected) {
		t.Fatalf("Run error = %v, want the injected delivery error", err)
	}
	var deliveryErr *Error
	if !errors.As(err, &deliveryErr) || deliveryErr != injected {
		t.Errorf("Run error does not unwrap to the delivery *Error: %v", err)
	}

	// No skipping ahead to the next entry, and the failed entry stays
	// undelivered.
	if len(fixture.loader.calls) != 1 {
		t.Errorf("loader called %d times, want 1", len(fixture.loader.calls))
	}
	if result.Delivered != 0 || result.Remaining != 2 {
		t.Errorf("Delivered=%d Remaining=%d, want 0 2", result.Delivered, result.Remaining)
	}
}

func TestSchedulerWithDelivererEndToEnd(t *testing.T) {
	fixture := newSchedulerFixture(t)
	fixture.class.AddRequest("wlan0.bin")
	contents := []byte("wireless firmware image")
	fixture.registry.Register("wlan0", testutil.WriteSource(t, "wlan0.bin", contents))

	var logs bytes.Buffer
	scheduler, err := NewScheduler(SchedulerConfig{
		Registry:       fixture.registry,
		Scanner:        DirScanner{Root: fixture.class.Root},
		Loader:         NewDeliverer(),
		Clock:          fixture.clock,
		PollInterval:   testPollInterval,
		StallThreshold: 3,
		Logger:         slog.New(slog.NewTextHandler(&logs, nil)),
	})
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	result, err := scheduler.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Reason != ReasonComplete {
		t.Fatalf("Reason = %q, want complete", result.Reason)
	}
	if got := fixture.class.Data("wlan0.bin"); !bytes.Equal(got, contents) {
		t.Errorf("data = %q, want %q", got, contents)
	}
	for _, want := range []string{`msg="loading firmware"`, "name=wlan0", "request=wlan0.bin", "blake3=" + digestPayload(contents)} {
		if !strings.Contains(logs.String(), want) {
			t.Errorf("logs missing %q:\n%s", want, logs.String())
		}
	}
}

func TestNewSchedulerValidation(t *testing.T) {
	tests := []struct {
		name   string
		config SchedulerConfig
	}{
		{"no registry", SchedulerConfig{PollInterval: time.Second}},
		{"zero interval", SchedulerConfig{Registry: &Registry{}}},
		{"negative interval", SchedulerConfig{Registry: &Registry{}, PollInterval: -time.Second}},
		{"negative threshold", SchedulerConfig{Registry: &Registry{}, PollInterval: time.Second, StallThreshold: -1}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := NewScheduler(test.config); err == nil {
				t.Fatal("NewScheduler succeeded, want error")
			}
		})
	}

	scheduler, err := NewScheduler(SchedulerConfig{Registry: &Registry{}, PollInterval: time.Second})
	if err != nil {
		t.Fatalf("NewScheduler with defaults: %v", err)
	}
	if scanner, ok := scheduler.scanner.(DirScanner); !ok || scanner.Root != DefaultClassDirectory {
		t.Errorf("default scanner = %#v, want DirScanner on %s", scheduler.scanner, DefaultClassDirectory)
	}
}

func TestStallThreshold(t *testing.T) {
	tests := []struct {
		timeout  time.Duration
		interval time.Duration
		want     int
	}{
		{time.Second, 100 * time.Millisecond, 10},
		{30 * time.Second, 100 * time.Millisecond, 300},
		{1050 * time.Millisecond, 100 * time.Millisecond, 11},
		{50 * time.Millisecond, 100 * time.Millisecond, 1},
		{0, 100 * time.Millisecond, 0},
		{-time.Second, 100 * time.Millisecond, 0},
		{time.Second, 0, 0},
		{time.Duration(math.MaxInt64), time.Second, 9223372037},
	}
	for _, test := range tests {
		if got := StallThreshold(test.timeout, test.interval); got != test.want {
			t.Errorf("StallThreshold(%v, %v) = %d, want %d", test.timeout, test.interval, got, test.want)
		}
	}
}
