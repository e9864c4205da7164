// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/fwloader/lib/clock"
	"github.com/bureau-foundation/fwloader/lib/firmware"
	"github.com/bureau-foundation/fwloader/lib/fwconfig"
	"github.com/bureau-foundation/fwloader/lib/process"
	"github.com/bureau-foundation/fwloader/lib/version"
)

const programName = "sysfs-fw-loader"

// timeoutEnv overrides defaultTimeout when --timeout is not given.
const timeoutEnv = "SYSFS_FW_LOADER_TIMEOUT"

const (
	defaultTimeout      = 30 * time.Second
	defaultPollInterval = 100 * time.Millisecond
)

func main() {
	err := run(environment{
		args:   os.Args[1:],
		getenv: os.Getenv,
		stdout: os.Stdout,
		stderr: os.Stderr,
		clock:  clock.Real(),
	})
	if err != nil {
		process.Fatal(programName, err)
	}
}

// environment is everything run takes from the process, so tests can
// substitute each piece.
type environment struct {
	args   []string
	getenv func(string) string
	stdout io.Writer
	stderr io.Writer
	clock  clock.Clock
}

// options is the parsed command line merged with the environment.
type options struct {
	configDirectory string
	sysfsDirectory  string
	timeout         time.Duration
	pollInterval    time.Duration
	logFormat       string
	logLevel        string
	showVersion     bool
}

func run(env environment) error {
	opts, err := parseOptions(env.args, env.getenv, env.stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	if opts.showVersion {
		fmt.Fprintf(env.stdout, "%s %s\n", programName, version.Full())
		return nil
	}

	logger, err := newLogger(env.stderr, opts.logFormat, opts.logLevel)
	if err != nil {
		return err
	}

	records, err := fwconfig.LoadDir(opts.configDirectory)
	if err != nil {
		return fmt.Errorf("loading firmware mappings: %w", err)
	}

	registry := &firmware.Registry{}
	for _, record := range records {
		registry.Register(record.Name, record.File)
		logger.Info("registered firmware", "name", record.Name, "file", record.File)
	}

	scheduler, err := firmware.NewScheduler(firmware.SchedulerConfig{
		Registry:       registry,
		Scanner:        firmware.DirScanner{Root: opts.sysfsDirectory},
		Loader:         firmware.NewDeliverer(),
		Clock:          env.clock,
		PollInterval:   opts.pollInterval,
		StallThreshold: firmware.StallThreshold(opts.timeout, opts.pollInterval),
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	started := env.clock.Now()
	result, err := scheduler.Run()
	if err != nil {
		return err
	}

	logger.Info("firmware loader finished",
		"reason", result.Reason,
		"cycles", result.Cycles,
		"delivered", result.Delivered,
		"remaining", result.Remaining,
		"elapsed", env.clock.Now().Sub(started),
	)
	return nil
}

// parseOptions parses args with pflag. Flags win over environment
// variables, which win over defaults.
func parseOptions(args []string, getenv func(string) string, output io.Writer) (options, error) {
	var (
		opts    options
		timeout string
	)

	flagSet := pflag.NewFlagSet(programName, pflag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.StringVar(&opts.configDirectory, "config-dir", "",
		"directory of firmware mapping files (default $"+fwconfig.DirectoryEnv+" or "+fwconfig.DefaultDirectory+")")
	flagSet.StringVar(&opts.sysfsDirectory, "sysfs-dir", firmware.DefaultClassDirectory,
		"firmware-class directory to poll for requests")
	flagSet.StringVar(&timeout, "timeout", "",
		"stall timeout in seconds or as a duration, 0 waits forever (default $"+timeoutEnv+" or "+defaultTimeout.String()+")")
	flagSet.DurationVar(&opts.pollInterval, "poll-interval", defaultPollInterval,
		"delay between request directory scans")
	flagSet.StringVar(&opts.logFormat, "log-format", "auto", "log format: auto, text, or json")
	flagSet.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, or error")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version information and exit")

	if err := flagSet.Parse(args); err != nil {
		return options{}, err
	}
	if flagSet.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %v", flagSet.Args())
	}

	if opts.configDirectory == "" {
		opts.configDirectory = getenv(fwconfig.DirectoryEnv)
	}
	if opts.configDirectory == "" {
		opts.configDirectory = fwconfig.DefaultDirectory
	}

	if opts.pollInterval <= 0 {
		return options{}, fmt.Errorf("--poll-interval must be positive, got %v", opts.pollInterval)
	}

	opts.timeout = defaultTimeout
	source := "--timeout"
	if timeout == "" {
		timeout = getenv(timeoutEnv)
		source = timeoutEnv
	}
	if timeout != "" {
		parsed, err := parseTimeout(timeout)
		if err != nil {
			return options{}, fmt.Errorf("%s: %w", source, err)
		}
		opts.timeout = parsed
	}

	return opts, nil
}

// parseTimeout accepts a number of seconds ("30", "7.5") or a Go
// duration ("45s", "2m").
func parseTimeout(value string) (time.Duration, error) {
	if seconds, err := strconv.ParseFloat(value, 64); err == nil {
		if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
			return 0, fmt.Errorf("timeout must be a non-negative number of seconds, got %q", value)
		}
		if seconds >= float64(math.MaxInt64)/float64(time.Second) {
			return 0, fmt.Errorf("timeout %q is too large", value)
		}
		return time.Duration(seconds * float64(time.Second)), nil
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: want seconds or a duration such as 45s", value)
	}
	if duration < 0 {
		return 0, fmt.Errorf("timeout must not be negative, got %q", value)
	}
	return duration, nil
}

// newLogger builds the process logger. "auto" picks slog.TextHandler
// when w is a terminal and slog.JSONHandler otherwise (journald,
// serial console capture, tests).
func newLogger(w io.Writer, format, level string) (*slog.Logger, error) {
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("--log-level: %w", err)
	}
	options := &slog.HandlerOptions{Level: logLevel}

	if format == "auto" {
		format = "json"
		if file, ok := w.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
			format = "text"
		}
	}

	switch format {
	case "text":
		return slog.New(slog.NewTextHandler(w, options)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, options)), nil
	default:
		return nil, fmt.Errorf("--log-format must be auto, text, or json, got %q", format)
	}
}
