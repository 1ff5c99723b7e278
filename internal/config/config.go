// Package config holds heaptrap's compile-time constants and the runtime
// overrides layered on top of them: environment variables read once at
// interposer init, and an optional hot-reloaded key=value file for the
// handful of settings (log level, interval cadence) that operators need to
// adjust without restarting the host process they're preloaded into.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/fsnotify/fsnotify"

	"github.com/orizon-lang/heaptrap/internal/errors"
	"github.com/orizon-lang/heaptrap/internal/logger"
)

// Defaults mirror spec.md §6's compile-time constants.
const (
	DefaultAlignAllocationsToPageSize = false
	DefaultUnprotectReadWriteOnFault  = false
	DefaultIntervalMS                 = uint64(250)
	DefaultMaxTrackedAllocations      = 65536
	DefaultMaxIntervalTests           = 64
	abiConstraint                     = ">=1.0.0, <2.0.0"
	libraryABIVersion                 = "1.0.0"
)

// Config is the live, process-wide configuration. Fields read on the hot
// path (AlignToPage, UnprotectRWOnFault) are written once at startup and
// never mutated afterward; IntervalMS is updated atomically by the
// optional file watcher.
type Config struct {
	AlignToPage        bool
	UnprotectRWOnFault bool
	MaxTrackedAllocs   int
	MaxIntervalTests   int

	intervalMS int64 // atomic
}

// IntervalMS returns the current minimum wall-clock gap between interval
// dispatches (§4.5).
func (c *Config) IntervalMS() uint64 {
	return uint64(atomic.LoadInt64(&c.intervalMS))
}

// IntervalDuration is IntervalMS as a time.Duration, for callers (the
// interposer's explicit schedule() calls) that don't need the full
// IntervalConfig wrapper.
func (c *Config) IntervalDuration() time.Duration {
	return time.Duration(c.IntervalMS()) * time.Millisecond
}

func (c *Config) setIntervalMS(ms uint64) {
	atomic.StoreInt64(&c.intervalMS, int64(ms))
}

var (
	once    sync.Once
	current *Config
)

// Load reads environment overrides and returns the process-wide Config. It
// is safe to call repeatedly; the first call wins.
func Load() *Config {
	once.Do(func() {
		current = &Config{
			AlignToPage:        boolEnv("HEAPTRAP_ALIGN_TO_PAGE", DefaultAlignAllocationsToPageSize),
			UnprotectRWOnFault: boolEnv("HEAPTRAP_UNPROTECT_RW_ON_FAULT", DefaultUnprotectReadWriteOnFault),
			MaxTrackedAllocs:   intEnv("HEAPTRAP_MAX_TRACKED_ALLOCATIONS", DefaultMaxTrackedAllocations),
			MaxIntervalTests:   intEnv("HEAPTRAP_MAX_INTERVAL_TESTS", DefaultMaxIntervalTests),
		}
		current.setIntervalMS(uint64Env("HEAPTRAP_INTERVAL_MS", DefaultIntervalMS))

		if lvl, ok := logger.ParseLevel(os.Getenv("HEAPTRAP_LOG_LEVEL")); ok {
			logger.SetLevel(lvl)
		}

		if err := checkABI(); err != nil {
			errors.Fatal(err)
		}

		if path := os.Getenv("HEAPTRAP_CONFIG_FILE"); path != "" {
			watchFile(path, current)
		}
	})

	return current
}

func boolEnv(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		logger.Logf(logger.WARN, "config: %v", errors.ConfigInvalid(key, v))
		return def
	}

	return b
}

func intEnv(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}

	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		logger.Logf(logger.WARN, "config: %v", errors.ConfigInvalid(key, v))
		return def
	}

	return n
}

func uint64Env(key string, def uint64) uint64 {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}

	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		logger.Logf(logger.WARN, "config: %v", errors.ConfigInvalid(key, v))
		return def
	}

	return n
}

// checkABI validates this build's ABI version against the constraint this
// library pins, and against an optional operator override
// (HEAPTRAP_REQUIRE_ABI) naming the range the host process expects. A
// mismatch is fatal at init: loading an incompatible interposer build is
// worse than refusing to load at all.
func checkABI() *errors.StandardError {
	c, err := semver.NewConstraint(abiConstraint)
	if err != nil {
		return errors.New(errors.CategoryConfig, "ABI_CONSTRAINT_INVALID", err.Error(), nil)
	}

	v, err := semver.NewVersion(libraryABIVersion)
	if err != nil {
		return errors.New(errors.CategoryConfig, "ABI_VERSION_INVALID", err.Error(), nil)
	}

	if !c.Check(v) {
		return errors.New(errors.CategoryConfig, "ABI_MISMATCH",
			fmt.Sprintf("library ABI %s does not satisfy %s", libraryABIVersion, abiConstraint), nil)
	}

	if want := os.Getenv("HEAPTRAP_REQUIRE_ABI"); want != "" {
		wc, err := semver.NewConstraint(want)
		if err != nil {
			return errors.New(errors.CategoryConfig, "ABI_REQUIRE_INVALID",
				fmt.Sprintf("HEAPTRAP_REQUIRE_ABI=%q: %v", want, err), nil)
		}

		if !wc.Check(v) {
			return errors.New(errors.CategoryConfig, "ABI_REQUIRE_MISMATCH",
				fmt.Sprintf("library ABI %s does not satisfy required %q", libraryABIVersion, want), nil)
		}
	}

	return nil
}

// watchFile starts a background fsnotify watch on path, re-reading
// key=value lines ("interval_ms", "log_level") on every write event and
// applying them to cfg without restarting the host process. Errors are
// logged and non-fatal: a missing or unreadable override file just means
// the compiled-in/env defaults stay in effect.
func watchFile(path string, cfg *Config) {
	applyFile(path, cfg)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Logf(logger.WARN, "config: fsnotify unavailable: %v", err)
		return
	}

	if err := w.Add(path); err != nil {
		logger.Logf(logger.WARN, "config: cannot watch %s: %v", path, err)
		w.Close()

		return
	}

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}

				if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					applyFile(path, cfg)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}

				logger.Logf(logger.WARN, "config: watch error: %v", err)
			}
		}
	}()
}

func applyFile(path string, cfg *Config) {
	f, err := os.Open(path)
	if err != nil {
		logger.Logf(logger.WARN, "config: cannot open %s: %v", path, err)
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}

		k, v = strings.TrimSpace(k), strings.TrimSpace(v)

		switch k {
		case "interval_ms":
			if ms, err := strconv.ParseUint(v, 10, 64); err == nil {
				cfg.setIntervalMS(ms)
				logger.Logf(logger.INFO, "config: interval_ms -> %d", ms)
			}
		case "log_level":
			if lvl, ok := logger.ParseLevel(v); ok {
				logger.SetLevel(lvl)
				logger.Logf(logger.INFO, "config: log_level -> %s", lvl)
			}
		}
	}
}

// IntervalConfig mirrors spec.md §4.5's scheduler input.
type IntervalConfig struct {
	cfg *Config
}

// NewIntervalConfig binds an IntervalConfig view to cfg.
func NewIntervalConfig(cfg *Config) IntervalConfig {
	return IntervalConfig{cfg: cfg}
}

// Interval returns the current minimum gap between interval dispatches.
func (ic IntervalConfig) Interval() time.Duration {
	return time.Duration(ic.cfg.IntervalMS()) * time.Millisecond
}
