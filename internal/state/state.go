// Package state holds heaptrap's process-wide singletons: the registry,
// the scheduler/test suite, and the reentry guard (spec.md §3's
// "Process-wide state" component). Everything here is initialized once,
// lazily, on first use from the interposer's hooked entry points.
package state

import (
	"sync"
	"sync/atomic"

	"github.com/orizon-lang/heaptrap/internal/config"
	"github.com/orizon-lang/heaptrap/internal/scheduler"
	"github.com/orizon-lang/heaptrap/internal/registry"
)

var (
	initOnce sync.Once

	reg   *registry.Registry
	sched *scheduler.Scheduler
	cfg   *config.Config
	tick  *scheduler.Ticker

	reentry int32 // atomic; 0 = not held, 1 = held
)

// Init builds the registry and scheduler from cfg if they don't already
// exist, and starts the background interval ticker. Safe to call from
// every hooked entry point; only the first call does anything.
func Init() (*registry.Registry, *scheduler.Scheduler, *config.Config) {
	initOnce.Do(func() {
		cfg = config.Load()
		reg = registry.New(cfg.MaxTrackedAllocs)
		sched = scheduler.New(reg, cfg.MaxIntervalTests)
		tick = scheduler.NewTicker(sched, config.NewIntervalConfig(cfg).Interval)
		tick.Start()
	})

	return reg, sched, cfg
}

// Registry returns the process-wide registry, initializing state if
// necessary.
func Registry() *registry.Registry {
	reg, _, _ := Init()
	return reg
}

// Sched returns the process-wide scheduler, initializing state if
// necessary.
func Sched() *scheduler.Scheduler {
	_, sched, _ := Init()
	return sched
}

// Config returns the process-wide configuration, initializing state if
// necessary.
func Config() *config.Config {
	_, _, cfg := Init()
	return cfg
}

// TryEnterHook raises the reentry guard if it is not already held and
// reports whether the caller is the outermost hook invocation. Every
// exported malloc/free/mmap/munmap and the fault handler call this on
// entry; if it returns false, the caller must forward to the original
// symbol untracked rather than touch the registry or scheduler
// (spec.md §3, §4.6, §4.7).
func TryEnterHook() (outermost bool) {
	return atomic.CompareAndSwapInt32(&reentry, 0, 1)
}

// ExitHook lowers the reentry guard. Every path out of an outermost hook
// invocation — including the fault handler's early return on an
// untracked address — must call this exactly once per successful
// TryEnterHook. The fault handler's reentrant branch never raised the
// guard and so does not call it.
func ExitHook() {
	atomic.StoreInt32(&reentry, 0)
}

// InHook reports whether the reentry guard is currently held, without
// attempting to acquire it. Used by the fault handler to distinguish "a
// fault happened while our own code was running" from "a fault happened
// in ordinary user code" (spec.md §4.7 step 2).
func InHook() bool {
	return atomic.LoadInt32(&reentry) == 1
}

// Stats is a point-in-time snapshot for the diagnostics CLI (SPEC_FULL.md's
// supplemented "stats snapshot" feature); it is not consumed by any core
// path.
type Stats struct {
	TrackedRegions   int
	IntervalTests    int
	IntervalsRun     uint64
	MaxTrackedAllocs int
	MaxIntervalTests int
}

// Snapshot returns the current process-wide Stats, initializing state if
// necessary.
func Snapshot() Stats {
	reg, sched, cfg := Init()

	return Stats{
		TrackedRegions:   reg.Len(),
		IntervalTests:    len(sched.Tests()),
		IntervalsRun:     sched.TotalIntervalsExecuted(),
		MaxTrackedAllocs: cfg.MaxTrackedAllocs,
		MaxIntervalTests: cfg.MaxIntervalTests,
	}
}
