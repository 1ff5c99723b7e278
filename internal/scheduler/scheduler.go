// Package scheduler implements spec.md §4.5: the time-gated interval
// dispatcher and the protect/unprotect fence wrapped around every
// on_alloc/on_dealloc/on_access/on_interval dispatch.
package scheduler

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/orizon-lang/heaptrap/internal/interval"
	"github.com/orizon-lang/heaptrap/internal/logger"
	"github.com/orizon-lang/heaptrap/internal/region"
	"github.com/orizon-lang/heaptrap/internal/registry"
)

// fenceWait bounds how long a dispatch will wait to acquire the test-suite
// writer lock before giving up and logging rather than blocking the
// caller indefinitely — the degrade-gracefully posture spec.md §5/§9
// asks of anything that could be invoked from the fault path.
const fenceWait = 2 * time.Second

// Scheduler holds the interval-dispatch state of spec.md §4.5: the last
// dispatch time, a running count, and the ordered test list.
type Scheduler struct {
	reg *registry.Registry

	// sem is the test-suite writer lock: weight 1 so Acquire/Release
	// behaves as a mutex, but via a context-boundable semaphore rather
	// than sync.Mutex so a stuck test can time out instead of wedging
	// every future on_access (spec.md §5's "degrade gracefully").
	sem *semaphore.Weighted

	mu       sync.Mutex // guards tests, lastInterval, totalIntervals
	tests    []interval.Test
	capacity int

	lastInterval   time.Time
	totalIntervals uint64
}

// New returns a Scheduler reading region membership from reg, with a test
// list bounded at capacity entries (MAX_INTERVAL_TESTS).
func New(reg *registry.Registry, capacity int) *Scheduler {
	return &Scheduler{
		reg:      reg,
		sem:      semaphore.NewWeighted(1),
		capacity: capacity,
	}
}

// AddTest appends t to the test list, in the register/insertion order
// spec.md §3 requires tests be traversed. Returns false if the list is
// already at MAX_INTERVAL_TESTS.
func (s *Scheduler) AddTest(t interval.Test) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.tests) >= s.capacity {
		return false
	}

	s.tests = append(s.tests, t)

	return true
}

// Tests returns a snapshot of the current test list, in traversal order.
func (s *Scheduler) Tests() []interval.Test {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]interval.Test, len(s.tests))
	copy(out, s.tests)

	return out
}

// TotalIntervalsExecuted returns how many times on_interval has fired.
func (s *Scheduler) TotalIntervalsExecuted() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.totalIntervals
}

func (s *Scheduler) withTestSuiteLock(f func()) {
	ctx, cancel := context.WithTimeout(context.Background(), fenceWait)
	defer cancel()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		logger.Logf(logger.WARN, "scheduler: test-suite lock timed out, skipping dispatch: %v", err)
		return
	}
	defer s.sem.Release(1)

	f()
}

// Schedule is spec.md §4.5's schedule(config) operation: ready on first
// call, or once interval has elapsed since the last dispatch. Not ready
// is a silent no-op — the interposer invokes Schedule after every
// tracked allocation and deallocation (spec.md §4.6), and the Ticker on
// every tick, relying on this gate.
func (s *Scheduler) Schedule(minGap time.Duration) {
	s.mu.Lock()
	first := s.totalIntervals == 0
	ready := first || time.Since(s.lastInterval) >= minGap

	if !ready {
		s.mu.Unlock()
		return
	}

	s.totalIntervals++
	s.mu.Unlock()

	regions := s.reg.Snapshot()
	region.ChangePermissionsPages(regions, region.PermRead|region.PermWrite)

	s.mu.Lock()
	s.lastInterval = time.Now()
	s.mu.Unlock()

	s.withTestSuiteLock(func() {
		tests := s.Tests()
		done := make([]bool, len(tests))

		for i, t := range tests {
			t.OnInterval()
			done[i] = t.IsDone()
		}

		s.retire(tests, done)
	})

	// Re-enumerate: a test may have allocated/freed regions during
	// on_interval (compression tests don't, but spec.md §4.5 step 7
	// calls for a fresh union, not a reuse of the pre-dispatch one).
	region.ChangePermissionsPages(s.reg.Snapshot(), region.PermNone)
}

// retire removes tests marked done, preserving relative order and
// traversal correctness under in-place removal (spec.md §4.5 step 6).
func (s *Scheduler) retire(observed []interval.Test, done []bool) {
	if !anyTrue(done) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.tests[:0]

	for _, t := range s.tests {
		retire := false

		for i, o := range observed {
			if o == t && done[i] {
				retire = true
				break
			}
		}

		if !retire {
			kept = append(kept, t)
		} else {
			logger.Logf(logger.INFO, "scheduler: retiring test %s (is_done)", t.Name())
		}
	}

	s.tests = kept
}

func anyTrue(bs []bool) bool {
	for _, b := range bs {
		if b {
			return true
		}
	}

	return false
}

// OnAlloc is spec.md §4.5's on_alloc(region): unprotect the region's
// pages, fan out to tests, re-protect.
func (s *Scheduler) OnAlloc(r *region.Region) {
	r.Unprotect()
	s.withTestSuiteLock(func() {
		for _, t := range s.Tests() {
			t.OnAlloc(r)
		}
	})
	r.Protect()
}

// OnDealloc is spec.md §4.5's on_dealloc(region).
func (s *Scheduler) OnDealloc(r *region.Region) {
	r.Unprotect()
	s.withTestSuiteLock(func() {
		for _, t := range s.Tests() {
			t.OnDealloc(r)
		}
	})
	r.Protect()
}

// OnAccess is spec.md §4.5's on_access(region, is_write): unprotect,
// fan out to OnAccess then OnWrite/OnRead, re-protect. The fault handler,
// not the scheduler, decides the exact page to leave accessible after
// the fault returns (spec.md §4.7) — Protect here establishes the
// invariant "after any scheduler entry point returns, tracked regions
// are NONE", which the fault handler then immediately relaxes for the
// one faulting page.
func (s *Scheduler) OnAccess(r *region.Region, isWrite bool) {
	r.Unprotect()
	s.withTestSuiteLock(func() {
		for _, t := range s.Tests() {
			t.OnAccess(r, isWrite)

			if isWrite {
				t.OnWrite(r)
			} else {
				t.OnRead(r)
			}
		}
	})
	r.Protect()
}
