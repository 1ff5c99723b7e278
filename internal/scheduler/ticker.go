package scheduler

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Ticker drives Schedule on a wall-clock cadence independent of
// allocator hook traffic — spec.md §2's "a periodic scheduler
// additionally invokes each test on a time interval". Without it, a
// process that stops allocating/freeing would never run on_interval
// again, even though spec.md's end-to-end scenario 3 ("wait interval_ms;
// touch a") implies intervals elapse on wall-clock time, not just hook
// calls.
type Ticker struct {
	sched  *Scheduler
	minGap func() time.Duration
	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewTicker returns a Ticker that calls sched.Schedule(minGap()) on each
// tick; minGap is resolved freshly on every tick so a hot-reloaded
// interval (internal/config's HEAPTRAP_CONFIG_FILE watch) takes effect
// without restarting the ticker.
func NewTicker(sched *Scheduler, minGap func() time.Duration) *Ticker {
	return &Ticker{sched: sched, minGap: minGap}
}

// Start begins ticking at a fixed poll cadence (a fraction of the
// smallest plausible interval) until Stop is called. Calling Start twice
// without an intervening Stop is a no-op.
func (t *Ticker) Start() {
	if t.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel

	g, ctx := errgroup.WithContext(ctx)
	t.group = g

	g.Go(func() error {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				t.sched.Schedule(t.minGap())
			}
		}
	})
}

// Stop cancels the background tick goroutine and waits for it to exit.
func (t *Ticker) Stop() {
	if t.cancel == nil {
		return
	}

	t.cancel()
	t.group.Wait()
	t.cancel = nil
	t.group = nil
}
