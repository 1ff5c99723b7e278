package fault

import (
	"github.com/orizon-lang/heaptrap/internal/logger"
	"github.com/orizon-lang/heaptrap/internal/region"
	"github.com/orizon-lang/heaptrap/internal/registry"
	"github.com/orizon-lang/heaptrap/internal/scheduler"
	"github.com/orizon-lang/heaptrap/internal/state"
)

// Disposition tells the thin cgo trampoline what to do once Handle
// returns: either the fault has been resolved and the faulting
// instruction should be retried, or it could not be attributed to a
// tracked region and the process should fall through to the default
// disposition (crash), per spec.md §4.7 step 7 and §9.
type Disposition int

const (
	// Resolved means the faulting page was made accessible; retry.
	Resolved Disposition = iota
	// Unknown means the address isn't ours; re-raise the signal.
	Unknown
)

// Handle implements spec.md §4.7's signal-handler body end to end. addr
// is the faulting address, isWrite/recognized come from the
// architecture-specific classification in classify.go.
//
// Step 2's reentry check happens before the guard is raised: if another
// hook or a previous fault dispatch is already running (process-wide,
// not per-thread — an accepted coarse model per spec.md §5), this fault
// is treated as self-inflicted. The single page containing addr is made
// read-write and control returns immediately without touching the
// registry or scheduler, since both may be mid-mutation under the held
// guard.
func Handle(addr uintptr, isWrite bool, recognized bool) Disposition {
	if state.InHook() {
		logger.Fault(logger.WARN, "reentrant-fault", addr)
		p := region.PageOf(addr)
		p.Unprotect()
		return Resolved
	}

	if !state.TryEnterHook() {
		// Lost a race against a hook entry between the check above and
		// here; same treatment as the reentrant branch.
		p := region.PageOf(addr)
		p.Unprotect()
		return Resolved
	}
	defer state.ExitHook()

	reg := state.Registry()
	r := reg.Get(addr)
	if r == nil {
		logger.Fault(logger.ERROR, "unknown-fault", addr)
		return Unknown
	}

	if !recognized {
		logger.Fault(logger.DEBUG, "unrecognized-access", addr)
	}

	dispatchAccess(state.Sched(), reg, r, addr, isWrite)

	return Resolved
}

// dispatchAccess re-arms only the faulting page, never the whole region:
// spec.md §4.7 step 6 and §9 require the handler to leave just that page
// accessible so the rest of a multi-page region stays protected and traps
// on its own first touch.
func dispatchAccess(sched *scheduler.Scheduler, reg *registry.Registry, r *region.Region, addr uintptr, isWrite bool) {
	cfg := state.Config()

	sched.OnAccess(r, isWrite)

	page := region.PageOf(addr)

	if cfg.UnprotectRWOnFault {
		page.ChangePermissions(region.PermRead | region.PermWrite)
		return
	}

	// Leave the page at the minimal permission that satisfies this
	// access: read-only for a load, read-write for a store. A later
	// access of the other kind simply faults again.
	if isWrite {
		page.ChangePermissions(region.PermRead | region.PermWrite)
	} else {
		page.ChangePermissions(region.PermRead)
	}
}
