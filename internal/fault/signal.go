package fault

import "sync"

var (
	installOnce sync.Once
	installErr  error
)

// Install installs the process-wide SIGSEGV/SIGBUS handler exactly once,
// per spec.md §4.7 step 1. Safe to call from multiple goroutines; only
// the first call does anything, and every caller observes its result.
func Install() error {
	installOnce.Do(func() {
		installErr = doInstall()
	})
	return installErr
}

// dispositionCode adapts Disposition to the small int contract the cgo
// trampoline expects: 0 means the fault was resolved and the faulting
// instruction should be retried by returning from the signal handler; any
// other value means the address wasn't ours and the default disposition
// (core dump / crash) should proceed.
func dispositionCode(d Disposition) int {
	if d == Resolved {
		return 0
	}
	return 1
}
