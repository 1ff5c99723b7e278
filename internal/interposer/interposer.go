// Package interposer implements spec.md §4.6: the malloc/free/mmap/munmap
// hooks that the preload entrypoint exports across the C ABI. This
// package holds the pure Go-side logic (reentry check, registry and
// scheduler wiring); cmd/heaptrap-preload exports these as C symbols.
package interposer

import (
	"unsafe"

	"github.com/orizon-lang/heaptrap/internal/config"
	"github.com/orizon-lang/heaptrap/internal/logger"
	"github.com/orizon-lang/heaptrap/internal/region"
	"github.com/orizon-lang/heaptrap/internal/registry"
	"github.com/orizon-lang/heaptrap/internal/state"
	"github.com/orizon-lang/heaptrap/internal/symbols"
)

func pageRound(n uintptr, cfg *config.Config) uintptr {
	if !cfg.AlignToPage {
		return n
	}

	ps := region.PageSize()
	return (n + ps - 1) &^ (ps - 1)
}

func runInterval(reg *registry.Registry, cfg *config.Config) {
	state.Sched().Schedule(cfg.IntervalDuration())
}

// Malloc implements spec.md §4.6's malloc(n) step sequence. outermost
// reports whether this call raised the reentry guard itself; when false
// the call was forwarded to the original allocator untracked.
func Malloc(n uintptr) (ptr unsafe.Pointer, outermost bool) {
	orig := symbols.Resolve()

	if !state.TryEnterHook() {
		return orig.Malloc(n), false
	}
	defer state.ExitHook()

	cfg := state.Config()
	reg := state.Registry()

	requested := pageRound(n, cfg)
	ptr = orig.Malloc(requested)
	if ptr == nil {
		return nil, true
	}

	r := region.New(uintptr(ptr), n)

	outcome, ok := reg.Insert(r)
	if !ok {
		logger.Logf(logger.ERROR, "registry full: base=%#x size=%d untracked", r.Base, r.Size)
	} else if outcome == registry.Replaced {
		logger.Logf(logger.WARN, "double registration: base=%#x replaces prior tracked region", r.Base)
	}

	if ok {
		state.Sched().OnAlloc(r)
		runInterval(reg, cfg)
		r.Protect()
	}

	return ptr, true
}

// Free implements spec.md §4.6's free(ptr) step sequence.
func Free(ptr unsafe.Pointer) (outermost bool) {
	orig := symbols.Resolve()

	if !state.TryEnterHook() {
		orig.Free(ptr)
		return false
	}
	defer state.ExitHook()

	cfg := state.Config()
	reg := state.Registry()

	if ptr != nil {
		if r := reg.Remove(uintptr(ptr)); r != nil {
			state.Sched().OnDealloc(r)
			runInterval(reg, cfg)
		} else {
			logger.Logf(logger.DEBUG, "free of untracked pointer %#x", uintptr(ptr))
		}
	}

	orig.Free(ptr)

	return true
}

// Mmap implements spec.md §4.6's mmap mirror of malloc: track the
// returned mapping keyed by its requested length, never registering a
// MAP_FAILED result.
func Mmap(addr unsafe.Pointer, length uintptr, prot, flags, fd int, offset int64) (ret unsafe.Pointer, outermost bool) {
	orig := symbols.Resolve()

	if !state.TryEnterHook() {
		return orig.Mmap(addr, length, prot, flags, fd, offset), false
	}
	defer state.ExitHook()

	cfg := state.Config()
	reg := state.Registry()

	ret = orig.Mmap(addr, length, prot, flags, fd, offset)
	if ret == nil || ret == symbols.MapFailed {
		return ret, true
	}

	r := region.New(uintptr(ret), length)

	outcome, ok := reg.Insert(r)
	if !ok {
		logger.Logf(logger.ERROR, "registry full: base=%#x size=%d untracked", r.Base, r.Size)
	} else if outcome == registry.Replaced {
		logger.Logf(logger.WARN, "double registration: base=%#x replaces prior tracked region", r.Base)
	}

	if ok {
		state.Sched().OnAlloc(r)
		runInterval(reg, cfg)
		r.Protect()
	}

	return ret, true
}

// Munmap implements spec.md §4.6's munmap mirror of free.
func Munmap(addr unsafe.Pointer, length uintptr) (result int, outermost bool) {
	orig := symbols.Resolve()

	if !state.TryEnterHook() {
		return orig.Munmap(addr, length), false
	}
	defer state.ExitHook()

	cfg := state.Config()
	reg := state.Registry()

	if r := reg.Remove(uintptr(addr)); r != nil {
		state.Sched().OnDealloc(r)
		runInterval(reg, cfg)
	} else {
		logger.Logf(logger.DEBUG, "munmap of untracked mapping %#x", uintptr(addr))
	}

	return orig.Munmap(addr, length), true
}
