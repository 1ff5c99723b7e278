// Command heaptrap-preload builds as a C shared library
// (-buildmode=c-shared) exporting malloc/free/mmap/munmap so it can be
// injected into an unmodified target process via LD_PRELOAD (or
// DYLD_INSERT_LIBRARIES on Darwin, where no fault handler is installed —
// internal/fault's unsupported-platform stub makes fault.Install return
// an error, which init logs). This is
// spec.md §6's external interface: the only file in the module that
// exists to be loaded by a process other than itself.
package main

/*
#include <stddef.h>
*/
import "C"

import (
	"unsafe"

	"github.com/orizon-lang/heaptrap/internal/config"
	"github.com/orizon-lang/heaptrap/internal/fault"
	"github.com/orizon-lang/heaptrap/internal/interposer"
	"github.com/orizon-lang/heaptrap/internal/interval/compression"
	"github.com/orizon-lang/heaptrap/internal/logger"
	"github.com/orizon-lang/heaptrap/internal/state"
)

func init() {
	cfg := config.Load()

	if err := fault.Install(); err != nil {
		logger.Logf(logger.ERROR, "heaptrap: fault handler not installed: %v", err)
	}

	// Wire the compression test by default: it's the archetypal
	// application named in spec.md §1. Operators who want a bare
	// tracker with no compression can set HEAPTRAP_CODEC="" to disable
	// it before the scheduler's tick loop starts observing allocations.
	if codecName := envOr("HEAPTRAP_CODEC", "lz4"); codecName != "" {
		if c, ok := codecCodec(codecName); ok {
			reg := state.Registry()
			state.Sched().AddTest(compression.New(reg, c, cfg.MaxTrackedAllocs))
		} else {
			logger.Logf(logger.WARN, "heaptrap: unknown codec %q, compression test disabled", codecName)
		}
	}
}

//export malloc
func malloc(n C.size_t) unsafe.Pointer {
	ptr, _ := interposer.Malloc(uintptr(n))
	return ptr
}

//export free
func free(ptr unsafe.Pointer) {
	interposer.Free(ptr)
}

//export mmap
func mmap(addr unsafe.Pointer, length C.size_t, prot, flags, fd C.int, offset C.long) unsafe.Pointer {
	ret, _ := interposer.Mmap(addr, uintptr(length), int(prot), int(flags), int(fd), int64(offset))
	return ret
}

//export munmap
func munmap(addr unsafe.Pointer, length C.size_t) C.int {
	result, _ := interposer.Munmap(addr, uintptr(length))
	return C.int(result)
}

func main() {}
