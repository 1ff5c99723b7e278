// Package symbols resolves the original libc allocator entry points
// (malloc/free/mmap/munmap) that the interposer shadows, using the
// host's "next symbol" lookup (RTLD_NEXT) — spec.md §3's "Original
// symbol slots" and §4.6's lazy resolution on first hook entry. This is
// inherently a cgo concern: dlsym and calling an arbitrary resolved
// function pointer have no pure-Go equivalent.
package symbols

/*
#define _GNU_SOURCE
#include <dlfcn.h>
#include <stddef.h>
#include <stdlib.h>
#include <sys/mman.h>

typedef void *(*malloc_fn)(size_t);
typedef void  (*free_fn)(void *);
// off_t is `long` on the LP64 Linux targets this library supports.
typedef void *(*mmap_fn)(void *, size_t, int, int, int, long);
typedef int   (*munmap_fn)(void *, size_t);

static void *heaptrap_resolve(const char *name) {
	return dlsym(RTLD_NEXT, name);
}

static void *heaptrap_call_malloc(void *fn, size_t n) {
	return ((malloc_fn)fn)(n);
}

static void heaptrap_call_free(void *fn, void *p) {
	((free_fn)fn)(p);
}

static void *heaptrap_call_mmap(void *fn, void *addr, size_t length, int prot, int flags, int fd, long offset) {
	return ((mmap_fn)fn)(addr, length, prot, flags, fd, offset);
}

static int heaptrap_call_munmap(void *fn, void *addr, size_t length) {
	return ((munmap_fn)fn)(addr, length);
}
*/
import "C"

import (
	"sync"
	"unsafe"

	"github.com/orizon-lang/heaptrap/internal/errors"
)

// Originals holds the four resolved function pointers, guarded by a
// reader-writer lock that is written exactly once at init and read on
// every forwarded call thereafter (spec.md §5).
type Originals struct {
	mu sync.RWMutex

	mallocFn unsafe.Pointer
	freeFn   unsafe.Pointer
	mmapFn   unsafe.Pointer
	munmapFn unsafe.Pointer

	resolved bool
}

var singleton Originals

// Resolve performs the RTLD_NEXT lookups for all four symbols if they
// have not already been resolved. Failure to resolve any of them is
// fatal at first hook entry per spec.md §3/§7.
func Resolve() *Originals {
	singleton.mu.RLock()
	if singleton.resolved {
		singleton.mu.RUnlock()
		return &singleton
	}
	singleton.mu.RUnlock()

	singleton.mu.Lock()
	defer singleton.mu.Unlock()

	if singleton.resolved {
		return &singleton
	}

	singleton.mallocFn = resolveOne("malloc")
	singleton.freeFn = resolveOne("free")
	singleton.mmapFn = resolveOne("mmap")
	singleton.munmapFn = resolveOne("munmap")
	singleton.resolved = true

	return &singleton
}

func resolveOne(name string) unsafe.Pointer {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	fn := C.heaptrap_resolve(cname)
	if fn == nil {
		errors.Fatal(errors.SymbolResolutionFailed(name))
	}

	return fn
}

// Malloc forwards to the original libc malloc.
func (o *Originals) Malloc(n uintptr) unsafe.Pointer {
	o.mu.RLock()
	fn := o.mallocFn
	o.mu.RUnlock()

	return C.heaptrap_call_malloc(fn, C.size_t(n))
}

// Free forwards to the original libc free.
func (o *Originals) Free(p unsafe.Pointer) {
	o.mu.RLock()
	fn := o.freeFn
	o.mu.RUnlock()

	C.heaptrap_call_free(fn, p)
}

// Mmap forwards to the original libc mmap.
func (o *Originals) Mmap(addr unsafe.Pointer, length uintptr, prot, flags, fd int, offset int64) unsafe.Pointer {
	o.mu.RLock()
	fn := o.mmapFn
	o.mu.RUnlock()

	return C.heaptrap_call_mmap(fn, addr, C.size_t(length), C.int(prot), C.int(flags), C.int(fd), C.long(offset))
}

// Munmap forwards to the original libc munmap.
func (o *Originals) Munmap(addr unsafe.Pointer, length uintptr) int {
	o.mu.RLock()
	fn := o.munmapFn
	o.mu.RUnlock()

	return int(C.heaptrap_call_munmap(fn, addr, C.size_t(length)))
}

// MapFailed is the sentinel mmap(2) returns on failure; spec.md §4.6
// requires a region not be registered when mmap returns it.
var MapFailed = unsafe.Pointer(^uintptr(0)) // (void *)-1, i.e. MAP_FAILED
