//go:build linux

// Package diag implements spec.md §6's diagnostic probe:
// virtual_to_physical, reading /proc/self/pagemap. It is not on the core
// path — exposed only for tests and the standalone diagnostics CLI.
package diag

import (
	"fmt"
	"os"

	"github.com/orizon-lang/heaptrap/internal/region"
)

const (
	pagemapEntryBytes = 8
	presentBit        = uint64(1) << 63
	pfnMask           = (uint64(1) << 55) - 1
)

// VirtualToPhysical resolves addr's physical frame number via
// /proc/self/pagemap and returns pfn*page_size + (addr mod page_size),
// or (0, false) if the page isn't present (e.g. never faulted in, or
// swapped out) or the pagemap read fails.
func VirtualToPhysical(addr uintptr) (uint64, bool) {
	f, err := os.Open("/proc/self/pagemap")
	if err != nil {
		return 0, false
	}
	defer f.Close()

	pageSize := region.PageSize()
	pageIndex := uint64(addr) / uint64(pageSize)

	buf := make([]byte, pagemapEntryBytes)
	if _, err := f.ReadAt(buf, int64(pageIndex*pagemapEntryBytes)); err != nil {
		return 0, false
	}

	entry := le64(buf)
	if entry&presentBit == 0 {
		return 0, false
	}

	pfn := entry & pfnMask

	return pfn*uint64(pageSize) + uint64(addr)%uint64(pageSize), true
}

func le64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// FormatEntry renders a pagemap lookup for the CLI's human-readable
// output.
func FormatEntry(addr uintptr, phys uint64, ok bool) string {
	if !ok {
		return fmt.Sprintf("%#x -> (not present)", addr)
	}
	return fmt.Sprintf("%#x -> %#x", addr, phys)
}
