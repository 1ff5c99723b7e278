// Command heaptrap-diag is a standalone CLI exercising the diagnostic
// surface spec.md §6 carves out of the core path: virtual-to-physical
// address translation, plus a process-wide stats snapshot (this process's
// own, not a target's — useful for sanity-checking a build before
// preloading it). It never loads the interposer into another process.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"unsafe"

	"github.com/orizon-lang/heaptrap/internal/diag"
	"github.com/orizon-lang/heaptrap/internal/state"
)

func main() {
	var (
		addrFlag  = flag.String("addr", "", "hex virtual address to translate, e.g. 0x7f0000 (this process's own address space)")
		statsFlag = flag.Bool("stats", false, "print a process-wide stats snapshot and exit")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-addr 0x...] [-stats]\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *statsFlag {
		printStats()
		return
	}

	if *addrFlag != "" {
		translate(*addrFlag)
		return
	}

	// Default: translate the address of a scratch local so there's
	// always something to show without requiring flags.
	var scratch int64 = 1
	scratch++
	translateAddr(uintptr(unsafe.Pointer(&scratch)))
}

func translate(hex string) {
	n, err := strconv.ParseUint(trimHexPrefix(hex), 16, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid address %q: %v\n", hex, err)
		os.Exit(1)
	}

	translateAddr(uintptr(n))
}

func translateAddr(addr uintptr) {
	phys, ok := diag.VirtualToPhysical(addr)
	fmt.Println(diag.FormatEntry(addr, phys, ok))
}

func trimHexPrefix(s string) string {
	if len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

func printStats() {
	s := state.Snapshot()
	fmt.Printf("tracked_regions=%d/%d\n", s.TrackedRegions, s.MaxTrackedAllocs)
	fmt.Printf("interval_tests=%d/%d\n", s.IntervalTests, s.MaxIntervalTests)
	fmt.Printf("intervals_run=%d\n", s.IntervalsRun)
}
