package compression

import "sync"

// slot is one entry of the fixed-capacity compression side-table
// (spec.md §3): base -> compressed_size, present only while the region's
// bytes hold codec output rather than plaintext.
type slot struct {
	base       uintptr
	compressed int
	used       bool
}

// sideTable is a pre-sized, allocation-free-after-construction map from a
// region's base address to its compressed size, grounded in the
// teacher's size-classed allocator.MemoryPool pre-sizing idiom
// (internal/allocator/pool.go) rather than a Go map, so the fault path
// that queries it never grows the heap.
type sideTable struct {
	mu    sync.Mutex
	slots []slot
}

func newSideTable(capacity int) *sideTable {
	return &sideTable{slots: make([]slot, capacity)}
}

// set records base as compressed to compressedSize, reusing an existing
// slot for base if present. Returns false if the table is full and base
// is not already tracked — callers treat this as "skip compressing this
// region this interval" rather than an error.
func (t *sideTable) set(base uintptr, compressedSize int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.slots {
		if t.slots[i].used && t.slots[i].base == base {
			t.slots[i].compressed = compressedSize
			return true
		}
	}

	for i := range t.slots {
		if !t.slots[i].used {
			t.slots[i] = slot{base: base, compressed: compressedSize, used: true}
			return true
		}
	}

	return false
}

// get returns the compressed size recorded for base, if any.
func (t *sideTable) get(base uintptr) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.slots {
		if t.slots[i].used && t.slots[i].base == base {
			return t.slots[i].compressed, true
		}
	}

	return 0, false
}

// clear removes base from the table (decompression, or deallocation).
func (t *sideTable) clear(base uintptr) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.slots {
		if t.slots[i].used && t.slots[i].base == base {
			t.slots[i] = slot{}
			return
		}
	}
}

// len returns the number of regions currently recorded as compressed.
func (t *sideTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0

	for i := range t.slots {
		if t.slots[i].used {
			n++
		}
	}

	return n
}
