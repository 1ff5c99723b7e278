// Package compression implements spec.md §4.4's compression test: the
// archetypal interval test that compresses tracked regions in place on
// on_interval and transparently decompresses them on on_access.
package compression

import (
	"github.com/orizon-lang/heaptrap/internal/codec"
	"github.com/orizon-lang/heaptrap/internal/errors"
	"github.com/orizon-lang/heaptrap/internal/interval"
	"github.com/orizon-lang/heaptrap/internal/logger"
	"github.com/orizon-lang/heaptrap/internal/region"
	"github.com/orizon-lang/heaptrap/internal/registry"
)

// Test compresses every tracked region it can on each on_interval and
// decompresses a region on the access that touches it. It never changes
// page protection itself — the scheduler's fence (spec.md §4.5) is
// responsible for making the region's bytes accessible before either
// callback runs.
type Test struct {
	interval.Base

	reg   *registry.Registry
	codec codec.Codec
	table *sideTable
}

// New returns a compression Test backed by reg (read via Snapshot on
// every on_interval) using c to compress/decompress, with a side-table
// sized to capacity (normally MAX_TRACKED_ALLOCATIONS).
func New(reg *registry.Registry, c codec.Codec, capacity int) *Test {
	return &Test{
		Base:  interval.Base{TestName: "compression(" + c.Name() + ")"},
		reg:   reg,
		codec: c,
		table: newSideTable(capacity),
	}
}

// OnInterval compresses every tracked region not already compressed.
// Codec failures are logged and leave the region uncompressed and the
// side-table entry absent, per spec.md §7.
func (t *Test) OnInterval() {
	for _, r := range t.reg.Snapshot() {
		if _, already := t.table.get(r.Base); already {
			continue
		}

		buf := r.AsMutBytes()

		size, ok := codec.CompressInPlace(t.codec, buf)
		if !ok {
			logger.Logf(logger.ERROR, "%v", errors.CodecFailure("compress_in_place", r.Base, len(buf)))
			continue
		}

		if !t.table.set(r.Base, size) {
			logger.Logf(logger.WARN, "compression: side-table full, leaving base=%#x uncompressed", r.Base)
			// Decompress back: we already mutated buf, so restore plaintext
			// rather than leave compressed bytes untracked.
			codec.DecompressInPlace(t.codec, buf, size)
		}
	}
}

// OnAccess decompresses r if the side-table shows it compressed,
// restoring the original bytes and removing the entry.
func (t *Test) OnAccess(r *region.Region, isWrite bool) {
	compressedSize, ok := t.table.get(r.Base)
	if !ok {
		return
	}

	buf := r.AsMutBytes()

	if _, ok := codec.DecompressInPlace(t.codec, buf, compressedSize); !ok {
		logger.Logf(logger.ERROR, "%v", errors.CodecFailure("decompress_in_place", r.Base, len(buf)))
		return
	}

	t.table.clear(r.Base)
}

// OnDealloc forgets any compression side-table entry for the freed
// region so a reused base doesn't inherit stale compressed-size state.
func (t *Test) OnDealloc(r *region.Region) {
	t.table.clear(r.Base)
}

// CompressedCount returns how many tracked regions are currently
// compressed, for diagnostics.
func (t *Test) CompressedCount() int { return t.table.len() }

// CloneBoxed returns an independent compression test sharing the same
// registry and codec but with its own side-table.
func (t *Test) CloneBoxed() interval.Test {
	return New(t.reg, t.codec, len(t.table.slots))
}
