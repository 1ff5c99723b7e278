// Package interval implements the Interval Test capability of spec.md
// §4.4: a polymorphic handle the scheduler invokes on alloc, dealloc,
// access and interval events. Test implements the full set of entry
// points by embedding Base, which gives each a logged no-op default, so
// a concrete test only overrides what it actually needs — the pattern
// spec.md describes as "each defaulting to a logged no-op".
package interval

import (
	"github.com/orizon-lang/heaptrap/internal/logger"
	"github.com/orizon-lang/heaptrap/internal/region"
)

// Test is the capability set spec.md §4.4 names. A test tracks whether
// it is IsDone so the scheduler can retire it at the next scheduling
// boundary, and CloneBoxed lets the scheduler hand independent copies to
// isolated test lists (e.g. in tests of the scheduler itself).
type Test interface {
	Name() string
	IsDone() bool
	CloneBoxed() Test

	OnAlloc(r *region.Region)
	OnDealloc(r *region.Region)

	OnAccess(r *region.Region, isWrite bool)
	OnWrite(r *region.Region)
	OnRead(r *region.Region)

	OnInterval()
}

// Base implements every Test method as a logged no-op. Embed it in a
// concrete test and override only the entry points that matter.
type Base struct {
	TestName string
	Done     bool
}

func (b *Base) Name() string { return b.TestName }

func (b *Base) IsDone() bool { return b.Done }

func (b *Base) CloneBoxed() Test {
	clone := *b
	return &clone
}

func (b *Base) OnAlloc(r *region.Region) {
	logger.Logf(logger.TRACE, "%s: on_alloc base=%#x size=%d (no-op)", b.TestName, r.Base, r.Size)
}

func (b *Base) OnDealloc(r *region.Region) {
	logger.Logf(logger.TRACE, "%s: on_dealloc base=%#x (no-op)", b.TestName, r.Base)
}

func (b *Base) OnAccess(r *region.Region, isWrite bool) {
	logger.Logf(logger.TRACE, "%s: on_access base=%#x write=%v (no-op)", b.TestName, r.Base, isWrite)
}

func (b *Base) OnWrite(r *region.Region) {
	logger.Logf(logger.TRACE, "%s: on_write base=%#x (no-op)", b.TestName, r.Base)
}

func (b *Base) OnRead(r *region.Region) {
	logger.Logf(logger.TRACE, "%s: on_read base=%#x (no-op)", b.TestName, r.Base)
}

func (b *Base) OnInterval() {
	logger.Logf(logger.TRACE, "%s: on_interval (no-op)", b.TestName)
}
