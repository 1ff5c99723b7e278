package scheduler_test

import (
	"testing"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/orizon-lang/heaptrap/internal/interval"
	"github.com/orizon-lang/heaptrap/internal/region"
	"github.com/orizon-lang/heaptrap/internal/registry"
	"github.com/orizon-lang/heaptrap/internal/scheduler"
	"github.com/orizon-lang/heaptrap/internal/testrunner/assert"
)

// backedRegion maps an anonymous, private region with real OS pages so
// the scheduler's mprotect fences operate on genuine memory rather than
// Go-runtime-managed heap (protecting a slice from make([]byte, ...)
// would risk the garbage collector touching a revoked page).
func backedRegion(t *testing.T, size int) *region.Region {
	t.Helper()

	buf, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	assert.NoError(t, err)

	t.Cleanup(func() { unix.Munmap(buf) })

	return region.New(uintptr(unsafe.Pointer(&buf[0])), uintptr(size))
}

type countingTest struct {
	interval.Base
	intervals int
	allocs    int
	accesses  int
	writes    int
	reads     int
}

func (c *countingTest) OnInterval()                      { c.intervals++ }
func (c *countingTest) OnAlloc(r *region.Region)          { c.allocs++ }
func (c *countingTest) OnAccess(r *region.Region, w bool) { c.accesses++ }
func (c *countingTest) OnWrite(r *region.Region)          { c.writes++ }
func (c *countingTest) OnRead(r *region.Region)           { c.reads++ }

func TestScheduleFirstCallAlwaysRuns(t *testing.T) {
	reg := registry.New(4)
	s := scheduler.New(reg, 4)
	ct := &countingTest{}
	s.AddTest(ct)

	s.Schedule(time.Hour)
	assert.Equal(t, ct.intervals, 1)
	assert.Equal(t, s.TotalIntervalsExecuted(), uint64(1))
}

func TestScheduleIsIdempotentWithinInterval(t *testing.T) {
	reg := registry.New(4)
	s := scheduler.New(reg, 4)
	ct := &countingTest{}
	s.AddTest(ct)

	s.Schedule(time.Hour)
	s.Schedule(time.Hour) // too soon; must be a no-op
	assert.Equal(t, ct.intervals, 1)
}

func TestScheduleRunsAgainAfterIntervalElapses(t *testing.T) {
	reg := registry.New(4)
	s := scheduler.New(reg, 4)
	ct := &countingTest{}
	s.AddTest(ct)

	s.Schedule(10 * time.Millisecond)
	time.Sleep(15 * time.Millisecond)
	s.Schedule(10 * time.Millisecond)

	assert.Equal(t, ct.intervals, 2)
}

func TestOnAllocFansOutAndOnAccessDispatchesReadWrite(t *testing.T) {
	reg := registry.New(4)
	s := scheduler.New(reg, 4)
	ct := &countingTest{}
	s.AddTest(ct)

	r := backedRegion(t, 4096)
	reg.Insert(r)

	s.OnAlloc(r)
	assert.Equal(t, ct.allocs, 1)

	s.OnAccess(r, false)
	assert.Equal(t, ct.accesses, 1)
	assert.Equal(t, ct.reads, 1)
	assert.Equal(t, ct.writes, 0)

	s.OnAccess(r, true)
	assert.Equal(t, ct.writes, 1)
}

type doneAfterOneTest struct {
	interval.Base
	ran bool
}

func (d *doneAfterOneTest) OnInterval() { d.ran = true }
func (d *doneAfterOneTest) IsDone() bool { return d.ran }

func TestDoneTestIsRetiredAfterInterval(t *testing.T) {
	reg := registry.New(4)
	s := scheduler.New(reg, 4)
	d := &doneAfterOneTest{}
	s.AddTest(d)

	assert.Len(t, s.Tests(), 1)
	s.Schedule(time.Hour)
	assert.Len(t, s.Tests(), 0)
}

func TestAddTestRespectsCapacity(t *testing.T) {
	reg := registry.New(4)
	s := scheduler.New(reg, 1)

	assert.True(t, s.AddTest(&countingTest{}))
	assert.False(t, s.AddTest(&countingTest{}))
}
