package interposer_test

import (
	"os"
	"testing"

	"github.com/orizon-lang/heaptrap/internal/fault"
	"github.com/orizon-lang/heaptrap/internal/interposer"
	"github.com/orizon-lang/heaptrap/internal/symbols"
	"github.com/orizon-lang/heaptrap/internal/testrunner/assert"
)

// faultHandlerAvailable is set by TestMain once the process-wide
// SIGSEGV/SIGBUS handler is installed. Exercising Malloc's real
// Protect()/mprotect(NONE) call against the same memory free() later
// reads is only safe with that handler in place — Free's on_dealloc
// fence leaves the page NONE right before forwarding to the real free(),
// and without the handler the subsequent libc free() would fault
// unguarded. Platforms fault.Install doesn't support (anything other
// than linux/amd64 or linux/arm64) skip the tests that need it.
var faultHandlerAvailable bool

func TestMain(m *testing.M) {
	faultHandlerAvailable = fault.Install() == nil
	os.Exit(m.Run())
}

func TestMallocThenFreeRoundTrips(t *testing.T) {
	if !faultHandlerAvailable {
		t.Skip("fault handler unavailable on this platform")
	}

	ptr, outermost := interposer.Malloc(64)
	assert.True(t, outermost)
	assert.NotNil(t, ptr)

	freedOutermost := interposer.Free(ptr)
	assert.True(t, freedOutermost)
}

func TestFreeOfNilIsSafe(t *testing.T) {
	outermost := interposer.Free(nil)
	assert.True(t, outermost)
}

func TestFreeOfUntrackedPointerForwardsWithoutPanicking(t *testing.T) {
	// A pointer heaptrap never saw (e.g. allocated before the interposer
	// installed itself) must still be freed via the real allocator, just
	// without on_dealloc firing. Allocate directly through the resolved
	// original so the pointer is genuinely heap-valid but never touched
	// interposer.Malloc's registry insert — Free never protects memory,
	// so this is safe regardless of whether the fault handler is up.
	ptr := symbols.Resolve().Malloc(8)
	assert.NotNil(t, ptr)

	outermost := interposer.Free(ptr)
	assert.True(t, outermost)
}
