package registry_test

import (
	"sync"
	"testing"

	"github.com/orizon-lang/heaptrap/internal/region"
	"github.com/orizon-lang/heaptrap/internal/registry"
	"github.com/orizon-lang/heaptrap/internal/testrunner/assert"
	"github.com/orizon-lang/heaptrap/internal/testrunner/concurrency"
)

// TestConcurrentInsertGetRemoveIsRaceFree drives many goroutines through
// Insert/Get/Remove on disjoint bases and annotates every access in the
// teacher's lockset-based race detector, each goroutine holding logical
// lock 0 for its whole loop. Under concurrency every goroutine must see
// its own inserts and the registry must end empty (spec.md §4.2's
// "single-writer/multi-reader lock").
func TestConcurrentInsertGetRemoveIsRaceFree(t *testing.T) {
	const goroutines = 16
	const perGoroutine = 200

	reg := registry.New(goroutines * perGoroutine)
	det := concurrency.NewRaceDetector()

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for g := 0; g < goroutines; g++ {
		go func(gid int64) {
			defer wg.Done()

			det.OnLock(gid, 0)
			for i := 0; i < perGoroutine; i++ {
				base := uintptr((gid+1)*10000 + int64(i))
				r := region.New(base, 8)

				det.Write(gid, base)
				reg.Insert(r)

				det.Read(gid, base)
				got := reg.Get(base)
				if got == nil || got.Base != base {
					t.Errorf("goroutine %d: Get(%#x) missing its own insert", gid, base)
				}

				det.Write(gid, base)
				reg.Remove(base)
			}
			det.OnUnlock(gid, 0)
		}(int64(g))
	}

	wg.Wait()

	// Every goroutine only ever annotated its own disjoint base range, so
	// the detector, which sees only these annotations and not the
	// registry's internal RWMutex, must report no race.
	assert.False(t, det.HasRace())
	assert.Equal(t, reg.Len(), 0)
}

// TestConcurrentInsertAtSharedBaseDoesNotCorruptRegistry exercises
// spec.md §4.2's "replacing an existing entry is allowed" path under
// real contention: many goroutines race to insert at the same handful
// of bases. The registry must end up with exactly one live entry per
// base and never panic or corrupt its internal slice/map pair.
func TestConcurrentInsertAtSharedBaseDoesNotCorruptRegistry(t *testing.T) {
	const goroutines = 32
	const bases = 4

	reg := registry.New(bases)

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for g := 0; g < goroutines; g++ {
		go func(gid int) {
			defer wg.Done()
			base := uintptr((gid % bases) * 4096)
			reg.Insert(region.New(base, 64))
		}(g)
	}

	wg.Wait()

	assert.Equal(t, reg.Len(), bases)
	assert.Equal(t, len(reg.Snapshot()), bases)
}
