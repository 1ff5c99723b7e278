package codec_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/orizon-lang/heaptrap/internal/codec"
	"github.com/orizon-lang/heaptrap/internal/testrunner/assert"
	"github.com/orizon-lang/heaptrap/internal/testrunner/fuzz"
	"github.com/orizon-lang/heaptrap/internal/testrunner/prop"
)

// genPayload builds a random byte slice with a size hint and a mix of
// compressible runs and incompressible noise, so the property below
// exercises both compress_in_place's success and "expansion, leave
// unchanged" branches (spec.md §4.3, §8).
func genPayload() prop.Generator[[]byte] {
	return func(r *rand.Rand, size int) []byte {
		if size <= 0 {
			size = 64
		}

		n := r.Intn(size*8 + 1)
		buf := make([]byte, n)

		if r.Intn(2) == 0 {
			for i := range buf {
				buf[i] = byte(i % 7)
			}
		} else {
			r.Read(buf)
		}

		return buf
	}
}

// TestCompressInPlaceRoundTripPropertyLZ4 checks spec.md §8's round-trip
// invariant across many random payload shapes: whenever compress_in_place
// reports success, decompress_in_place restores the original bytes
// exactly.
func TestCompressInPlaceRoundTripPropertyLZ4(t *testing.T) {
	result := prop.ForAll1(genPayload(), nil, func(original []byte) bool {
		buf := append([]byte(nil), original...)

		n, ok := codec.CompressInPlace(codec.LZ4, buf)
		if !ok {
			return true // expansion case is covered by codec_test.go directly
		}

		if _, ok := codec.DecompressInPlace(codec.LZ4, buf, n); !ok {
			return false
		}

		return string(buf) == string(original)
	}, prop.Options{Trials: 150, Seed: 1})

	assert.False(t, result.Failed)
}

// TestCompressInPlaceNeverPanicsOnArbitraryBytes fuzzes compress_in_place
// with the teacher's mutation-based fuzz loop; a panic here would violate
// spec.md §4.3/§7's "codec failure is reported, never crashes the caller".
func TestCompressInPlaceNeverPanicsOnArbitraryBytes(t *testing.T) {
	target := func(data []byte) error {
		buf := append([]byte(nil), data...)
		codec.CompressInPlace(codec.Snappy, buf)
		return nil
	}

	stats := fuzz.RunWithStats(fuzz.Options{
		Duration:    200 * time.Millisecond,
		Seed:        7,
		MaxInput:    4096,
		Concurrency: 2,
	}, []fuzz.CorpusEntry{{0}, []byte("hello world"), make([]byte, 256)}, target, fuzz.DefaultMutator(), nil)

	assert.Equal(t, stats.Crashes, uint64(0))
}
