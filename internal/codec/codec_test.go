package codec_test

import (
	"testing"

	"github.com/orizon-lang/heaptrap/internal/codec"
	"github.com/orizon-lang/heaptrap/internal/testrunner/assert"
)

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 256)
	}

	return b
}

func testRoundTrip(t *testing.T, c codec.Codec) {
	t.Helper()

	original := pattern(4096)
	buf := make([]byte, len(original))
	copy(buf, original)

	size, ok := codec.CompressInPlace(c, buf)
	assert.True(t, ok, c.Name())

	decoded, ok := codec.DecompressInPlace(c, buf, size)
	assert.True(t, ok, c.Name())
	assert.Equal(t, decoded, len(original), c.Name())

	for i := range original {
		if buf[i] != original[i] {
			t.Fatalf("%s: round trip mismatch at byte %d: got %#x want %#x", c.Name(), i, buf[i], original[i])
		}
	}
}

func TestRoundTripLZ4(t *testing.T)    { testRoundTrip(t, codec.LZ4) }
func TestRoundTripSnappy(t *testing.T) { testRoundTrip(t, codec.Snappy) }
func TestRoundTripGzip(t *testing.T)   { testRoundTrip(t, codec.Gzip) }
func TestRoundTripZlib(t *testing.T)   { testRoundTrip(t, codec.Zlib) }
func TestRoundTripDeflate(t *testing.T) { testRoundTrip(t, codec.Deflate) }

func TestCompressInPlaceFailureLeavesBufferUnchanged(t *testing.T) {
	// Random, incompressible data where the compressed form would expand
	// past the original: CompressInPlace must refuse and leave buf as-is.
	original := []byte{
		0x9e, 0x01, 0xfa, 0x44, 0x7b, 0x33, 0xd0, 0x12,
	}
	buf := make([]byte, len(original))
	copy(buf, original)

	_, ok := codec.CompressInPlace(codec.LZ4, buf)
	if ok {
		t.Skip("lz4 happened to compress this tiny sample; not a useful counterexample")
	}

	assert.Equal(t, string(buf), string(original))
}

func TestByName(t *testing.T) {
	c, ok := codec.ByName("lz4")
	assert.True(t, ok)
	assert.Equal(t, c.Name(), "lz4")

	_, ok = codec.ByName("does-not-exist")
	assert.False(t, ok)
}
