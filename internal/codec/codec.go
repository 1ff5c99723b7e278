// Package codec implements spec.md §4.3: compressors are pure values
// identifying an algorithm, exposed behind compress_into/decompress_into
// and compress_in_place/decompress_in_place. LZ4 and Snappy are the
// codecs spec.md names explicitly; the teacher's internal/stdlib/compress
// named Gzip/Zlib/Deflate as supported Algorithm values but stubbed LZ4
// and Snappy outright ("not yet implemented") — this package replaces
// those stubs with working implementations and keeps the stdlib trio as
// additional, equally real codecs.
package codec

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"io"

	"github.com/golang/snappy"
	"github.com/pierrec/lz4/v4"
)

// MaxCompressedSize is the upper bound spec.md §4.3 guarantees regardless
// of codec: 65536, or the codec's own size bound for the input, whichever
// is larger.
const MaxCompressedSize = 65536

// Codec is a pure value identifying a compression algorithm.
type Codec interface {
	// Name identifies the algorithm, e.g. "lz4", "snappy".
	Name() string

	// CompressInto writes the compressed form of src into dst and returns
	// the number of bytes written, or an error if dst is too small or the
	// codec rejects src.
	CompressInto(dst, src []byte) (int, error)

	// DecompressInto writes the decompressed form of src into dst and
	// returns the number of bytes written.
	DecompressInto(dst, src []byte) (int, error)

	// Bound returns the codec's own worst-case compressed size for an
	// input of srcLen bytes.
	Bound(srcLen int) int
}

func boundOf(c Codec, srcLen int) int {
	b := c.Bound(srcLen)
	if b < MaxCompressedSize {
		return MaxCompressedSize
	}

	return b
}

// CompressInPlace compresses buf's contents with c, overwrites the head
// of buf with the compressed output, zeroes the tail up to the original
// length, and returns the compressed length. On failure (e.g. the
// compressed form would not fit, or the codec errors), buf is left
// bitwise unchanged and ok is false — spec.md §4.3/§8.
func CompressInPlace(c Codec, buf []byte) (size int, ok bool) {
	original := len(buf)
	if original == 0 {
		return 0, false
	}

	scratch := make([]byte, boundOf(c, original))

	n, err := c.CompressInto(scratch, buf)
	if err != nil || n >= original {
		// Expansion (or any failure) isn't worth it: leave buf untouched.
		return 0, false
	}

	copy(buf[:n], scratch[:n])

	for i := n; i < original; i++ {
		buf[i] = 0
	}

	return n, true
}

// DecompressInPlace inverts CompressInPlace: buf[:compressedSize] holds
// codec output for the region's original length len(buf); on success the
// full buf is overwritten with the decompressed bytes.
func DecompressInPlace(c Codec, buf []byte, compressedSize int) (size int, ok bool) {
	if compressedSize <= 0 || compressedSize > len(buf) {
		return 0, false
	}

	scratch := make([]byte, len(buf))

	n, err := c.DecompressInto(scratch, buf[:compressedSize])
	if err != nil || n != len(buf) {
		return 0, false
	}

	copy(buf, scratch[:n])

	return n, true
}

// --- LZ4 ---------------------------------------------------------------

type lz4Codec struct{}

// LZ4 is the block LZ4 codec from github.com/pierrec/lz4/v4.
var LZ4 Codec = lz4Codec{}

func (lz4Codec) Name() string { return "lz4" }

func (lz4Codec) Bound(srcLen int) int { return lz4.CompressBlockBound(srcLen) }

func (lz4Codec) CompressInto(dst, src []byte) (int, error) {
	var c lz4.Compressor
	return c.CompressBlock(src, dst)
}

func (lz4Codec) DecompressInto(dst, src []byte) (int, error) {
	return lz4.UncompressBlock(src, dst)
}

// --- Snappy --------------------------------------------------------------

type snappyCodec struct{}

// Snappy is the block Snappy codec from github.com/golang/snappy.
var Snappy Codec = snappyCodec{}

func (snappyCodec) Name() string { return "snappy" }

func (snappyCodec) Bound(srcLen int) int { return snappy.MaxEncodedLen(srcLen) }

func (snappyCodec) CompressInto(dst, src []byte) (int, error) {
	if bound := snappy.MaxEncodedLen(len(src)); bound < 0 || bound > len(dst) {
		return 0, errTooSmall
	}

	out := snappy.Encode(dst, src)

	return len(out), nil
}

func (snappyCodec) DecompressInto(dst, src []byte) (int, error) {
	out, err := snappy.Decode(dst, src)
	if err != nil {
		return 0, err
	}

	return len(out), nil
}

// --- stdlib DEFLATE family ------------------------------------------------

// streamCodec adapts one of compress/{gzip,zlib,flate} to Codec. These
// algorithms aren't block codecs with a cheap bound function, so Bound
// is conservative (srcLen plus a fixed envelope) rather than exact.
type streamCodec struct {
	name    string
	newW    func(io.Writer) (io.WriteCloser, error)
	newR    func(io.Reader) (io.ReadCloser, error)
	envelope int
}

func (s streamCodec) Name() string { return s.name }

func (s streamCodec) Bound(srcLen int) int { return srcLen + s.envelope }

func (s streamCodec) CompressInto(dst, src []byte) (int, error) {
	var buf bytes.Buffer

	w, err := s.newW(&buf)
	if err != nil {
		return 0, err
	}

	if _, err := w.Write(src); err != nil {
		return 0, err
	}

	if err := w.Close(); err != nil {
		return 0, err
	}

	if buf.Len() > len(dst) {
		return 0, errTooSmall
	}

	return copy(dst, buf.Bytes()), nil
}

func (s streamCodec) DecompressInto(dst, src []byte) (int, error) {
	r, err := s.newR(bytes.NewReader(src))
	if err != nil {
		return 0, err
	}
	defer r.Close()

	n, err := io.ReadFull(r, dst)
	if err != nil && err != io.ErrUnexpectedEOF {
		return 0, err
	}

	return n, nil
}

// Gzip, Zlib and Deflate are additional opaque codecs beyond the LZ4 and
// Snappy spec.md names explicitly, matching the wider Algorithm set the
// teacher's compress package advertised.
var (
	Gzip Codec = streamCodec{
		name: "gzip",
		newW: func(w io.Writer) (io.WriteCloser, error) { return gzip.NewWriter(w), nil },
		newR: func(r io.Reader) (io.ReadCloser, error) { return gzip.NewReader(r) },
		envelope: 64,
	}
	Zlib Codec = streamCodec{
		name: "zlib",
		newW: func(w io.Writer) (io.WriteCloser, error) { return zlib.NewWriter(w), nil },
		newR: func(r io.Reader) (io.ReadCloser, error) { return zlib.NewReader(r) },
		envelope: 32,
	}
	Deflate Codec = streamCodec{
		name: "deflate",
		newW: func(w io.Writer) (io.WriteCloser, error) { return flate.NewWriter(w, flate.DefaultCompression) },
		newR: func(r io.Reader) (io.ReadCloser, error) { return flate.NewReader(r), nil },
		envelope: 16,
	}
)

var errTooSmall = errBound("destination buffer too small for compressed output")

type errBound string

func (e errBound) Error() string { return string(e) }

// ByName resolves a codec by its Name(), for config-driven selection
// (e.g. the compression interval test picking a codec from an env var).
func ByName(name string) (Codec, bool) {
	switch name {
	case "lz4":
		return LZ4, true
	case "snappy":
		return Snappy, true
	case "gzip":
		return Gzip, true
	case "zlib":
		return Zlib, true
	case "deflate":
		return Deflate, true
	default:
		return nil, false
	}
}
