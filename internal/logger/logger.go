// Package logger provides the signal-safe, leveled, direct-write log sink
// used throughout heaptrap. It writes with the raw write(2) syscall so it
// never blocks on stdio buffering and never allocates on the fault path.
package logger

import (
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// Level is a leveled filter threshold, ordered least to most severe.
type Level int32

const (
	TRACE Level = iota
	DEBUG
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case TRACE:
		return "TRACE"
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps an env-style string ("TRACE".."ERROR") to a Level.
func ParseLevel(s string) (Level, bool) {
	switch s {
	case "TRACE":
		return TRACE, true
	case "DEBUG":
		return DEBUG, true
	case "INFO":
		return INFO, true
	case "WARN":
		return WARN, true
	case "ERROR":
		return ERROR, true
	default:
		return INFO, false
	}
}

var threshold int32 = int32(INFO)

// SetLevel sets the process-wide filter threshold. Safe to call from a
// config hot-reload goroutine; readers use an atomic load.
func SetLevel(l Level) {
	atomic.StoreInt32(&threshold, int32(l))
}

// CurrentLevel returns the active filter threshold.
func CurrentLevel() Level {
	return Level(atomic.LoadInt32(&threshold))
}

func enabled(l Level) bool {
	return l >= CurrentLevel()
}

// Logf writes a leveled, formatted line on the normal (non-signal) path.
// It may allocate; callers on the fault path must use Fault instead.
func Logf(l Level, format string, args ...interface{}) {
	if !enabled(l) {
		return
	}

	line := fmt.Sprintf("%s [%s] %s\n", time.Now().UTC().Format(time.RFC3339Nano), l, fmt.Sprintf(format, args...))
	writeRaw(line)
}

func writeRaw(s string) {
	b := []byte(s)
	for len(b) > 0 {
		n, err := unix.Write(2, b)
		if err != nil || n <= 0 {
			return
		}

		b = b[n:]
	}
}

// faultBufSize bounds the pre-sized, stack-resident buffer used by Fault.
// No heap allocation is permitted on this path (spec.md §4.7, §9).
const faultBufSize = 256

// Fault writes a leveled line from inside the signal handler. It performs
// no heap allocation: the message and hex-encoded address are assembled
// into a fixed-size array on the stack and written with a single raw
// write(2). tag identifies the call site ("fault", "reentrant-fault",
// "unknown-fault", ...); addr is formatted as a hex literal.
func Fault(l Level, tag string, addr uintptr) {
	if !enabled(l) {
		return
	}

	var buf [faultBufSize]byte

	n := copy(buf[:], "[")
	n += copy(buf[n:], l.String())
	n += copy(buf[n:], "] ")
	n += copy(buf[n:], tag)
	n += copy(buf[n:], " addr=0x")
	n += appendHex(buf[n:], uint64(addr))
	n += copy(buf[n:], "\n")

	for written := 0; written < n; {
		w, err := unix.Write(2, buf[written:n])
		if err != nil || w <= 0 {
			return
		}

		written += w
	}
}

// appendHex writes the lowercase hex digits of v into dst (no leading
// zeros, "0" for a zero value) and returns the number of bytes written.
// It uses only a stack-resident scratch array so Fault's no-heap-allocation
// guarantee holds for the address formatting too.
func appendHex(dst []byte, v uint64) int {
	if v == 0 {
		dst[0] = '0'
		return 1
	}

	var tmp [16]byte

	i := len(tmp)
	for v > 0 {
		i--

		d := byte(v & 0xf)
		if d < 10 {
			tmp[i] = '0' + d
		} else {
			tmp[i] = 'a' + d - 10
		}

		v >>= 4
	}

	return copy(dst, tmp[i:])
}
