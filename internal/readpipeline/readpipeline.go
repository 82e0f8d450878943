// Package readpipeline streams a session's output buffer to an HTTP
// client in two modes — raw bytes and line-delimited text.
package readpipeline

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/medo6/shim/internal/session"
)

// ErrEOF signals the output buffer has no more data, mapped to a 416
// "EOF - range out of bounds" response by the HTTP layer.
var ErrEOF = errors.New("EOF - range out of bounds")

// pollInterval is the tick used while waiting for output data to
// appear.
const pollInterval = 250 * time.Millisecond

// openNonBlocking lazily opens (or reuses) the slot's output file in
// non-blocking read mode. The descriptor is never closed between
// calls so repeat reads advance the shared offset.
func openNonBlocking(slot *session.Slot) (*os.File, error) {
	if f := slot.OutputFD(); f != nil {
		return f, nil
	}
	f, err := os.OpenFile(slot.OutputPath(), os.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, err
	}
	slot.SetOutputFD(f)
	return f, nil
}

// pollReadable blocks in 250ms ticks until fd is readable or poll
// itself errors.
func pollReadable(fd uintptr) error {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(fds, int(pollInterval.Milliseconds()))
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return err
		}
		if n > 0 {
			return nil
		}
	}
}

// ReadBytes implements /read_bytes: if n < 1 the whole file is
// returned; otherwise it clamps n to the file size and math.MaxInt32,
// polls for readability, and performs a single bounded read.
func ReadBytes(slot *session.Slot, n int) ([]byte, error) {
	if n < 1 {
		return os.ReadFile(slot.OutputPath())
	}

	f, err := openNonBlocking(slot)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("fstat output buffer: %w", err)
	}

	clamped := n
	if int64(clamped) > info.Size() {
		clamped = int(info.Size())
	}
	if clamped > math.MaxInt32 {
		clamped = math.MaxInt32
	}
	if clamped <= 0 {
		clamped = n
		if clamped > math.MaxInt32 {
			clamped = math.MaxInt32
		}
	}

	if err := pollReadable(f.Fd()); err != nil {
		return nil, err
	}

	buf := make([]byte, clamped)
	read, err := f.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if read == 0 {
		return nil, ErrEOF
	}
	return buf[:read], nil
}

// ReadLines implements /read_lines: if n < 1 the whole file is
// returned; otherwise it reads exactly n lines (or stops at EOF),
// growing an output buffer by doubling as needed.
func ReadLines(slot *session.Slot, n int) ([]byte, error) {
	if n < 1 {
		return os.ReadFile(slot.OutputPath())
	}

	f, err := openNonBlocking(slot)
	if err != nil {
		return nil, err
	}

	if err := pollReadable(f.Fd()); err != nil {
		return nil, err
	}

	r := slot.LineReader()
	if r == nil {
		r = bufio.NewReader(f)
		slot.SetLineReader(r)
	}

	out := make([]byte, 0, 4096)
	lines := 0
	for lines < n {
		line, err := r.ReadBytes('\n')
		out = appendGrow(out, line)
		if len(line) > 0 {
			lines++
		}
		if err != nil {
			break
		}
	}

	if len(out) == 0 {
		return nil, ErrEOF
	}
	return out, nil
}

// appendGrow appends src to dst, doubling dst's capacity when it runs
// out of room rather than relying solely on append's own growth.
func appendGrow(dst, src []byte) []byte {
	if cap(dst)-len(dst) < len(src) {
		grown := make([]byte, len(dst), maxInt(cap(dst)*2, len(dst)+len(src)))
		copy(grown, dst)
		dst = grown
	}
	return append(dst, src...)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
