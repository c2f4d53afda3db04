// Package client implements the four client-side command drivers: command,
// inject, extract, interrupt, plus the four output sink modes a command
// result can be delivered through.
package client

import (
	"io"
	"os"

	"github.com/frankenmichl/twopence"
)

// OutputSink is the external output-sink collaborator: screen, single
// buffer, split stderr/stdout buffers, and discard are all treated as
// plug-in interfaces. Stdout/Stderr are called once per '1'/'2' frame the
// server emits.
type OutputSink interface {
	Stdout(p []byte) error
	Stderr(p []byte) error
}

// ScreenSink writes stdout/stderr straight through to the calling process's
// own stdout/stderr.
type ScreenSink struct{}

func (ScreenSink) Stdout(p []byte) error { _, err := os.Stdout.Write(p); return err }
func (ScreenSink) Stderr(p []byte) error { _, err := os.Stderr.Write(p); return err }

// DiscardSink drops all output.
type DiscardSink struct{}

func (DiscardSink) Stdout([]byte) error { return nil }
func (DiscardSink) Stderr([]byte) error { return nil }

// errOverflow is returned by BufferSink/SplitBufferSink once more bytes
// arrive than the fixed-size buffer can hold: an overrun surfaces as a
// receive-results error.
var errOverflow = twopence.NewError(twopence.KindReceiveResults, io.ErrShortBuffer)

// BufferSink concatenates stdout and stderr into one fixed-capacity,
// NUL-terminated buffer holding both streams together, up to size bytes.
type BufferSink struct {
	buf []byte
	cap int
}

// NewBufferSink allocates a BufferSink with room for size bytes plus the
// trailing NUL.
func NewBufferSink(size int) *BufferSink {
	return &BufferSink{buf: make([]byte, 0, size+1), cap: size}
}

func (s *BufferSink) Stdout(p []byte) error { return s.append(p) }
func (s *BufferSink) Stderr(p []byte) error { return s.append(p) }

func (s *BufferSink) append(p []byte) error {
	if len(s.buf)+len(p) > s.cap {
		return errOverflow
	}
	s.buf = append(s.buf, p...)
	return nil
}

// Bytes returns the accumulated output with a trailing NUL appended.
func (s *BufferSink) Bytes() []byte {
	return append(append([]byte{}, s.buf...), 0)
}

// SplitBufferSink keeps stdout and stderr in two separate fixed-capacity,
// NUL-terminated buffers.
type SplitBufferSink struct {
	out, err *BufferSink
}

// NewSplitBufferSink allocates two buffers, each with room for size bytes.
func NewSplitBufferSink(size int) *SplitBufferSink {
	return &SplitBufferSink{out: NewBufferSink(size), err: NewBufferSink(size)}
}

func (s *SplitBufferSink) Stdout(p []byte) error { return s.out.append(p) }
func (s *SplitBufferSink) Stderr(p []byte) error { return s.err.append(p) }

// StdoutBytes returns the accumulated stdout with a trailing NUL.
func (s *SplitBufferSink) StdoutBytes() []byte { return s.out.Bytes() }

// StderrBytes returns the accumulated stderr with a trailing NUL.
func (s *SplitBufferSink) StderrBytes() []byte { return s.err.Bytes() }
