package engine_test

import (
	"bytes"
	"os"
	"testing"

	"github.com/frankenmichl/twopence"
	"github.com/frankenmichl/twopence/engine"
	"github.com/frankenmichl/twopence/transport"
)

func TestChannel_SinkWritesToLocalFd(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	defer r.Close()

	sink := engine.NewSink(twopence.PacketStdout, int(w.Fd()))
	sink.Write([]byte("hello"))
	sink.Flush()
	_ = sink.Close()

	got := make([]byte, 5)
	n, err := r.Read(got)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got[:n], []byte("hello")) {
		t.Fatalf("got %q, want hello", got[:n])
	}
}

func TestChannel_SourceFiresReadEOF(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	defer r.Close()
	_ = w.Close()

	src := engine.NewSource(twopence.PacketStdin, int(r.Fd()))
	var fired bool
	src.OnReadEOF(func() { fired = true })

	var p transport.PollSet
	src.Poll(&p, 4, twopence.MaxFrameLength)
	if _, err := p.Wait(200); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	_, readEOF := src.DoIO()
	if !readEOF || !fired {
		t.Fatalf("expected read EOF to fire: readEOF=%v fired=%v", readEOF, fired)
	}
}

func TestChannel_KeepFdOpen_SkipsRealClose(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	src := engine.NewSource(twopence.PacketStdin, int(r.Fd()))
	src.KeepFdOpen()
	if err := src.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// The fd must still be usable: a real close would make this Fstat fail.
	if _, err := r.Stat(); err != nil {
		t.Fatalf("fd appears closed despite KeepFdOpen: %v", err)
	}
}

func TestChannel_Close_Idempotent(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	defer r.Close()
	_ = w

	sink := engine.NewSink(twopence.PacketStdout, int(w.Fd()))
	if err := sink.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got: %v", err)
	}
}

func TestChannel_ShutdownWrite_FiresWriteEOFOnce(t *testing.T) {
	_, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	defer w.Close()

	sink := engine.NewSink(twopence.PacketStdout, int(w.Fd()))
	var calls int
	sink.OnWriteEOF(func() { calls++ })
	sink.ShutdownWrite()
	sink.ShutdownWrite()
	if calls != 1 {
		t.Fatalf("write-EOF callback fired %d times, want 1", calls)
	}
}
