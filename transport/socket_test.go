package transport_test

import (
	"bytes"
	"os"
	"testing"

	"github.com/frankenmichl/twopence/protocol"
	"github.com/frankenmichl/twopence/transport"
)

func pipePair(t *testing.T) (*transport.Socket, *transport.Socket) {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	t.Cleanup(func() { _ = r.Close(); _ = w.Close() })
	reader := transport.NewRawSocket(int(r.Fd()))
	writer := transport.NewRawSocket(int(w.Fd()))
	return reader, writer
}

func TestSocket_QueueXmitAndSendQueued(t *testing.T) {
	reader, writer := pipePair(t)

	buf := protocol.NewBuffer(5)
	copy(buf.Tail(), []byte("hello"))
	buf.Advance(5)
	writer.QueueXmit(buf)

	for writer.XmitQueueBytes() > 0 {
		if _, err := writer.SendQueued(); err != nil {
			t.Fatalf("SendQueued: %v", err)
		}
	}

	recv := protocol.NewBuffer(5)
	reader.PostRecvBuf(recv)
	if err := reader.DoIO(); err != nil {
		t.Fatalf("DoIO: %v", err)
	}
	got := reader.GetRecvBuf()
	if got == nil || !bytes.Equal(got.Bytes(), []byte("hello")) {
		t.Fatalf("got %v, want hello", got)
	}
}

func TestSocket_ReadEOF_OnWriterClose(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	reader := transport.NewRawSocket(int(r.Fd()))
	t.Cleanup(func() { _ = r.Close() })

	_ = w.Close() // writer gone; reader should observe EOF

	recv := protocol.NewBuffer(16)
	reader.PostRecvBuf(recv)
	if err := reader.DoIO(); err != nil {
		t.Fatalf("DoIO: %v", err)
	}
	if !reader.IsReadEOF() {
		t.Fatalf("expected read EOF after writer closed")
	}
}

func TestSocket_WantRecv_WantSend(t *testing.T) {
	reader, writer := pipePair(t)

	if reader.WantRecv() {
		t.Fatalf("WantRecv should be false before a recv buffer is posted")
	}
	reader.PostRecvBuf(protocol.NewBuffer(8))
	if !reader.WantRecv() {
		t.Fatalf("WantRecv should be true once a recv buffer is posted")
	}

	if writer.WantSend() {
		t.Fatalf("WantSend should be false with an empty send queue")
	}
	buf := protocol.NewBuffer(2)
	copy(buf.Tail(), []byte("hi"))
	buf.Advance(2)
	writer.QueueXmit(buf)
	if !writer.WantSend() {
		t.Fatalf("WantSend should be true with a nonempty send queue")
	}
}

func TestSocket_MarkDeadOnHardError(t *testing.T) {
	r, _, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	sock := transport.NewRawSocket(int(r.Fd()))
	_ = r.Close() // underlying fd now invalid

	sock.PostRecvBuf(protocol.NewBuffer(8))
	_ = sock.DoIO()
	if !sock.IsDead() {
		t.Fatalf("expected socket to be marked dead after read on a closed fd")
	}
	if sock.DeadCause() == nil {
		t.Fatalf("expected a non-nil DeadCause")
	}
}
