package client_test

import (
	"encoding/binary"
	"io"
	"os"
	"strconv"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/frankenmichl/twopence"
	"github.com/frankenmichl/twopence/client"
	"github.com/frankenmichl/twopence/protocol"
	"github.com/frankenmichl/twopence/transport"
)

// newTestClient returns a Client dialed, through transport.RawPlugin, onto
// one end of a fresh AF_UNIX socketpair, plus the other end wrapped as a
// blocking fakeLink a test drives by hand to play the server's part.
// Command, inject, and extract are all client-initiated, so every test here
// supplies the peer side itself rather than standing up a full
// engine.Connection.
func newTestClient(t *testing.T) (*client.Client, *fakeLink) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("Socketpair: %v", err)
	}
	clientFd, serverFd := fds[0], fds[1]

	c := client.New(transport.RawPlugin, strconv.Itoa(clientFd))
	link := &fakeLink{
		f:  os.NewFile(uintptr(serverFd), "fake-server-link"),
		ps: protocol.State{Version: c.Config.Version},
	}
	t.Cleanup(func() { _ = link.f.Close() })
	return c, link
}

// fakeLink plays the server end of the wire protocol directly against a
// blocking fd, reading and writing whole frames synchronously the way a
// hand-scripted test double stands in for a real peer.
type fakeLink struct {
	f  *os.File
	ps protocol.State
}

// recv reads exactly one frame and returns its type and payload.
func (l *fakeLink) recv(t *testing.T) (twopence.PacketType, []byte) {
	t.Helper()
	hdrSize := l.ps.HeaderSize()
	hdr := make([]byte, hdrSize)
	if _, err := io.ReadFull(l.f, hdr); err != nil {
		t.Fatalf("fakeLink: read header: %v", err)
	}
	length := int(binary.BigEndian.Uint16(hdr[2:4]))
	body := make([]byte, length-hdrSize)
	if len(body) > 0 {
		if _, err := io.ReadFull(l.f, body); err != nil {
			t.Fatalf("fakeLink: read body: %v", err)
		}
	}
	return twopence.PacketType(hdr[0]), body
}

// send writes one complete frame.
func (l *fakeLink) send(t *testing.T, pt twopence.PacketType, payload []byte) {
	t.Helper()
	buf, err := protocol.Encode(l.ps, pt, payload, twopence.DefaultConfig.MTU)
	if err != nil {
		t.Fatalf("fakeLink: Encode: %v", err)
	}
	if _, err := l.f.Write(buf.Whole()); err != nil {
		t.Fatalf("fakeLink: write: %v", err)
	}
}

// sendUint sends an 'M'/'m'/'s'-shaped decimal-ASCII status frame.
func (l *fakeLink) sendUint(t *testing.T, pt twopence.PacketType, value int) {
	l.send(t, pt, protocol.FormatUint(value))
}

// testTimeout mirrors engine_test.go's drive-until-condition idiom for client
// operations, which block inside Client.Command/Inject/Extract until their
// own internal Tick loop observes done; callers here just bound how long
// they wait for the fakeLink side of a round trip before failing.
const testTimeout = 2 * time.Second
