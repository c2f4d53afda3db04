package server_test

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/frankenmichl/twopence"
	"github.com/frankenmichl/twopence/engine"
	"github.com/frankenmichl/twopence/protocol"
	"github.com/frankenmichl/twopence/transport"
)

// unixSocketpair returns one end of a connected AF_UNIX SOCK_STREAM pair,
// wrapped as the peer link a Transaction needs; the other end is closed
// immediately since these tests only exercise transaction-local behavior
// (send/recv hooks, status codes), never a real round trip.
func unixSocketpair(t *testing.T) (*transport.Socket, error) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, err
	}
	_ = unix.SetNonblock(fds[0], true)
	_ = unix.Close(fds[1])
	sock := transport.NewSocket(transport.RawPlugin, fds[0])
	t.Cleanup(func() { _ = sock.Close() })
	return sock, nil
}

// driveTx polls and drives tx's channels, bare-metal, the way
// engine.Connection.Tick would for a transaction under a full event loop
// (poll → let ready sockets read/write → hand channel output to the
// transaction to frame), until cond is satisfied or the deadline elapses.
// Server-side unit tests use this instead of spinning up a Connection,
// since they only care about a single transaction's local fd behavior.
func driveTx(t *testing.T, tx *engine.Transaction, cond func() bool) {
	t.Helper()
	hdrSize := protocol.State{Version: twopence.VersionLegacy}.HeaderSize()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		var pset transport.PollSet
		tx.FillPoll(&pset, hdrSize, twopence.MaxFrameLength)
		if _, err := pset.Wait(50); err != nil {
			t.Fatalf("PollSet.Wait: %v", err)
		}
		if err := tx.DoIO(); err != nil {
			t.Fatalf("tx.DoIO: %v", err)
		}
	}
	if !cond() {
		t.Fatalf("condition not satisfied before deadline")
	}
}
