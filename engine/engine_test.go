package engine_test

import (
	"context"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/frankenmichl/twopence"
	"github.com/frankenmichl/twopence/engine"
	"github.com/frankenmichl/twopence/protocol"
	"github.com/frankenmichl/twopence/transport"
)

// socketPair returns two Sockets backed by a connected AF_UNIX SOCK_STREAM
// pair, standing in for the client and server ends of a real peer link
// without needing an actual virtio/serial device.
func socketPair(t *testing.T) (*transport.Socket, *transport.Socket) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("Socketpair: %v", err)
	}
	if err := unix.SetNonblock(fds[0], true); err != nil {
		t.Fatalf("SetNonblock: %v", err)
	}
	if err := unix.SetNonblock(fds[1], true); err != nil {
		t.Fatalf("SetNonblock: %v", err)
	}
	a := transport.NewSocket(transport.RawPlugin, fds[0])
	b := transport.NewSocket(transport.RawPlugin, fds[1])
	t.Cleanup(func() { _ = a.Close(); _ = b.Close() })
	return a, b
}

// drive ticks both connections until cond is satisfied or the deadline
// elapses, so tests never depend on exact tick counts.
func drive(t *testing.T, cond func() bool, conns ...*engine.Connection) {
	t.Helper()
	ctx := context.Background()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, c := range conns {
			if err := c.Tick(ctx); err != nil {
				t.Fatalf("Tick: %v", err)
			}
		}
		if cond() {
			return
		}
	}
	t.Fatalf("condition not satisfied before deadline")
}

func TestTransaction_SendStatus_MarksDone(t *testing.T) {
	clientLink, serverLink := socketPair(t)
	ps := protocol.State{Version: twopence.VersionLegacy}

	tx := engine.NewTransaction(0, twopence.KindCommand, serverLink, ps)
	tx.SetHooks(nil, nil)
	tx.SendStatus(0, 7)

	if !tx.Done() {
		t.Fatalf("expected transaction done after SendStatus")
	}
	if tx.MajorCode() != 0 || tx.MinorCode() != 7 {
		t.Fatalf("got major=%d minor=%d, want 0,7", tx.MajorCode(), tx.MinorCode())
	}
	_ = clientLink
}

func TestTransaction_Fail_SendsWhicheverHalfIsMissing(t *testing.T) {
	_, serverLink := socketPair(t)
	ps := protocol.State{Version: twopence.VersionLegacy}
	tx := engine.NewTransaction(0, twopence.KindCommand, serverLink, ps)

	err := tx.Fail(42)
	if err == nil {
		t.Fatalf("expected Fail to return a PROTOCOL error")
	}
	if !tx.Done() {
		t.Fatalf("expected Fail to mark the transaction done")
	}
	if tx.MajorCode() != 42 {
		t.Fatalf("major = %d, want 42", tx.MajorCode())
	}
}

func TestTransaction_RecvPacket_DropsAfterDone(t *testing.T) {
	_, serverLink := socketPair(t)
	ps := protocol.State{Version: twopence.VersionLegacy}
	var hookCalls int
	tx := engine.NewTransaction(0, twopence.KindCommand, serverLink, ps)
	tx.SetHooks(func(tx *engine.Transaction, pt twopence.PacketType, payload []byte) error {
		hookCalls++
		return nil
	}, nil)
	tx.SendStatus(0, 0)

	if err := tx.RecvPacket(twopence.PacketStdout, []byte("late")); err != nil {
		t.Fatalf("RecvPacket after done: %v", err)
	}
	if hookCalls != 0 {
		t.Fatalf("hook should not run once a transaction is done")
	}
}

func TestConnection_EndToEnd_CommandRoundTrip(t *testing.T) {
	clientLink, serverLink := socketPair(t)
	ctx := context.Background()

	clientPS := protocol.State{Version: twopence.VersionLegacy, Client: true}
	serverPS := protocol.State{Version: twopence.VersionLegacy}
	clientConn := engine.NewConnection(ctx, clientLink, clientPS)
	serverConn := engine.NewConnection(ctx, serverLink, serverPS)

	var serverSawCommand bool
	serverConn.OnUnknownTransaction = func(id uint16, pt twopence.PacketType, payload []byte) {
		if pt != twopence.PacketCommand {
			t.Fatalf("unexpected first packet %q", pt)
		}
		user, cmd, err := protocol.ParseCommand(payload)
		if err != nil {
			t.Fatalf("ParseCommand: %v", err)
		}
		if user != "root" || cmd != "true" {
			t.Fatalf("got user=%q cmd=%q", user, cmd)
		}
		serverSawCommand = true
		tx := engine.NewTransaction(id, twopence.KindCommand, serverLink, serverPS)
		serverConn.Register(tx)
		tx.SetHooks(nil, nil)
		tx.SendStatus(0, 0)
	}

	clientTx := engine.NewTransaction(clientConn.NewTransactionID(), twopence.KindCommand, clientLink, clientPS)
	var clientDone bool
	clientTx.SetHooks(func(tx *engine.Transaction, pt twopence.PacketType, payload []byte) error {
		switch pt {
		case twopence.PacketMajor:
			code, _ := protocol.ParseUint(payload)
			tx.RecordMajor(code)
		case twopence.PacketMinor:
			code, _ := protocol.ParseUint(payload)
			tx.RecordMinor(code)
			tx.MarkDone()
			clientDone = true
		}
		return nil
	}, nil)
	clientConn.Register(clientTx)
	clientTx.SendFrame(twopence.PacketCommand, protocol.FormatCommand("root", "true"))

	drive(t, func() bool { return clientDone }, clientConn, serverConn)

	if !serverSawCommand {
		t.Fatalf("server never observed the command header")
	}
	if clientTx.MajorCode() != 0 || clientTx.MinorCode() != 0 {
		t.Fatalf("got major=%d minor=%d, want 0,0", clientTx.MajorCode(), clientTx.MinorCode())
	}
}

func TestConnection_LinkTimeout_FailsPendingTransactions(t *testing.T) {
	_, serverLink := socketPair(t)
	ctx := context.Background()
	ps := protocol.State{Version: twopence.VersionLegacy}
	conn := engine.NewConnection(ctx, serverLink, ps)
	conn.SetLinkTimeout(1 * time.Millisecond)

	tx := engine.NewTransaction(0, twopence.KindCommand, serverLink, ps)
	tx.SetHooks(nil, nil)
	conn.Register(tx)

	time.Sleep(5 * time.Millisecond)
	if err := conn.Tick(ctx); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if !tx.Done() {
		t.Fatalf("expected transaction to be failed by link timeout")
	}
}
