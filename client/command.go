package client

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/frankenmichl/twopence"
	"github.com/frankenmichl/twopence/engine"
	"github.com/frankenmichl/twopence/protocol"
)

// Command runs one remote command to completion, delivering its stdout and
// stderr through sink, and forwarding the calling process's stdin. It
// returns the server's major and minor status codes.
func (c *Client) Command(ctx context.Context, user, command string, sink OutputSink) (major, minor int, err error) {
	sock, err := c.dial()
	if err != nil {
		return 0, 0, err
	}
	defer sock.Close()

	ps := protocol.State{Version: c.Config.Version, Client: true}
	conn := engine.NewConnection(ctx, sock, ps)
	conn.SetLinkTimeout(c.Config.LinkTimeout)

	id := conn.NewTransactionID()
	ps.TransactionID = id
	tx := engine.NewTransaction(id, twopence.KindCommand, sock, ps)
	conn.Register(tx)

	// Put the process's own stdin into non-blocking mode for the duration
	// of the command and restore it on every exit path.
	stdinFd := int(os.Stdin.Fd())
	stdin := engine.NewSource(twopence.PacketStdin, stdinFd)
	stdin.KeepFdOpen()
	stdin.OnReadEOF(func() { tx.SendFrame(twopence.PacketEOF, nil) })
	tx.AttachLocalSource(stdin)
	defer func() { _ = unix.SetNonblock(stdinFd, false) }()

	tx.SetHooks(func(tx *engine.Transaction, pt twopence.PacketType, payload []byte) error {
		switch pt {
		case twopence.PacketStdout:
			return sink.Stdout(payload)
		case twopence.PacketStderr:
			return sink.Stderr(payload)
		case twopence.PacketMajor:
			code, perr := protocol.ParseUint(payload)
			if perr != nil {
				return tx.Fail(-1)
			}
			tx.RecordMajor(code)
			return nil
		case twopence.PacketMinor:
			code, perr := protocol.ParseUint(payload)
			if perr != nil {
				return tx.Fail(-1)
			}
			tx.RecordMinor(code)
			tx.MarkDone()
			return nil
		default:
			return twopence.NewError(twopence.KindProtocol, errors.Errorf("command: unexpected packet %q", pt))
		}
	}, nil)

	payload := protocol.FormatCommand(user, command)
	buf, encErr := protocol.Encode(ps, twopence.PacketCommand, payload, c.Config.MTU)
	if encErr != nil {
		return 0, 0, twopence.NewError(twopence.KindSendCommand, encErr)
	}
	sock.QueueXmit(buf)

	for !tx.Done() && !sock.IsDead() {
		if tickErr := conn.Tick(ctx); tickErr != nil {
			return tx.MajorCode(), tx.MinorCode(), twopence.NewError(twopence.KindReceiveResults, tickErr)
		}
	}
	if !tx.Done() {
		return tx.MajorCode(), tx.MinorCode(), twopence.NewError(twopence.KindReceiveResults, errors.New("link closed before command completed"))
	}
	return tx.MajorCode(), tx.MinorCode(), nil
}
