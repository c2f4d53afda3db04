package client

import (
	"context"
	"os"

	"github.com/pkg/errors"

	"github.com/frankenmichl/twopence"
	"github.com/frankenmichl/twopence/engine"
	"github.com/frankenmichl/twopence/protocol"
)

// Inject streams localPath to remotePath on the server under user. It
// returns the server's remote_rc: the early major code if nonzero, or the
// final minor otherwise.
func (c *Client) Inject(ctx context.Context, user, localPath, remotePath string) (remoteRC int, err error) {
	f, err := os.Open(localPath)
	if err != nil {
		return 0, twopence.NewError(twopence.KindLocalFile, err)
	}
	// f's fd is handed to the source channel below, which owns closing it
	// once the transaction is purged; no separate Close here.
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return 0, twopence.NewError(twopence.KindLocalFile, err)
	}

	sock, err := c.dial()
	if err != nil {
		_ = f.Close()
		return 0, err
	}
	defer sock.Close()

	ps := protocol.State{Version: c.Config.Version, Client: true}
	conn := engine.NewConnection(ctx, sock, ps)
	conn.SetLinkTimeout(c.Config.LinkTimeout)

	id := conn.NewTransactionID()
	ps.TransactionID = id
	tx := engine.NewTransaction(id, twopence.KindInject, sock, ps)
	conn.Register(tx)

	// The source stays plugged until major=0 arrives: the client must not
	// transmit any 'd' frame before receiving major = 0.
	src := engine.NewSource(twopence.PacketFileData, int(f.Fd()))
	src.SetPlugged(true)
	src.OnReadEOF(func() { tx.SendFrame(twopence.PacketEOF, nil) })
	tx.AttachLocalSource(src)

	tx.SetHooks(func(tx *engine.Transaction, pt twopence.PacketType, payload []byte) error {
		switch pt {
		case twopence.PacketMajor:
			code, perr := protocol.ParseUint(payload)
			if perr != nil {
				return tx.Fail(-1)
			}
			tx.RecordMajor(code)
			if code != 0 {
				tx.MarkDone()
				return nil
			}
			src.SetPlugged(false)
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
			return twopence.NewError(twopence.KindProtocol, errors.Errorf("inject: unexpected packet %q", pt))
		}
	}, nil)

	payload := protocol.FormatInject(user, info.Size(), remotePath)
	buf, encErr := protocol.Encode(ps, twopence.PacketInject, payload, c.Config.MTU)
	if encErr != nil {
		return 0, twopence.NewError(twopence.KindSendCommand, encErr)
	}
	sock.QueueXmit(buf)

	for !tx.Done() && !sock.IsDead() {
		if tickErr := conn.Tick(ctx); tickErr != nil {
			return tx.MajorCode(), twopence.NewError(twopence.KindSendFile, tickErr)
		}
	}
	if !tx.Done() {
		return tx.MajorCode(), twopence.NewError(twopence.KindSendFile, errors.New("link closed before inject completed"))
	}
	if tx.MajorCode() != 0 {
		return tx.MajorCode(), twopence.NewRemoteError(tx.MajorCode())
	}
	return tx.MinorCode(), nil
}
