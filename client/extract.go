package client

import (
	"context"
	"os"

	"github.com/pkg/errors"

	"github.com/frankenmichl/twopence"
	"github.com/frankenmichl/twopence/engine"
	"github.com/frankenmichl/twopence/protocol"
)

// Extract retrieves remotePath from the server into localPath under user.
func (c *Client) Extract(ctx context.Context, user, remotePath, localPath string) (remoteRC int, err error) {
	f, err := os.OpenFile(localPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
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
	tx := engine.NewTransaction(id, twopence.KindExtract, sock, ps)
	conn.Register(tx)

	var sink *engine.Channel
	tx.SetHooks(func(tx *engine.Transaction, pt twopence.PacketType, payload []byte) error {
		switch pt {
		case twopence.PacketSize:
			_, perr := protocol.ParseUint(payload)
			if perr != nil {
				return tx.Fail(-1)
			}
			sink = engine.NewSink(twopence.PacketFileData, int(f.Fd()))
			sink.OnWriteEOF(func() { _ = sink.Close() })
			tx.AttachLocalSink(sink)
			return nil
		case twopence.PacketMajor:
			code, perr := protocol.ParseUint(payload)
			if perr != nil {
				return tx.Fail(-1)
			}
			tx.RecordMajor(code)
			if code != 0 {
				tx.MarkDone()
			}
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
			return twopence.NewError(twopence.KindProtocol, errors.Errorf("extract: unexpected packet %q", pt))
		}
	}, nil)

	payload := protocol.FormatExtract(user, remotePath)
	buf, encErr := protocol.Encode(ps, twopence.PacketExtract, payload, c.Config.MTU)
	if encErr != nil {
		return 0, twopence.NewError(twopence.KindSendCommand, encErr)
	}
	sock.QueueXmit(buf)

	for !tx.Done() && !sock.IsDead() {
		if tickErr := conn.Tick(ctx); tickErr != nil {
			return tx.MajorCode(), twopence.NewError(twopence.KindReceiveFile, tickErr)
		}
	}
	if !tx.Done() {
		// Defensive against a peer that advertises a size and then dies
		// mid-stream: whatever bytes arrived are already on disk; no
		// resynchronization is attempted.
		return tx.MajorCode(), twopence.NewError(twopence.KindReceiveFile, errors.New("link closed before extract completed"))
	}
	if tx.MajorCode() != 0 {
		return tx.MajorCode(), twopence.NewRemoteError(tx.MajorCode())
	}
	return tx.MinorCode(), nil
}
