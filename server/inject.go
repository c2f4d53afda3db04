package server

import (
	"syscall"

	"github.com/frankenmichl/twopence"
	"github.com/frankenmichl/twopence/engine"
	"github.com/frankenmichl/twopence/protocol"
)

// StartInject parses `i...<user> <size> <path>\0`, opens the destination
// file, and wires it as a sink for 'd' packets.
func StartInject(tx *engine.Transaction, fs Filesystem, payload []byte) error {
	user, size, path, err := protocol.ParseInject(payload)
	if err != nil {
		return tx.Fail(int(badRequestErrno))
	}
	if !twopence.ValidUsername(user) {
		return tx.Fail(int(badRequestErrno))
	}

	f, err := fs.Create(path)
	if err != nil {
		tx.SendMajor(errnoOf(err))
		tx.SendMinor(0)
		return nil
	}

	tx.SendMajor(0)

	fd := int(f.Fd())
	sink := engine.NewSink(twopence.PacketFileData, fd)
	sink.OnWriteEOF(func() {
		_ = syscall.Fsync(fd)
		_ = sink.Close()
		tx.SendMinor(0)
	})
	tx.AttachLocalSink(sink)
	_ = size // the advertised size is not checked against the bytes
	// received; the transaction completes when the EOF packet arrives.

	tx.SetHooks(nil, nil)
	return nil
}
