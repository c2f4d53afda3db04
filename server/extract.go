package server

import (
	"github.com/frankenmichl/twopence"
	"github.com/frankenmichl/twopence/engine"
	"github.com/frankenmichl/twopence/protocol"
)

// StartExtract parses `e...<user> <path>\0`, opens the source file, and
// wires it as a source for 'd' packets, sending the file's size first.
func StartExtract(tx *engine.Transaction, fs Filesystem, payload []byte) error {
	user, path, err := protocol.ParseExtract(payload)
	if err != nil {
		return tx.Fail(int(badRequestErrno))
	}
	if !twopence.ValidUsername(user) {
		return tx.Fail(int(badRequestErrno))
	}

	f, err := fs.Open(path)
	if err != nil {
		return tx.Fail(errnoOf(err))
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return tx.Fail(errnoOf(err))
	}

	sendSize(tx, int(info.Size()))

	src := engine.NewSource(twopence.PacketFileData, int(f.Fd()))
	src.OnReadEOF(func() {
		enqueueEOF(tx)
		tx.SendMajor(0)
		tx.SendMinor(0)
		_ = src.Close()
	})
	tx.AttachLocalSource(src)

	tx.SetHooks(nil, nil)
	return nil
}
