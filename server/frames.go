package server

import (
	"github.com/frankenmichl/twopence"
	"github.com/frankenmichl/twopence/engine"
	"github.com/frankenmichl/twopence/protocol"
)

func sendSize(tx *engine.Transaction, size int) {
	tx.SendFrame(twopence.PacketSize, protocol.FormatUint(size))
}

func enqueueEOF(tx *engine.Transaction) {
	tx.SendFrame(twopence.PacketEOF, nil)
}
