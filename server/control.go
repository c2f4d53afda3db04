package server

import (
	"github.com/frankenmichl/twopence"
	"github.com/frankenmichl/twopence/engine"
)

// StartInterrupt handles a standalone interrupt transaction: an interrupt
// packet ('I') for the same transaction id causes the target transaction's
// kind-specific handler to signal its process. On a multiplexed link an 'I'
// packet carries the command's own transaction id and is routed straight
// to that transaction's recv hook (see command.go), never spawning a
// transaction of its own. StartInterrupt exists for the legacy
// single-transaction wire, where 'I' is its own frame on the shared id and
// must be handed to whatever command transaction is currently open.
func StartInterrupt(tx *engine.Transaction, target *engine.Transaction) error {
	if target == nil || target.Done() {
		tx.Fail2(0, 0)
		return nil
	}
	return target.RecvPacket(twopence.PacketInterrupt, nil)
}

// StartQuit handles the quit transaction: quit causes the server event
// loop to stop accepting and drain. The caller (Server) calls
// Connection.RequestQuit after StartQuit returns.
func StartQuit(tx *engine.Transaction) error {
	tx.SendMajor(0)
	tx.SendMinor(0)
	return nil
}
