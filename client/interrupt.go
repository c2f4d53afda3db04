package client

import (
	"github.com/frankenmichl/twopence"
	"github.com/frankenmichl/twopence/protocol"
)

// Interrupt asks the server to signal the currently running command.
// Grounded on the original C _twopence_interrupt_virtio_serial: it opens a
// fresh link, writes a single 'I' frame, and closes the link without
// awaiting any reply.
func (c *Client) Interrupt() error {
	sock, err := c.dial()
	if err != nil {
		return err
	}
	defer sock.Close()

	ps := protocol.State{Version: c.Config.Version, Client: true}
	buf, err := protocol.Encode(ps, twopence.PacketInterrupt, protocol.FormatInterrupt(), c.Config.MTU)
	if err != nil {
		return twopence.NewError(twopence.KindInterruptCommand, err)
	}
	sock.QueueXmit(buf)
	for sock.XmitQueueBytes() > 0 {
		n, err := sock.SendQueued()
		if err != nil {
			return twopence.NewError(twopence.KindInterruptCommand, err)
		}
		if n == 0 {
			break
		}
	}
	return nil
}
