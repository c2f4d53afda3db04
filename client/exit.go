package client

import (
	"github.com/frankenmichl/twopence"
	"github.com/frankenmichl/twopence/protocol"
)

// Exit asks the server process to quit. Grounded on the original C
// _twopence_exit_virtio_serial: a single 'q' frame, fire-and-forget, same
// shape as Interrupt.
func (c *Client) Exit() error {
	sock, err := c.dial()
	if err != nil {
		return err
	}
	defer sock.Close()

	ps := protocol.State{Version: c.Config.Version, Client: true}
	buf, err := protocol.Encode(ps, twopence.PacketQuit, protocol.FormatQuit(), c.Config.MTU)
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
