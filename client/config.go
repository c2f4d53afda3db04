package client

import (
	"github.com/frankenmichl/twopence"
	"github.com/frankenmichl/twopence/transport"
)

// Client is the controller-side driver: every operation dials a fresh link
// through Plugin/Target, drives one transaction to completion, and tears
// the link down again.
type Client struct {
	Plugin transport.Plugin
	Target string
	Config twopence.Config
}

// New returns a Client with the given transport plug-in, target (device
// path, Unix socket path, or host:port, depending on the plug-in), and
// default protocol configuration.
func New(plugin transport.Plugin, target string) *Client {
	return &Client{Plugin: plugin, Target: target, Config: twopence.DefaultConfig}
}

func (c *Client) dial() (*transport.Socket, error) {
	sock, err := transport.Open(c.Plugin, c.Target)
	if err != nil {
		return nil, twopence.NewError(twopence.KindOpenSession, err)
	}
	return sock, nil
}
