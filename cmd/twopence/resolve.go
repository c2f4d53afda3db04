package main

import (
	"context"
	"strings"

	"github.com/frankenmichl/twopence/transport"
)

// resolvePlugin maps the -target flag's scheme to a transport plug-in, the
// way twopence_pipe_target_new dispatches on target type in the original C.
func resolvePlugin(target string) (transport.Plugin, string) {
	switch {
	case strings.HasPrefix(target, "unix://"):
		return transport.NewUnixPlugin(), strings.TrimPrefix(target, "unix://")
	case strings.HasPrefix(target, "tcp://"):
		return transport.NewTCPPlugin(), strings.TrimPrefix(target, "tcp://")
	case strings.HasPrefix(target, "serial://"):
		return transport.NewSerialPlugin(), strings.TrimPrefix(target, "serial://")
	default:
		return transport.NewVirtioPlugin(), target
	}
}

func noCancel() context.Context { return context.Background() }
