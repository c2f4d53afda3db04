package server

import (
	"context"
	"log"
	"net"

	"github.com/frankenmichl/twopence/transport"
)

// ServeDevice runs the event loop directly over an already-open virtio or
// serial character device fd: this transport has no accept(2) step, the
// device is the link for the lifetime of the guest.
func (s *Server) ServeDevice(ctx context.Context, plugin transport.Plugin, devicePath string) error {
	sock, err := transport.Open(plugin, devicePath)
	if err != nil {
		return err
	}
	defer sock.Close()
	return s.Serve(ctx, sock)
}

// ListenAndServe accepts Unix-domain or TCP connections on network/address
// (as accepted by net.Listen) and serves each sequentially: the protocol is
// inherently single-link, but the Unix/TCP plug-ins are useful for tests
// and for deployments that route the link over a socket instead of a
// character device.
func (s *Server) ListenAndServe(ctx context.Context, network, address string) error {
	ln, err := net.Listen(network, address)
	if err != nil {
		return err
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		sock, err := socketForConn(network, conn)
		if err != nil {
			_ = conn.Close()
			continue
		}
		if err := s.Serve(ctx, sock); err != nil {
			log.Printf("twopence: server: connection ended: %v", err)
		}
	}
}

func socketForConn(network string, conn net.Conn) (*transport.Socket, error) {
	if network == "unix" {
		return transport.NewUnixSocket(conn)
	}
	return transport.NewTCPSocket(conn)
}
