package server

import (
	"context"
	"log"

	"github.com/rs/xid"

	"github.com/frankenmichl/twopence"
	"github.com/frankenmichl/twopence/engine"
	"github.com/frankenmichl/twopence/protocol"
	"github.com/frankenmichl/twopence/transport"
)

// Server runs the event loop on the accepting side of a link: the daemon
// binary that accepts a listening endpoint path and runs the event loop.
type Server struct {
	Executor   Executor
	Filesystem Filesystem
	Config     twopence.Config

	// Metrics, if set, tracks every served connection's open-transaction
	// and queue-depth gauges for the lifetime of Serve.
	Metrics *engine.Collector

	lastCommandTxID uint16
}

// NewServer returns a Server with the real OS-backed Executor and
// Filesystem plug-ins and default protocol configuration.
func NewServer() *Server {
	return &Server{Executor: OSExecutor{}, Filesystem: OSFilesystem{}, Config: twopence.DefaultConfig}
}

// Serve drives one connection's event loop to completion: it runs until
// the peer sends quit, the link dies, or ctx is cancelled. Each connection
// is tagged with a fresh xid for the life of the log lines and metrics
// labels it produces, the same per-connection tagging runZeroInc-sockstats'
// exporter_example2 uses for its accepted TCP connections.
func (s *Server) Serve(ctx context.Context, sock *transport.Socket) error {
	connID := xid.New().String()
	ps := protocol.State{Version: s.Config.Version, Client: false}
	conn := engine.NewConnection(ctx, sock, ps)
	conn.SetLinkTimeout(s.Config.LinkTimeout)
	conn.OnUnknownTransaction = func(id uint16, pt twopence.PacketType, payload []byte) {
		s.startTransaction(conn, sock, ps, id, pt, payload)
	}

	if s.Metrics != nil {
		s.Metrics.Track(conn, connID)
		defer s.Metrics.Untrack(conn)
	}
	log.Printf("twopence: server: connection %s started", connID)
	defer log.Printf("twopence: server: connection %s ended", connID)

	for !conn.Quitting() {
		if sock.IsDead() || sock.IsReadEOF() {
			return sock.DeadCause()
		}
		if err := conn.Tick(ctx); err != nil {
			return err
		}
	}
	// Drain: keep ticking until every transaction the client already
	// opened (notably the quit transaction's own status frames) has
	// flushed, since quit causes the server event loop to stop accepting
	// and drain.
	for i := 0; i < 100; i++ {
		if err := conn.Tick(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) startTransaction(conn *engine.Connection, sock *transport.Socket, ps protocol.State, id uint16, pt twopence.PacketType, payload []byte) {
	kind, ok := kindForPacket(pt)
	if !ok {
		log.Printf("twopence: server: unexpected first packet %q for new transaction %d", pt, id)
		return
	}
	tx := engine.NewTransaction(id, kind, sock, ps)
	conn.Register(tx)

	var err error
	switch pt {
	case twopence.PacketCommand:
		err = StartCommand(tx, s.Executor, payload)
		s.lastCommandTxID = id
	case twopence.PacketInject:
		err = StartInject(tx, s.Filesystem, payload)
	case twopence.PacketExtract:
		err = StartExtract(tx, s.Filesystem, payload)
	case twopence.PacketInterrupt:
		target, _ := conn.Transaction(s.lastCommandTxID)
		err = StartInterrupt(tx, target)
	case twopence.PacketQuit:
		err = StartQuit(tx)
		conn.RequestQuit()
	}
	if err != nil {
		log.Printf("twopence: server: transaction %d failed: %v", id, err)
	}
}

func kindForPacket(pt twopence.PacketType) (twopence.TransactionKind, bool) {
	switch pt {
	case twopence.PacketCommand:
		return twopence.KindCommand, true
	case twopence.PacketInject:
		return twopence.KindInject, true
	case twopence.PacketExtract:
		return twopence.KindExtract, true
	case twopence.PacketInterrupt:
		return twopence.KindInterrupt, true
	case twopence.PacketQuit:
		return twopence.KindQuit, true
	default:
		return 0, false
	}
}
