package engine

import (
	"context"
	"time"

	"github.com/frankenmichl/twopence"
	"github.com/frankenmichl/twopence/protocol"
	"github.com/frankenmichl/twopence/transport"
)

// Connection is the single-threaded cooperative event loop: one peer link,
// a registry of active transactions keyed by id, and the
// iterate-poll-dispatch-purge cycle that drives all of them.
type Connection struct {
	link  *transport.Socket
	ps    protocol.State
	trace *twopence.Trace

	linkTimeout time.Duration
	lastActive  time.Time

	txs    map[uint16]*Transaction
	nextID uint16

	quitting bool

	// OnUnknownTransaction is invoked when a frame arrives for a
	// transaction id this Connection has not registered yet. The server
	// side installs this to spin up a fresh Transaction from the header
	// packet's packet type: command, inject, extract, quit, and interrupt
	// are the kinds a first frame can start.
	OnUnknownTransaction func(id uint16, pt twopence.PacketType, payload []byte)
}

// NewConnection wraps peer for protocol state ps (version/side already
// negotiated by the caller) and returns a ready Connection: the event-loop
// owner that every registered Transaction shares.
func NewConnection(ctx context.Context, peer *transport.Socket, ps protocol.State) *Connection {
	trace := twopence.ContextTrace(ctx)
	peer.PostRecvBuf(protocol.NewBuffer(twopence.MaxFrameLength))
	return &Connection{
		link:        peer,
		ps:          ps,
		trace:       trace,
		linkTimeout: twopence.DefaultLinkTimeout,
		lastActive:  timeNow(),
		txs:         make(map[uint16]*Transaction),
	}
}

// timeNow is a seam so tests can stub the clock; production always uses
// wall time.
var timeNow = time.Now

// SetLinkTimeout overrides the default 60s link idle timeout: no frame read
// or written within this long causes every live transaction to fail with
// a protocol-level timeout.
func (c *Connection) SetLinkTimeout(d time.Duration) { c.linkTimeout = d }

// NewTransactionID allocates the next transaction id for a client-initiated
// transaction (legacy single-transaction links always use id 0).
func (c *Connection) NewTransactionID() uint16 {
	if c.ps.Version == twopence.VersionLegacy {
		return 0
	}
	c.nextID++
	return c.nextID
}

// Register adds tx to the connection's live-transaction set.
func (c *Connection) Register(tx *Transaction) {
	tx.SetTrace(c.trace)
	c.txs[tx.ID] = tx
	if c.trace.TransactionStarted != nil {
		c.trace.TransactionStarted(tx.ID, tx.Kind)
	}
}

// Transaction looks up a live transaction by id.
func (c *Connection) Transaction(id uint16) (*Transaction, bool) {
	tx, ok := c.txs[id]
	return tx, ok
}

// RequestQuit marks the connection to stop accepting new transactions and
// drain: a quit transaction causes the server event loop to stop accepting
// and drain whatever is still in flight.
func (c *Connection) RequestQuit() { c.quitting = true }

// Quitting reports whether a quit has been requested.
func (c *Connection) Quitting() bool { return c.quitting }

func (c *Connection) transactionCountsByKind() map[twopence.TransactionKind]int {
	counts := make(map[twopence.TransactionKind]int)
	for _, tx := range c.txs {
		counts[tx.Kind]++
	}
	return counts
}

// Tick runs exactly one iteration of the event loop: collect poll interest,
// wait up to timeout, drive I/O on whatever is ready, dispatch complete
// frames, run send hooks, and purge. Callers drive
// their own outer loop (and their own ctx.Done() check) around Tick so the
// loop remains entirely non-blocking-I/O-suspended, matching "suspension
// points are exactly the poll call and the kernel read/write syscalls
// behind it".
func (c *Connection) Tick(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var pset transport.PollSet
	pset.Add(c.link)
	hdrSize := c.ps.HeaderSize()
	for _, tx := range c.txs {
		tx.FillPoll(&pset, hdrSize, twopence.MaxFrameLength)
	}

	timeoutMs := c.pendingTimeoutMs()
	n, err := pset.Wait(timeoutMs)
	if err != nil {
		return err
	}
	if n > 0 {
		c.lastActive = timeNow()
	}

	c.dispatchIncoming()

	for _, tx := range c.txs {
		if tx.Done() {
			continue
		}
		tx.Tick()
		if err := tx.DoIO(); err != nil && c.trace.LinkError != nil {
			c.trace.LinkError(err)
		}
	}

	c.checkLinkTimeout()
	c.purgeDone()
	return nil
}

// pendingTimeoutMs returns the smallest useful poll deadline: the time left
// until the link timeout fires, capped at one second so Tick cannot block
// indefinitely when no transaction is pending.
func (c *Connection) pendingTimeoutMs() int {
	if c.linkTimeout <= 0 {
		return 1000
	}
	remaining := c.linkTimeout - timeNow().Sub(c.lastActive)
	if remaining <= 0 {
		return 0
	}
	ms := int(remaining / time.Millisecond)
	if ms > 1000 {
		ms = 1000
	}
	if ms < 1 {
		ms = 1
	}
	return ms
}

func (c *Connection) checkLinkTimeout() {
	if c.linkTimeout <= 0 {
		return
	}
	if timeNow().Sub(c.lastActive) < c.linkTimeout {
		return
	}
	for _, tx := range c.txs {
		if !tx.Done() {
			tx.SendTimeout()
		}
	}
}

// dispatchIncoming decodes as many complete frames as are sitting in the
// peer link's recv buffer and routes each to its transaction by id.
func (c *Connection) dispatchIncoming() {
	hdrSize := c.ps.HeaderSize()
	for {
		bp := c.link.GetRecvBuf()
		if bp == nil {
			buf := protocol.NewBuffer(twopence.MaxFrameLength)
			c.link.PostRecvBuf(buf)
			return
		}
		hdr, payload, err := protocol.Decode(c.ps.Version, bp.Bytes(), bp.Cap())
		if err != nil || payload == nil {
			return
		}
		id := hdr.TransactionID
		if c.ps.Version == twopence.VersionLegacy {
			id = 0
		}
		if c.trace.FrameReceived != nil {
			c.trace.FrameReceived(id, hdr.Type, len(payload))
		}
		if tx, ok := c.txs[id]; ok {
			if err := tx.RecvPacket(hdr.Type, payload); err != nil && c.trace.LinkError != nil {
				c.trace.LinkError(err)
			}
		} else if c.OnUnknownTransaction != nil {
			c.OnUnknownTransaction(id, hdr.Type, payload)
		}
		c.link.TakeRecvBuf()
		remaining := bp.Bytes()[hdr.Length:]
		if len(remaining) > 0 {
			nb := protocol.NewBuffer(twopence.MaxFrameLength)
			copy(nb.Tail(), remaining)
			nb.Advance(len(remaining))
			c.link.PostRecvBuf(nb)
		} else {
			nb := protocol.NewBuffer(twopence.MaxFrameLength)
			c.link.PostRecvBuf(nb)
		}
	}
}

func (c *Connection) purgeDone() {
	for id, tx := range c.txs {
		if tx.Done() {
			for _, ch := range tx.sinks {
				_ = ch.Close()
			}
			for _, ch := range tx.sources {
				_ = ch.Close()
			}
			if c.trace.TransactionDone != nil {
				c.trace.TransactionDone(id, tx.Kind, twopence.Status{Major: tx.MajorCode(), Minor: tx.MinorCode()})
			}
			delete(c.txs, id)
		}
	}
}
