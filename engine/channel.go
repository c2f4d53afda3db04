// Package engine implements the channel, transaction, and event-loop layer:
// the multi-channel state machine that sits above the byte-pipe transport
// and below the client/server command drivers.
package engine

import (
	"github.com/frankenmichl/twopence"
	"github.com/frankenmichl/twopence/protocol"
	"github.com/frankenmichl/twopence/transport"
)

// direction distinguishes a sink (write-only, consumes inbound frames) from
// a source (read-only, produces outbound frames).
type direction uint8

const (
	dirSink direction = iota
	dirSource
)

// Channel is a unidirectional byte stream inside a transaction, tagged by a
// single byte id equal to its wire packet type.
//
// The two-phase "drain local fd into a buffer, then stamp a header and
// enqueue to the peer" pump below is grounded on the read-then-write state
// machine of the teacher's Forwarder.ForwardOnce in the deleted
// forward.go: that code read one framed payload from a source and wrote it
// as one framed message to a destination, tracking read/write progress
// across non-blocking retries. Channel.DoIO generalizes the same two-phase
// shape to "drain this channel's socket, then hand whatever arrived to the
// owning transaction to frame and enqueue", because a Channel's peer is
// always the transaction's shared link rather than a second stream.
type Channel struct {
	ID   twopence.PacketType
	dir  direction
	sock *transport.Socket

	plugged bool

	readEOFFired  bool
	writeEOFFired bool
	onReadEOF     func()
	onWriteEOF    func()

	closed   bool
	keepOpen bool
}

// KeepFdOpen marks this channel's underlying fd as one the caller still
// owns (e.g. the process's own stdin), so Close leaves it open instead of
// calling close(2) on it. Close does not change the fd's blocking mode.
func (c *Channel) KeepFdOpen() { c.keepOpen = true }

// NewSink wraps fd as a write-only channel; read EOF is forced immediately
// since a sink never reads.
func NewSink(id twopence.PacketType, fd int) *Channel {
	c := &Channel{ID: id, dir: dirSink, sock: transport.NewRawSocket(fd)}
	c.readEOFFired = true
	return c
}

// NewSource wraps fd as a read-only channel.
func NewSource(id twopence.PacketType, fd int) *Channel {
	return &Channel{ID: id, dir: dirSource, sock: transport.NewRawSocket(fd)}
}

// IsSink reports whether this channel only ever writes to its local fd.
func (c *Channel) IsSink() bool { return c.dir == dirSink }

// IsSource reports whether this channel only ever reads from its local fd.
func (c *Channel) IsSource() bool { return c.dir == dirSource }

// SetPlugged holds a source channel back from reading until unplugged,
// used to defer file injection until the remote side acknowledges
// readiness.
func (c *Channel) SetPlugged(plugged bool) { c.plugged = plugged }

// Plugged reports the current plugged state.
func (c *Channel) Plugged() bool { return c.plugged }

// OnReadEOF installs the one-shot read-EOF callback.
func (c *Channel) OnReadEOF(fn func()) { c.onReadEOF = fn }

// OnWriteEOF installs the one-shot write-EOF callback.
func (c *Channel) OnWriteEOF(fn func()) { c.onWriteEOF = fn }

// IsDead reports whether the underlying socket has failed.
func (c *Channel) IsDead() bool { return c.sock.IsDead() }

// Write enqueues payload on a sink's local fd: the inbound-packet dispatch
// rule that writes a matching sink's payload straight into its socket.
func (c *Channel) Write(payload []byte) {
	buf := protocol.NewBuffer(len(payload))
	copy(buf.Tail(), payload)
	buf.Advance(len(payload))
	c.sock.QueueXmit(buf)
}

// ShutdownWrite drains any bytes still queued from a prior Write, marks the
// sink's write side finished (the fd itself is not shut down or closed here;
// the write-EOF callback or Close releases it), and fires its write-EOF
// callback once: the inbound-EOF
// dispatch rule. Flushing first matters because a data frame and the
// EOF frame that follows it are routinely decoded out of the same recv
// buffer within one dispatchIncoming pass, before the event loop's own
// per-tick DoIO ever runs; without this, the last write would still be
// sitting in the send queue when a write-EOF callback fsyncs and closes.
func (c *Channel) ShutdownWrite() {
	c.Flush()
	c.sock.ShutdownWrite()
	c.fireWriteEOF()
}

func (c *Channel) fireWriteEOF() {
	if c.writeEOFFired {
		return
	}
	c.writeEOFFired = true
	if c.onWriteEOF != nil {
		c.onWriteEOF()
	}
}

func (c *Channel) fireReadEOF() {
	if c.readEOFFired {
		return
	}
	c.readEOFFired = true
	if c.onReadEOF != nil {
		c.onReadEOF()
	}
}

// postRecvBuf lazily posts a recv buffer of mtu bytes in total, header room
// included, so a source can be polled for readability: the recv buffer's
// head room matches the protocol header size so a stamped header can be
// prepended in place once the payload has been read.
func (c *Channel) postRecvBuf(hdrSize, mtu int) {
	if c.sock.GetRecvBuf() != nil {
		return
	}
	buf := protocol.NewBuffer(mtu)
	buf.ReserveHead(hdrSize)
	c.sock.PostRecvBuf(buf)
}

// Poll registers this channel's current interest into p: sinks always want
// to drain their send queue, sources want read readiness unless plugged or
// already read-EOF.
func (c *Channel) Poll(p *transport.PollSet, hdrSize, mtu int) {
	if c.sock.IsDead() {
		return
	}
	if c.dir == dirSource && !c.plugged && !c.sock.IsReadEOF() {
		c.postRecvBuf(hdrSize, mtu)
	}
	p.Add(c.sock)
}

// DoIO drives the socket's non-blocking I/O, then reports whatever frame
// payload a source produced this tick so the owning Transaction can stamp a
// header and enqueue it to the peer link.
// readEOF reports whether this call fired the read-EOF callback. When a call
// returns payload, the callback is held until the next call, so the last
// data frame is enqueued before anything the callback sends.
func (c *Channel) DoIO() (payload []byte, readEOF bool) {
	if c.sock.IsDead() {
		return nil, false
	}
	_ = c.sock.DoIO()
	if c.dir != dirSource {
		return nil, false
	}
	wasEOF := c.sock.IsReadEOF()
	bp := c.sock.GetRecvBuf()
	if bp != nil && bp.Count() > 0 {
		payload = bp.Bytes()
		c.sock.TakeRecvBuf()
	}
	if wasEOF && !c.readEOFFired && payload == nil {
		c.fireReadEOF()
		readEOF = true
	}
	return payload, readEOF
}

// Flush loops SendQueued until the socket's outbound queue drains, used at
// transaction tear-down.
func (c *Channel) Flush() {
	for {
		n, err := c.sock.SendQueued()
		if err != nil || c.sock.XmitQueueBytes() == 0 || n == 0 {
			return
		}
	}
}

// Close releases the channel's local fd. Idempotent: a channel whose
// write-EOF callback already closed the underlying file (the inject and
// command stdin handlers do, to fsync/signal EOF at the exact moment the
// callback fires rather than waiting for the next purge sweep) tolerates a
// later purge-time Close without a double-close.
func (c *Channel) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.dir == dirSink {
		c.Flush()
	}
	if c.keepOpen {
		return nil
	}
	return c.sock.Close()
}
