package transport

import (
	"sync"

	"github.com/frankenmichl/twopence/protocol"
)

// highWaterMark bounds how much unsent data a Socket's outbound queue may
// hold before XmitQueueAllowed starts returning false: the flow-control
// gate that reports true only while the send queue sits below a
// high-water mark. 256KiB comfortably absorbs several in-flight command
// output frames without letting a stalled peer grow the queue unbounded.
const highWaterMark = 256 * 1024

// Socket is the non-blocking, full-duplex byte-pipe endpoint: a
// plugin-backed file descriptor with a FIFO outbound queue, at most one
// posted inbound buffer, and read/write EOF and dead flags.
//
// Only one goroutine (the owning engine.Connection's event loop) may ever
// touch a Socket; there is no internal locking, since there is no
// cross-thread sharing to guard against.
type Socket struct {
	plugin Plugin
	fd     int

	sendQueue   []*protocol.Buffer
	sendOffset  int // bytes of sendQueue[0] already written
	queuedBytes int

	recvBuf *protocol.Buffer

	readEOF   bool
	writeEOF  bool
	dead      bool
	deadCause error

	mu sync.Mutex // guards queuedBytes for engine.Collector reads only
}

// Open opens target through plugin and returns a ready Socket.
func Open(plugin Plugin, target string) (*Socket, error) {
	fd, err := plugin.Open(target)
	if err != nil {
		return nil, err
	}
	return &Socket{plugin: plugin, fd: fd}, nil
}

// NewSocket wraps an already-open file descriptor (used by the server side,
// which inherits its link fd from whatever accepted the virtio/serial/unix
// connection).
func NewSocket(plugin Plugin, fd int) *Socket {
	return &Socket{plugin: plugin, fd: fd}
}

// Fd returns the raw file descriptor, for building a poll(2) set.
func (l *Socket) Fd() int { return l.fd }

// Kind reports which plug-in backs this link.
func (l *Socket) Kind() Kind { return l.plugin.Kind() }

// IsReadEOF reports whether a zero-length read has been observed.
func (l *Socket) IsReadEOF() bool { return l.readEOF }

// IsWriteEOF reports whether the write side has been half-closed.
func (l *Socket) IsWriteEOF() bool { return l.writeEOF }

// IsDead reports whether an unrecoverable I/O error has been observed.
func (l *Socket) IsDead() bool { return l.dead }

// DeadCause returns the error that marked the link dead, if any.
func (l *Socket) DeadCause() error { return l.deadCause }

func (l *Socket) markDead(err error) {
	l.dead = true
	l.deadCause = err
}

// QueueXmit appends buf to the outbound queue; ownership transfers to the
// Socket.
func (l *Socket) QueueXmit(buf *protocol.Buffer) {
	l.mu.Lock()
	l.sendQueue = append(l.sendQueue, buf)
	l.queuedBytes += buf.Count()
	l.mu.Unlock()
}

// XmitShared clones buf before appending, for payloads the caller still
// owns.
func (l *Socket) XmitShared(buf *protocol.Buffer) {
	l.QueueXmit(buf.Clone())
}

// XmitQueueBytes returns the number of unsent bytes currently queued.
func (l *Socket) XmitQueueBytes() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queuedBytes
}

// XmitQueueAllowed is the flow-control gate: true while the outbound queue
// sits below highWaterMark.
func (l *Socket) XmitQueueAllowed() bool {
	return l.XmitQueueBytes() < highWaterMark
}

// PostRecvBuf posts buf as the single outstanding receive buffer. Callers
// must not post a second buffer before the first is taken via TakeRecvBuf.
func (l *Socket) PostRecvBuf(buf *protocol.Buffer) {
	l.recvBuf = buf
}

// GetRecvBuf returns the currently posted recv buffer, or nil.
func (l *Socket) GetRecvBuf() *protocol.Buffer { return l.recvBuf }

// TakeRecvBuf returns and clears the posted recv buffer, whatever it holds;
// the caller decides what "complete" means for its own header shape and
// re-posts a buffer if more is needed.
func (l *Socket) TakeRecvBuf() *protocol.Buffer {
	bp := l.recvBuf
	l.recvBuf = nil
	return bp
}

// ShutdownWrite marks the write side finished by setting writeEOF. It does
// not call shutdown(2) or close the fd.
func (l *Socket) ShutdownWrite() {
	l.writeEOF = true
}

// DoIO performs one non-blocking read into the posted recv buffer (if any)
// and one non-blocking write from the head of the send queue. Partial
// progress is normal; a zero-byte read sets readEOF; any hard error marks
// the link dead.
func (l *Socket) DoIO() error {
	if l.dead {
		return ErrDead
	}
	if err := l.doRead(); err != nil {
		return err
	}
	if err := l.doWrite(); err != nil {
		return err
	}
	return nil
}

func (l *Socket) doRead() error {
	if l.recvBuf == nil || l.readEOF {
		return nil
	}
	bp := l.recvBuf
	if bp.Avail() == 0 {
		return nil
	}
	n, err := l.plugin.Recv(l.fd, bp.Tail())
	if n > 0 {
		bp.Advance(n)
	}
	if err != nil {
		if err == ErrWouldBlock {
			return nil
		}
		l.markDead(err)
		return err
	}
	if n == 0 {
		l.readEOF = true
	}
	return nil
}

func (l *Socket) doWrite() error {
	n, err := l.SendQueued()
	if err != nil {
		l.markDead(err)
		return err
	}
	_ = n
	return nil
}

// SendQueued drains as much of the send queue as the plugin currently
// accepts, returning the number of bytes written. A negative-on-error
// contract from the original C API is rendered here as (n, error).
func (l *Socket) SendQueued() (int, error) {
	total := 0
	for len(l.sendQueue) > 0 {
		head := l.sendQueue[0]
		whole := head.Whole()
		n, err := l.plugin.Send(l.fd, whole[l.sendOffset:])
		if n > 0 {
			l.sendOffset += n
			total += n
			l.mu.Lock()
			l.queuedBytes -= n
			l.mu.Unlock()
		}
		if err != nil {
			if err == ErrWouldBlock {
				return total, nil
			}
			return total, err
		}
		if l.sendOffset >= len(whole) {
			l.sendQueue = l.sendQueue[1:]
			l.sendOffset = 0
			continue
		}
		// Partial write with no error: stop until the descriptor is
		// writable again.
		break
	}
	return total, nil
}

// Close releases the underlying plugin resource.
func (l *Socket) Close() error {
	return l.plugin.Close(l.fd)
}

// WantRecv reports whether this socket currently wants POLLIN: a recv
// buffer is posted, there is room left in it, and read EOF has not been
// observed yet.
func (l *Socket) WantRecv() bool {
	return !l.dead && !l.readEOF && l.recvBuf != nil && l.recvBuf.Avail() > 0
}

// WantSend reports whether this socket currently wants POLLOUT: the
// outbound queue is non-empty.
func (l *Socket) WantSend() bool {
	return !l.dead && len(l.sendQueue) > 0
}
