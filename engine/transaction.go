package engine

import (
	"github.com/pkg/errors"

	"github.com/frankenmichl/twopence"
	"github.com/frankenmichl/twopence/protocol"
	"github.com/frankenmichl/twopence/transport"
)

// State is the OPEN → RUNNING → DONE lifecycle of a transaction: OPEN is
// the pre-parse state, RUNNING is after the kind-specific hook is
// installed, DONE is latched by SendStatus/Fail/Fail2/SendTimeout and is
// terminal.
type State uint8

const (
	StateOpen State = iota
	StateRunning
	StateDone
)

// RecvHook handles one incoming packet that matched none of RecvPacket's
// first three cases: not a drop, not a sink write, not an EOF half-close.
// Kind-specific server/client logic installs this.
type RecvHook func(tx *Transaction, pt twopence.PacketType, payload []byte) error

// SendHook is invoked once per event-loop tick to let kind-specific logic
// pump additional outgoing state.
type SendHook func(tx *Transaction)

// Transaction is the unit of work between controller and server: command,
// inject, extract, interrupt, or quit. It owns its channels and carries
// the two-phase major/minor status handshake.
type Transaction struct {
	ID    uint16
	Kind  twopence.TransactionKind
	State State

	link  *transport.Socket
	ps    protocol.State

	sinks   []*Channel
	sources []*Channel

	majorSent, minorSent bool
	majorCode, minorCode int
	done                 bool

	onRecv RecvHook
	onSend SendHook

	trace *twopence.Trace
}

// NewTransaction constructs a transaction bound to peer, identified by id,
// running protocol state ps.
func NewTransaction(id uint16, kind twopence.TransactionKind, peer *transport.Socket, ps protocol.State) *Transaction {
	ps.TransactionID = id
	return &Transaction{ID: id, Kind: kind, link: peer, ps: ps, State: StateOpen, trace: twopence.NoOpTrace}
}

// SetTrace installs the trace hooks the owning Connection negotiated; called
// once at registration time.
func (t *Transaction) SetTrace(trace *twopence.Trace) { t.trace = trace }

// SetHooks installs the kind-specific recv/send callbacks and moves the
// transaction to RUNNING.
func (t *Transaction) SetHooks(recv RecvHook, send SendHook) {
	t.onRecv = recv
	t.onSend = send
	t.State = StateRunning
}

// Done reports whether this transaction has reached its terminal state.
func (t *Transaction) Done() bool { return t.done }

// AttachLocalSink adds a sink channel.
func (t *Transaction) AttachLocalSink(c *Channel) { t.sinks = append(t.sinks, c) }

// AttachLocalSource adds a source channel.
func (t *Transaction) AttachLocalSource(c *Channel) { t.sources = append(t.sources, c) }

// CloseSink closes the sink with the given id, or all sinks when id is 0.
func (t *Transaction) CloseSink(id twopence.PacketType) {
	t.sinks = closeChannels(t.sinks, id)
}

// CloseSource closes the source with the given id, or all when id is 0.
func (t *Transaction) CloseSource(id twopence.PacketType) {
	t.sources = closeChannels(t.sources, id)
}

func closeChannels(list []*Channel, id twopence.PacketType) []*Channel {
	kept := list[:0]
	for _, c := range list {
		if id == 0 || c.ID == id {
			_ = c.Close()
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

func (t *Transaction) findSink(id twopence.PacketType) *Channel {
	for _, c := range t.sinks {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (t *Transaction) findSource(id twopence.PacketType) *Channel {
	for _, c := range t.sources {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// RecvPacket dispatches one incoming frame per an ordered set of rules:
//  1. Drop if done.
//  2. Write to the matching sink.
//  3. EOF packet with a write_eof-bearing sink: half-close and fire once.
//  4. Otherwise invoke the kind-specific recv hook; fail PROTOCOL if none.
func (t *Transaction) RecvPacket(pt twopence.PacketType, payload []byte) error {
	if t.done {
		return nil
	}
	if sink := t.findSink(pt); sink != nil {
		sink.Write(payload)
		return nil
	}
	if pt == twopence.PacketEOF {
		if sink := firstWithWriteEOF(t.sinks); sink != nil {
			sink.ShutdownWrite()
			return nil
		}
	}
	if t.onRecv != nil {
		return t.onRecv(t, pt, payload)
	}
	return twopence.NewError(twopence.KindProtocol, errors.Errorf("unexpected packet type %q in transaction %d", pt, t.ID))
}

func firstWithWriteEOF(list []*Channel) *Channel {
	for _, c := range list {
		if c.onWriteEOF != nil && !c.writeEOFFired {
			return c
		}
	}
	return nil
}

// FillPoll registers interest for every sink (always, for write-EOF
// detection) then, only while the peer link's outbound queue is below the
// high-water mark, every source.
func (t *Transaction) FillPoll(p *transport.PollSet, hdrSize, mtu int) {
	for _, c := range t.sinks {
		c.Poll(p, hdrSize, mtu)
	}
	if !t.link.XmitQueueAllowed() {
		return
	}
	for _, c := range t.sources {
		c.Poll(p, hdrSize, mtu)
	}
}

// DoIO drives every channel's socket I/O, frames any payload a source
// produced and enqueues it to the peer link, fires read-EOF callbacks, and
// purges dead channels.
func (t *Transaction) DoIO() error {
	for _, c := range append(append([]*Channel{}, t.sinks...), t.sources...) {
		payload, _ := c.DoIO()
		if payload == nil {
			continue
		}
		buf, err := protocol.Encode(t.ps, c.ID, payload, protocolMTU)
		if err != nil {
			return t.Fail(-1)
		}
		t.link.QueueXmit(buf)
		t.trace.FrameSent(t.ID, c.ID, len(payload))
	}
	t.purgeDead()
	return nil
}

func (t *Transaction) purgeDead() {
	live := t.sinks[:0]
	for _, c := range t.sinks {
		if c.IsDead() {
			_ = c.Close()
			continue
		}
		live = append(live, c)
	}
	t.sinks = live

	liveSrc := t.sources[:0]
	for _, c := range t.sources {
		if c.IsDead() {
			_ = c.Close()
			continue
		}
		liveSrc = append(liveSrc, c)
	}
	t.sources = liveSrc
}

// SendMajor enqueues the major status packet. Sending it twice for the
// same transaction is a programming bug, enforced here by assertion.
func (t *Transaction) SendMajor(code int) {
	if t.majorSent {
		panic("engine: major status sent twice")
	}
	t.majorSent = true
	t.majorCode = code
	t.sendUint(twopence.PacketMajor, code)
}

// SendMinor enqueues the minor status packet and marks the transaction
// done: minor is always the second and last half of the handshake, and
// major always goes out before it, each sent at most once.
func (t *Transaction) SendMinor(code int) {
	if t.minorSent {
		panic("engine: minor status sent twice")
	}
	t.minorSent = true
	t.minorCode = code
	t.sendUint(twopence.PacketMinor, code)
	t.done = true
	t.State = StateDone
}

// SendFrame enqueues an arbitrary one-off control frame (e.g. the 's' size
// reply or an 'E' EOF marker) that is not part of the major/minor status
// handshake and so is not subject to the single-shot assertion.
func (t *Transaction) SendFrame(pt twopence.PacketType, payload []byte) {
	buf, err := protocol.Encode(t.ps, pt, payload, protocolMTU)
	if err != nil {
		return
	}
	t.link.QueueXmit(buf)
	t.trace.FrameSent(t.ID, pt, len(payload))
}

func (t *Transaction) sendUint(pt twopence.PacketType, value int) {
	payload := protocol.FormatUint(value)
	buf, err := protocol.Encode(t.ps, pt, payload, protocolMTU)
	if err != nil {
		return
	}
	t.link.QueueXmit(buf)
	t.trace.FrameSent(t.ID, pt, len(payload))
}

// SendStatus sends major then minor in order and marks the transaction
// done.
func (t *Transaction) SendStatus(major, minor int) {
	t.SendMajor(major)
	t.SendMinor(minor)
	t.done = true
	t.State = StateDone
}

// Fail marks done and sends whichever of major/minor has not yet gone out.
// It is a programming error to call Fail after both have already been
// sent.
func (t *Transaction) Fail(code int) error {
	t.done = true
	t.State = StateDone
	switch {
	case !t.majorSent:
		t.SendMajor(code)
	case !t.minorSent:
		t.SendMinor(code)
	default:
		panic("engine: Fail called after major and minor already sent")
	}
	return twopence.NewError(twopence.KindProtocol, errors.Errorf("transaction %d failed with code %d", t.ID, code))
}

// Fail2 forces both major and minor and marks done.
func (t *Transaction) Fail2(major, minor int) {
	t.majorSent = true
	t.minorSent = true
	t.majorCode = major
	t.minorCode = minor
	t.sendUint(twopence.PacketMajor, major)
	t.sendUint(twopence.PacketMinor, minor)
	t.done = true
	t.State = StateDone
}

// SendTimeout sends the dedicated TIMEOUT packet type and marks done: a
// link idle timeout surfaces to the owning transaction exactly as any
// other terminal status would.
func (t *Transaction) SendTimeout() {
	buf, err := protocol.Encode(t.ps, twopence.PacketTimeout, nil, protocolMTU)
	if err == nil {
		t.link.QueueXmit(buf)
		t.trace.FrameSent(t.ID, twopence.PacketTimeout, 0)
	}
	t.done = true
	t.State = StateDone
}

// Tick invokes the kind-specific send hook, if any, once per event-loop
// iteration.
func (t *Transaction) Tick() {
	if t.onSend != nil {
		t.onSend(t)
	}
}

// MajorCode and MinorCode expose the last codes sent or recorded, for
// callers collecting the result of a completed transaction.
func (t *Transaction) MajorCode() int { return t.majorCode }
func (t *Transaction) MinorCode() int { return t.minorCode }

// RecordMajor/RecordMinor note a status code the peer sent us, for the
// receiving side of the handshake (the client observing the server's
// major/minor, rather than the server emitting them). Unlike SendMajor/
// SendMinor these enqueue no frame.
func (t *Transaction) RecordMajor(code int) { t.majorSent = true; t.majorCode = code }
func (t *Transaction) RecordMinor(code int) { t.minorSent = true; t.minorCode = code }

// MarkDone latches DONE without emitting any frame, for the receiving side
// once it has observed both major and minor from the peer.
func (t *Transaction) MarkDone() { t.done = true; t.State = StateDone }

// IsDead reports whether this transaction's peer link has failed.
func (t *Transaction) IsDead() bool { return t.link.IsDead() }

const protocolMTU = twopence.MaxFrameLength
