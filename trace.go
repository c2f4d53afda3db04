package twopence

import (
	"context"

	"github.com/imdario/mergo"
)

// Trace defines optional hooks into engine and client activity, treating
// logging as a pluggable collaborator rather than a fixed logger call.
// The shape and the context-key wiring below follow the NETCONF client's
// ClientTrace / ContextClientTrace / WithClientTrace trio in the pack
// (damianoneill-net v2/netconf/client/trace.go); fields absent from a
// caller-supplied Trace fall back to NoOpTrace via mergo.Merge, exactly as
// ContextClientTrace does.
type Trace struct {
	// FrameSent is called after a frame has been fully queued for
	// transmission on the peer link.
	FrameSent func(xid uint16, packetType PacketType, payloadLen int)

	// FrameReceived is called after a complete frame has been decoded off
	// the peer link, before it is dispatched to its transaction.
	FrameReceived func(xid uint16, packetType PacketType, payloadLen int)

	// TransactionStarted is called when a new transaction is created.
	TransactionStarted func(xid uint16, kind TransactionKind)

	// TransactionDone is called exactly once per transaction, when it
	// reaches the DONE state.
	TransactionDone func(xid uint16, kind TransactionKind, status Status)

	// LinkError is called with any error returned while dispatching a
	// received frame to its transaction or while driving a transaction's
	// channel I/O.
	LinkError func(err error)
}

// NoOpTrace is the default Trace: every hook is a harmless no-op.
var NoOpTrace = &Trace{
	FrameSent:          func(uint16, PacketType, int) {},
	FrameReceived:      func(uint16, PacketType, int) {},
	TransactionStarted: func(uint16, TransactionKind) {},
	TransactionDone:    func(uint16, TransactionKind, Status) {},
	LinkError:          func(error) {},
}

type traceContextKey struct{}

// WithTrace returns a context carrying trace, to be picked up by
// ContextTrace inside the engine and client packages.
func WithTrace(ctx context.Context, trace *Trace) context.Context {
	return context.WithValue(ctx, traceContextKey{}, trace)
}

// ContextTrace returns the Trace associated with ctx, with any hooks the
// caller left nil filled in from NoOpTrace.
func ContextTrace(ctx context.Context) *Trace {
	trace, _ := ctx.Value(traceContextKey{}).(*Trace)
	if trace == nil {
		return NoOpTrace
	}
	merged := *trace
	_ = mergo.Merge(&merged, *NoOpTrace)
	return &merged
}
