// Package twopence implements the transport and transaction engine of a
// small remote test-execution framework: a controller drives commands
// inside an isolated environment (reached over a virtio-serial, plain
// serial, or Unix-domain byte-pipe) and shuttles standard streams, file
// contents, and exit codes across that pipe.
//
// Subpackages: protocol (wire framing), transport (non-blocking byte-pipe
// links), engine (channel/transaction/event loop), server (command/inject/
// extract handlers) and client (the command driver and output sinks).
package twopence

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind identifies the class of failure surfaced to a caller of the
// client API. All kinds are "surface" policy per the error handling design;
// PROTOCOL additionally marks the owning transaction done.
type ErrorKind int

const (
	// KindNone indicates success; Error values are never constructed with it.
	KindNone ErrorKind = iota
	KindParameter
	KindOpenSession
	KindSendCommand
	KindForwardInput
	KindReceiveResults
	KindLocalFile
	KindRemoteFile
	KindSendFile
	KindReceiveFile
	KindInterruptCommand
	KindProtocol
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindParameter:
		return "parameter"
	case KindOpenSession:
		return "open-session"
	case KindSendCommand:
		return "send-command"
	case KindForwardInput:
		return "forward-input"
	case KindReceiveResults:
		return "receive-results"
	case KindLocalFile:
		return "local-file"
	case KindRemoteFile:
		return "remote-file"
	case KindSendFile:
		return "send-file"
	case KindReceiveFile:
		return "receive-file"
	case KindInterruptCommand:
		return "interrupt-command"
	case KindProtocol:
		return "protocol"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is the tagged error every client-facing operation returns on
// failure. RemoteCode carries the peer's major/errno value for
// KindRemoteFile; it is zero for every other kind.
type Error struct {
	Kind       ErrorKind
	RemoteCode int
	cause      error
}

func (e *Error) Error() string {
	if e.Kind == KindRemoteFile && e.RemoteCode != 0 {
		return fmt.Sprintf("twopence: %s (remote rc=%d)", e.Kind, e.RemoteCode)
	}
	if e.cause != nil {
		return fmt.Sprintf("twopence: %s: %s", e.Kind, e.cause)
	}
	return fmt.Sprintf("twopence: %s", e.Kind)
}

// Unwrap exposes the underlying cause for errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.cause }

// Is reports whether target is an *Error with the same Kind, so callers can
// write errors.Is(err, twopence.NewError(twopence.KindProtocol, nil)).
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return other.Kind == e.Kind
}

// NewError builds a tagged error, wrapping cause with call-site context via
// github.com/pkg/errors the way the rest of the pack annotates errors.
func NewError(kind ErrorKind, cause error) *Error {
	var wrapped error
	if cause != nil {
		wrapped = errors.WithStack(cause)
	}
	return &Error{Kind: kind, cause: wrapped}
}

// NewRemoteError builds a KindRemoteFile error carrying the peer's reported
// major/errno code.
func NewRemoteError(code int) *Error {
	return &Error{Kind: KindRemoteFile, RemoteCode: code}
}
