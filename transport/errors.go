package transport

import (
	"errors"

	"code.hybscloud.com/iox"
)

// ErrWouldBlock is returned by Plugin.Recv/Send (and propagated by Socket)
// when the call would otherwise block — the non-blocking control-flow
// signal the whole engine is built around. This is the same sentinel the
// teacher's framer.go checks with
// errors.Is(err, iox.ErrWouldBlock); aliasing it here instead of minting a
// local one lets a Plugin built against iox-wrapped readers/writers (rather
// than raw fds) propagate its errors straight through without translation.
var ErrWouldBlock = iox.ErrWouldBlock

// ErrDead is returned by Socket operations once the link has been marked
// dead by an unrecoverable I/O error.
var ErrDead = errors.New("transport: link is dead")
