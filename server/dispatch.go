package server

import (
	"errors"
	"os"
	"syscall"

	"github.com/frankenmichl/twopence/protocol"
)

func parseCommand(payload []byte) (user, command string, err error) {
	return protocol.ParseCommand(payload)
}

// badRequestErrno is the major code sent when a control header fails to
// parse or names an invalid user; the client treats this as a parameter
// error, surfaced here as the nearest POSIX errno so it still fits the
// wire's "ASCII integer" major-status convention.
const badRequestErrno = syscall.EINVAL

// errnoOf extracts the underlying errno from a failed file or process
// operation, falling back to EIO when the error does not wrap one: an open
// failure during inject or extract sends major = errno this way.
func errnoOf(err error) int {
	var perr *os.PathError
	if errors.As(err, &perr) {
		if errno, ok := perr.Err.(syscall.Errno); ok {
			return int(errno)
		}
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return int(errno)
	}
	return int(syscall.EIO)
}
