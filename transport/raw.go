package transport

import (
	"strconv"

	"golang.org/x/sys/unix"
)

// rawPlugin drives an already-open file descriptor directly with read(2)/
// write(2)/close(2): the shape every channel fd (a command's stdin/stdout/
// stderr pipe, a local file opened for inject/extract) needs, as opposed to
// the peer link's pluggable transport. Attaching a sink or source puts its
// fd into non-blocking mode and wraps it the same way the peer link itself
// is wrapped.
type rawPlugin struct{}

// RawPlugin is the shared rawPlugin instance; channel fds all use it.
var RawPlugin Plugin = rawPlugin{}

// NewRawSocket wraps an already-open, already-non-blocking-capable fd for
// use as a channel endpoint.
func NewRawSocket(fd int) *Socket {
	_ = unix.SetNonblock(fd, true)
	return NewSocket(RawPlugin, fd)
}

// Open parses target as a decimal file descriptor already owned by the
// caller and puts it into non-blocking mode. It exists only so rawPlugin
// satisfies Plugin; callers normally go through NewRawSocket instead.
func (rawPlugin) Open(target string) (int, error) {
	fd, err := strconv.Atoi(target)
	if err != nil {
		return -1, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		return -1, err
	}
	return fd, nil
}

func (rawPlugin) Recv(fd int, buf []byte) (int, error) {
	n, err := unix.Read(fd, buf)
	if err == unix.EAGAIN {
		return 0, ErrWouldBlock
	}
	return n, err
}

func (rawPlugin) Send(fd int, buf []byte) (int, error) {
	n, err := unix.Write(fd, buf)
	if err == unix.EAGAIN {
		return n, ErrWouldBlock
	}
	return n, err
}

func (rawPlugin) Close(fd int) error {
	return unix.Close(fd)
}

func (rawPlugin) Kind() Kind { return KindRaw }
