package transport

import (
	"net"

	"github.com/higebu/netfd"
	"golang.org/x/sys/unix"
)

// unixPlugin dials or wraps a Unix-domain socket connection. Open dials
// target as a path; a server normally already holds an accepted net.Conn
// and should build the Socket directly via NewUnixSocket instead.
type unixPlugin struct{}

// NewUnixPlugin returns the Plugin for Unix-domain socket links.
func NewUnixPlugin() Plugin { return unixPlugin{} }

func (unixPlugin) Open(target string) (int, error) {
	conn, err := net.Dial("unix", target)
	if err != nil {
		return -1, err
	}
	fd := netfd.GetFdFromConn(conn)
	if err := unix.SetNonblock(fd, true); err != nil {
		return -1, err
	}
	return fd, nil
}

func (unixPlugin) Recv(fd int, buf []byte) (int, error) {
	n, err := unix.Read(fd, buf)
	if err == unix.EAGAIN {
		return 0, ErrWouldBlock
	}
	return n, err
}

func (unixPlugin) Send(fd int, buf []byte) (int, error) {
	n, err := unix.Write(fd, buf)
	if err == unix.EAGAIN {
		return n, ErrWouldBlock
	}
	return n, err
}

func (unixPlugin) Close(fd int) error { return unix.Close(fd) }

func (unixPlugin) Kind() Kind { return KindUnix }

// NewUnixSocket wraps an already-accepted Unix-domain net.Conn (the server
// side of an accept loop) as a non-blocking Socket, extracting its raw fd
// with github.com/higebu/netfd the same way the conniver/sockstats
// exporters pull a raw fd out of a net.Conn to call getsockopt on it.
func NewUnixSocket(conn net.Conn) (*Socket, error) {
	fd := netfd.GetFdFromConn(conn)
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, err
	}
	return NewSocket(unixPlugin{}, fd), nil
}
