package transport

import (
	"net"

	"github.com/higebu/netfd"
	"golang.org/x/sys/unix"
)

// tcpPlugin dials a TCP link. Used for the test suite and for deployments
// that route the guest agent link over a network instead of a local
// character device: virtio and serial are the real-world defaults, but the
// protocol itself does not care what carries the bytes.
type tcpPlugin struct{}

// NewTCPPlugin returns the Plugin for TCP links.
func NewTCPPlugin() Plugin { return tcpPlugin{} }

func (tcpPlugin) Open(target string) (int, error) {
	conn, err := net.Dial("tcp", target)
	if err != nil {
		return -1, err
	}
	fd := netfd.GetFdFromConn(conn)
	if err := unix.SetNonblock(fd, true); err != nil {
		return -1, err
	}
	return fd, nil
}

func (tcpPlugin) Recv(fd int, buf []byte) (int, error) {
	n, err := unix.Read(fd, buf)
	if err == unix.EAGAIN {
		return 0, ErrWouldBlock
	}
	return n, err
}

func (tcpPlugin) Send(fd int, buf []byte) (int, error) {
	n, err := unix.Write(fd, buf)
	if err == unix.EAGAIN {
		return n, ErrWouldBlock
	}
	return n, err
}

func (tcpPlugin) Close(fd int) error { return unix.Close(fd) }

func (tcpPlugin) Kind() Kind { return KindTCP }

// NewTCPSocket wraps an already-accepted TCP net.Conn as a non-blocking
// Socket.
func NewTCPSocket(conn net.Conn) (*Socket, error) {
	fd := netfd.GetFdFromConn(conn)
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, err
	}
	return NewSocket(tcpPlugin{}, fd), nil
}
