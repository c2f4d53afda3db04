package transport

import "golang.org/x/sys/unix"

// virtioPlugin opens a virtio-serial character device, the default carrier
// for the host-to-guest link; grounded on protocol.c's
// _twopence_inject_virtio_serial family, which names the transport but
// leaves the actual device open/ioctl detail to the link_ops table this
// plugin set replaces.
type virtioPlugin struct{}

// NewVirtioPlugin returns the Plugin for a virtio-serial port device path
// such as /dev/virtio-ports/org.twopence.0.
func NewVirtioPlugin() Plugin { return virtioPlugin{} }

func (virtioPlugin) Open(target string) (int, error) {
	return unix.Open(target, unix.O_RDWR|unix.O_NONBLOCK, 0)
}

func (virtioPlugin) Recv(fd int, buf []byte) (int, error) {
	n, err := unix.Read(fd, buf)
	if err == unix.EAGAIN {
		return 0, ErrWouldBlock
	}
	return n, err
}

func (virtioPlugin) Send(fd int, buf []byte) (int, error) {
	n, err := unix.Write(fd, buf)
	if err == unix.EAGAIN {
		return n, ErrWouldBlock
	}
	return n, err
}

func (virtioPlugin) Close(fd int) error { return unix.Close(fd) }

func (virtioPlugin) Kind() Kind { return KindVirtio }
