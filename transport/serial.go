package transport

import "golang.org/x/sys/unix"

// serialPlugin opens a plain serial line (e.g. a USB-serial adapter) and
// puts it into raw, 115200-8N1 mode before handing the fd to the event
// loop. Raw mode matters here in a way it doesn't for virtio or Unix
// sockets: without it the tty line discipline would intercept control
// characters (^C, ^D, ^Z) that legitimately appear inside forwarded command
// output and stdin.
type serialPlugin struct{}

// NewSerialPlugin returns the Plugin for a raw serial device path such as
// /dev/ttyS0.
func NewSerialPlugin() Plugin { return serialPlugin{} }

func (serialPlugin) Open(target string) (int, error) {
	fd, err := unix.Open(target, unix.O_RDWR|unix.O_NONBLOCK|unix.O_NOCTTY, 0)
	if err != nil {
		return -1, err
	}
	if err := setRawMode(fd); err != nil {
		_ = unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

func setRawMode(fd int) error {
	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return err
	}
	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB
	t.Cflag |= unix.CS8
	t.Cc[unix.VMIN] = 0
	t.Cc[unix.VTIME] = 0
	setSpeed(t, unix.B115200)
	return unix.IoctlSetTermios(fd, unix.TCSETS, t)
}

func (serialPlugin) Recv(fd int, buf []byte) (int, error) {
	n, err := unix.Read(fd, buf)
	if err == unix.EAGAIN {
		return 0, ErrWouldBlock
	}
	return n, err
}

func (serialPlugin) Send(fd int, buf []byte) (int, error) {
	n, err := unix.Write(fd, buf)
	if err == unix.EAGAIN {
		return n, ErrWouldBlock
	}
	return n, err
}

func (serialPlugin) Close(fd int) error { return unix.Close(fd) }

func (serialPlugin) Kind() Kind { return KindSerial }
