package transport

import "golang.org/x/sys/unix"

// setSpeed sets both input and output baud rate on t. golang.org/x/sys/unix
// models Termios.Ispeed/Ospeed as the raw B-constant on Linux, so this is
// just a field assignment rather than a cfsetspeed(3) call.
func setSpeed(t *unix.Termios, speed uint32) {
	t.Ispeed = speed
	t.Ospeed = speed
}
