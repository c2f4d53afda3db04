package transport

import "golang.org/x/sys/unix"

// PollSet accumulates the unix.PollFd entries for one event-loop iteration
// and maps each back to the Socket it came from: the poll-preparation and
// poll-fill contract built on golang.org/x/sys/unix.Poll in place of a raw
// struct pollfd array.
type PollSet struct {
	fds     []unix.PollFd
	sockets []*Socket
}

// Add registers s's current read/write interest, if any, and returns the
// index it was stored at, or -1 if s has nothing to wait for right now.
func (p *PollSet) Add(s *Socket) int {
	var events int16
	if s.WantRecv() {
		events |= unix.POLLIN
	}
	if s.WantSend() {
		events |= unix.POLLOUT
	}
	if events == 0 {
		return -1
	}
	p.fds = append(p.fds, unix.PollFd{Fd: int32(s.fd), Events: events})
	p.sockets = append(p.sockets, s)
	return len(p.fds) - 1
}

// Wait blocks for up to timeoutMs milliseconds (-1 for indefinitely) until
// at least one registered descriptor is ready, then drives DoIO on each
// ready socket and returns the number that were ready.
func (p *PollSet) Wait(timeoutMs int) (int, error) {
	if len(p.fds) == 0 {
		return 0, nil
	}
	n, err := unix.Poll(p.fds, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	for i, pfd := range p.fds {
		if pfd.Revents == 0 {
			continue
		}
		if ioErr := p.sockets[i].DoIO(); ioErr != nil && ioErr != ErrDead {
			continue
		}
	}
	return int(n), nil
}

// Reset clears the set for reuse on the next event-loop iteration.
func (p *PollSet) Reset() {
	p.fds = p.fds[:0]
	p.sockets = p.sockets[:0]
}
