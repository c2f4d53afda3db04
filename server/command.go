package server

import (
	"syscall"

	"github.com/frankenmichl/twopence"
	"github.com/frankenmichl/twopence/engine"
)

// runningCommand tracks the child process and whether the first interrupt
// has already been delivered: a second interrupt escalates to SIGKILL. A
// link timeout does not signal the child.
type runningCommand struct {
	proc        Process
	interrupted bool
	exited      bool
	exitCode    int
	waitCh      <-chan int
}

// StartCommand parses `c...<user> <command>\0`, validates the user name,
// spawns the command through exec, and wires its stdio as channels on tx.
func StartCommand(tx *engine.Transaction, exec Executor, payload []byte) error {
	user, command, err := parseCommand(payload)
	if err != nil {
		return tx.Fail(int(syscall.EINVAL))
	}
	if !twopence.ValidUsername(user) {
		return tx.Fail(int(syscall.EINVAL))
	}

	proc, err := exec.Start(user, command)
	if err != nil {
		tx.SendMajor(errnoOf(err))
		tx.SendMinor(0)
		return nil
	}

	rc := &runningCommand{proc: proc}

	stdin := engine.NewSink(twopence.PacketStdin, int(proc.Stdin().Fd()))
	stdout := engine.NewSource(twopence.PacketStdout, int(proc.Stdout().Fd()))
	stderr := engine.NewSource(twopence.PacketStderr, int(proc.Stderr().Fd()))
	stdin.OnWriteEOF(func() { _ = stdin.Close() })
	tx.AttachLocalSink(stdin)
	tx.AttachLocalSource(stdout)
	tx.AttachLocalSource(stderr)

	tx.SendMajor(0)

	tx.SetHooks(
		func(tx *engine.Transaction, pt twopence.PacketType, payload []byte) error {
			if pt == twopence.PacketInterrupt {
				sig := syscall.SIGTERM
				if rc.interrupted {
					sig = syscall.SIGKILL
				}
				rc.interrupted = true
				_ = rc.proc.Signal(sig)
				return nil
			}
			return tx.Fail(int(syscall.EPROTO))
		},
		func(tx *engine.Transaction) {
			if rc.exited {
				return
			}
			if rc.waitCh == nil {
				rc.waitCh = waitAsync(rc.proc)
			}
			select {
			case code := <-rc.waitCh:
				rc.exited = true
				rc.exitCode = code
				tx.SendMinor(code)
			default:
			}
		},
	)
	return nil
}

// waitAsync spawns exactly one goroutine to call the blocking Process.Wait
// and hands the result back to the single-threaded event loop over a
// channel, so no other operation blocks: only this one goroutine, outside
// the loop, performs the blocking wait(2) syscall. Tests substitute this
// seam with a pre-resolved channel.
var waitAsync = func(proc Process) <-chan int {
	ch := make(chan int, 1)
	go func() {
		code, err := proc.Wait()
		if err != nil {
			code = -1
		}
		ch <- code
	}()
	return ch
}
