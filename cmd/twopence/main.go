// Command twopence drives one transaction against a twopence-test-server
// endpoint: command, inject, extract, interrupt, or quit.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/frankenmichl/twopence"
	"github.com/frankenmichl/twopence/client"
)

func main() {
	var (
		target     = flag.String("target", "", "device path, unix:///path, or tcp://host:port")
		user       = flag.String("user", "root", "remote user to run as")
		bufferSize = flag.Int("buffer", 0, "capture combined stdout/stderr in a buffer of this size instead of the screen")
		multiplex  = flag.Bool("multiplex", false, "negotiate the multiplexed (6-byte header) wire format")
	)
	flag.Parse()

	if *target == "" {
		log.Fatal("twopence: -target is required")
	}
	args := flag.Args()
	if len(args) == 0 {
		log.Fatal("twopence: usage: twopence -target=... <command|inject|extract|interrupt|quit> [args...]")
	}

	plugin, addr := resolvePlugin(*target)
	c := client.New(plugin, addr)
	if *multiplex {
		c.Config.Version = twopence.VersionMultiplex
	}

	switch op := args[0]; op {
	case "command":
		if len(args) < 2 {
			log.Fatal("twopence: command requires a command string")
		}
		var sink client.OutputSink = client.ScreenSink{}
		var buf *client.BufferSink
		if *bufferSize > 0 {
			buf = client.NewBufferSink(*bufferSize)
			sink = buf
		}
		major, minor, err := c.Command(noCancel(), *user, args[1], sink)
		if err != nil {
			log.Fatalf("twopence: command: %v", err)
		}
		if buf != nil {
			os.Stdout.Write(buf.Bytes())
		}
		fmt.Printf("major=%d minor=%d\n", major, minor)
	case "inject":
		if len(args) < 3 {
			log.Fatal("twopence: inject requires <local-path> <remote-path>")
		}
		rc, err := c.Inject(noCancel(), *user, args[1], args[2])
		if err != nil {
			log.Fatalf("twopence: inject: %v", err)
		}
		fmt.Printf("remote_rc=%d\n", rc)
	case "extract":
		if len(args) < 3 {
			log.Fatal("twopence: extract requires <remote-path> <local-path>")
		}
		rc, err := c.Extract(noCancel(), *user, args[1], args[2])
		if err != nil {
			log.Fatalf("twopence: extract: %v", err)
		}
		fmt.Printf("remote_rc=%d\n", rc)
	case "interrupt":
		if err := c.Interrupt(); err != nil {
			log.Fatalf("twopence: interrupt: %v", err)
		}
	case "quit":
		if err := c.Exit(); err != nil {
			log.Fatalf("twopence: quit: %v", err)
		}
	default:
		log.Fatalf("twopence: unknown operation %q", op)
	}
}
