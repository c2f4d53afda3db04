// Command twopence-test-server runs the accepting side of the twopence
// transaction protocol: a daemon that either owns an already-open character
// device for the lifetime of a guest, or listens for Unix-domain/TCP
// connections and serves them one at a time.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/frankenmichl/twopence"
	"github.com/frankenmichl/twopence/engine"
	"github.com/frankenmichl/twopence/server"
	"github.com/frankenmichl/twopence/transport"
)

func main() {
	var (
		device      = flag.String("device", "", "virtio-serial or serial character device path")
		serialMode  = flag.Bool("serial", false, "treat -device as a plain tty instead of virtio-serial")
		unixPath    = flag.String("unix", "", "Unix-domain socket path to listen on")
		tcpAddr     = flag.String("tcp", "", "TCP address to listen on, e.g. :4488")
		multiplex   = flag.Bool("multiplex", false, "negotiate the multiplexed (6-byte header) wire format")
		metricsAddr = flag.String("metrics-addr", "", "if set, serve Prometheus metrics on this address, e.g. :9488")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.NewServer()
	if *multiplex {
		srv.Config.Version = twopence.VersionMultiplex
	}

	if *metricsAddr != "" {
		collector := engine.NewCollector("twopence")
		srv.Metrics = collector
		reg := prometheus.NewRegistry()
		reg.MustRegister(collector)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Printf("twopence-test-server: metrics listener: %v", err)
			}
		}()
	}

	switch {
	case *device != "":
		plugin := transport.NewVirtioPlugin()
		if *serialMode {
			plugin = transport.NewSerialPlugin()
		}
		if err := srv.ServeDevice(ctx, plugin, *device); err != nil {
			log.Fatalf("twopence-test-server: %v", err)
		}
	case *unixPath != "":
		if err := srv.ListenAndServe(ctx, "unix", *unixPath); err != nil {
			log.Fatalf("twopence-test-server: %v", err)
		}
	case *tcpAddr != "":
		if err := srv.ListenAndServe(ctx, "tcp", *tcpAddr); err != nil {
			log.Fatalf("twopence-test-server: %v", err)
		}
	default:
		log.Fatal("twopence-test-server: one of -device, -unix, -tcp is required")
	}
}
