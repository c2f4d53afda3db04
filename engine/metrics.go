package engine

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector exposes per-Connection gauges to Prometheus: the number of live
// transactions by kind and the peer link's outbound queue depth. Shaped
// after runZeroInc-conniver's TCPInfoCollector (Describe/Collect over a
// mutex-guarded registry, one Desc per exported gauge) rather than
// per-metric globals, so a process embedding multiple Connections (a test
// server handling several links at once) registers one Collector per
// Connection without colliding label sets.
type Collector struct {
	mu    sync.Mutex
	conns map[*Connection]string // value is a connection label (e.g. remote address)

	txByKind  *prometheus.Desc
	queueByte *prometheus.Desc
}

// NewCollector builds a Collector with namePrefix-qualified metric names,
// e.g. "twopence_transactions_open" and "twopence_link_queue_bytes".
func NewCollector(namePrefix string) *Collector {
	return &Collector{
		conns: make(map[*Connection]string),
		txByKind: prometheus.NewDesc(
			namePrefix+"_transactions_open",
			"Number of open transactions by kind.",
			[]string{"connection", "kind"}, nil,
		),
		queueByte: prometheus.NewDesc(
			namePrefix+"_link_queue_bytes",
			"Bytes currently queued for transmit on the peer link.",
			[]string{"connection"}, nil,
		),
	}
}

// Track registers conn, labeled by label, for collection.
func (c *Collector) Track(conn *Connection, label string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conns[conn] = label
}

// Untrack removes conn from collection, e.g. once its link has closed.
func (c *Collector) Untrack(conn *Connection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.conns, conn)
}

func (c *Collector) Describe(descs chan<- *prometheus.Desc) {
	descs <- c.txByKind
	descs <- c.queueByte
}

func (c *Collector) Collect(metrics chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for conn, label := range c.conns {
		counts := conn.transactionCountsByKind()
		for kind, n := range counts {
			metrics <- prometheus.MustNewConstMetric(c.txByKind, prometheus.GaugeValue, float64(n), label, kind.String())
		}
		metrics <- prometheus.MustNewConstMetric(c.queueByte, prometheus.GaugeValue, float64(conn.link.XmitQueueBytes()), label)
	}
}
