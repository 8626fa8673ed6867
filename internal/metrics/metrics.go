package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// collector holds all prometheus metrics for one client session
type Collector struct {
	CommandsTotal      prometheus.Counter     // commands written to the peer
	BytesSentTotal     prometheus.Counter     // bytes written including terminators
	BytesReceivedTotal prometheus.Counter     // bytes returned by reply reads
	PeerClosedTotal    prometheus.Counter     // zero-length reads
	ErrorsTotal        *prometheus.CounterVec // fatal errors by stage: connect, write, read, console
	ReplyDuration      prometheus.Histogram   // time from write to reply
}

// creates and registers all metrics with reg
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		CommandsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "lineclient_commands_total",
				Help: "Total number of commands sent to the peer",
			},
		),

		BytesSentTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "lineclient_bytes_sent_total",
				Help: "Total bytes written to the peer, terminators included",
			},
		),

		BytesReceivedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "lineclient_bytes_received_total",
				Help: "Total bytes read from the peer",
			},
		),

		PeerClosedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "lineclient_peer_closed_total",
				Help: "Number of sessions ended by the peer closing the connection",
			},
		),

		// counter with labels. stage can be "connect", "write", "read" or "console"
		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lineclient_errors_total",
				Help: "Total number of fatal errors by stage",
			},
			[]string{"stage"},
		),

		// buckets are in seconds: 0.1ms, 1ms, 5ms, 10ms, 50ms, 100ms, 500ms, 1s, 5s
		ReplyDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "lineclient_reply_duration_seconds",
				Help:    "Time between sending a command and receiving its reply",
				Buckets: []float64{0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		),
	}
}

// records one completed command/reply exchange
func (c *Collector) ObserveExchange(sent int, received int, took time.Duration) {
	c.CommandsTotal.Inc()
	c.BytesSentTotal.Add(float64(sent))
	c.BytesReceivedTotal.Add(float64(received))
	c.ReplyDuration.Observe(took.Seconds())
}

// records a fatal error at stage
func (c *Collector) ObserveError(stage string) {
	c.ErrorsTotal.WithLabelValues(stage).Inc()
}
