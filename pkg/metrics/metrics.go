// Package metrics provides Prometheus metrics for the meet server and peer transports.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "meet"
)

// Metrics groups the counters surfacing what the core otherwise swallows: dropped sends, failed receives and
// protocol no-ops
type Metrics struct {
	// Meet server
	Registrations          prometheus.Counter
	DuplicateRegistrations prometheus.Counter
	Matches                prometheus.Counter
	ReplyErrors            prometheus.Counter
	PoolSize               prometheus.Gauge

	// Transport
	DatagramsSent     prometheus.Counter
	DatagramsReceived prometheus.Counter
	BytesSent         prometheus.Counter
	BytesReceived     prometheus.Counter
	SendErrors        prometheus.Counter
	ReceiveErrors     prometheus.Counter
}

var (
	defaultMetrics *Metrics
	metricsOnce    sync.Once
)

// Default returns the process-wide metrics registered on the default Prometheus registry
func Default() *Metrics {
	metricsOnce.Do(func() {
		defaultMetrics = NewMetricsWithRegistry(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// NewMetricsWithRegistry creates a Metrics instance registered on reg
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Registrations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Registration datagrams received by the meet server",
		}),
		DuplicateRegistrations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_registrations_total",
			Help:      "Registrations from an endpoint already waiting in the pool",
		}),
		Matches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_total",
			Help:      "Pairs of endpoints matched and informed of each other",
		}),
		ReplyErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reply_errors_total",
			Help:      "Match replies that could not be sent",
		}),
		PoolSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_size",
			Help:      "Endpoints currently waiting for a match",
		}),

		DatagramsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_datagrams_sent_total",
			Help:      "Datagrams handed to the peer socket",
		}),
		DatagramsReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_datagrams_received_total",
			Help:      "Datagrams received from the peer",
		}),
		BytesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_bytes_sent_total",
			Help:      "Payload bytes sent to the peer",
		}),
		BytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_bytes_received_total",
			Help:      "Payload bytes received from the peer",
		}),
		SendErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_send_errors_total",
			Help:      "Sends dropped because the socket reported an error",
		}),
		ReceiveErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_receive_errors_total",
			Help:      "Receives that failed and were reported as zero bytes",
		}),
	}
}

// RecordSend records the outcome of one transport send
func (m *Metrics) RecordSend(n int, err error) {
	if err != nil {
		m.SendErrors.Inc()
		return
	}
	m.DatagramsSent.Inc()
	m.BytesSent.Add(float64(n))
}

// RecordReceive records the outcome of one transport receive
func (m *Metrics) RecordReceive(n int, err error) {
	if err != nil {
		m.ReceiveErrors.Inc()
		return
	}
	m.DatagramsReceived.Inc()
	m.BytesReceived.Add(float64(n))
}
