// internal/telemetry/metrics.go
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PromMetrics implements the channel.Metrics interface using Prometheus.
type PromMetrics struct {
	connections       prometheus.Counter
	disconnects       prometheus.Counter
	reconnectAttempts prometheus.Counter
	framesReceived    prometheus.Counter
	framesSent        prometheus.Counter
	decodeErrors      prometheus.Counter
	connStatus        prometheus.Gauge
}

// NewMetrics creates and registers the channel metrics.
// If registry is nil, it uses the global default registry.
func NewMetrics(registry prometheus.Registerer, labels map[string]string) *PromMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "dicebet",
			Subsystem:   "channel",
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
	}

	m := &PromMetrics{
		connections:       counter("connections_total", "Total number of successful WebSocket connections established."),
		disconnects:       counter("disconnects_total", "Total number of WebSocket disconnects after an open."),
		reconnectAttempts: counter("reconnect_attempts_total", "Total number of scheduled reconnect attempts."),
		framesReceived:    counter("frames_received_total", "Total number of inbound text frames."),
		framesSent:        counter("frames_sent_total", "Total number of outbound text frames."),
		decodeErrors:      counter("decode_errors_total", "Total number of inbound frames that were not valid JSON."),
		connStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "dicebet",
			Subsystem:   "channel",
			Name:        "connection_status",
			Help:        "Current status of the connection (1 = open, 0 = not open).",
			ConstLabels: labels,
		}),
	}

	registry.MustRegister(
		m.connections,
		m.disconnects,
		m.reconnectAttempts,
		m.framesReceived,
		m.framesSent,
		m.decodeErrors,
		m.connStatus,
	)
	return m
}

func (m *PromMetrics) IncConnections() {
	m.connections.Inc()
}

func (m *PromMetrics) IncDisconnects() {
	m.disconnects.Inc()
}

func (m *PromMetrics) IncReconnectAttempts() {
	m.reconnectAttempts.Inc()
}

func (m *PromMetrics) IncFramesReceived() {
	m.framesReceived.Inc()
}

func (m *PromMetrics) IncFramesSent() {
	m.framesSent.Inc()
}

func (m *PromMetrics) IncDecodeErrors() {
	m.decodeErrors.Inc()
}

func (m *PromMetrics) SetConnectionStatus(status float64) {
	m.connStatus.Set(status)
}
