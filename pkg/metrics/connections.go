package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ServerMetrics provides observability for the connection engine.
//
// Implementations receive connection lifecycle and traffic notifications
// from the metrics manager, and process samples from the stats manager.
type ServerMetrics interface {
	// RecordConnectionAccepted increments the total accepted connections counter.
	RecordConnectionAccepted()

	// RecordConnectionClosed increments the total closed connections counter.
	RecordConnectionClosed()

	// SetActiveConnections updates the current connection count.
	SetActiveConnections(count int)

	// RecordPacketReceived records one reassembled packet of size bytes.
	RecordPacketReceived(size int)

	// RecordBytesSent records bytes written to a client.
	RecordBytesSent(n int)

	// SetProcessStats records a resource sample of the server process.
	SetProcessStats(rssBytes uint64, cpuPercent, hostMemoryPercent float64)
}

type serverMetrics struct {
	connectionsAccepted prometheus.Counter
	connectionsClosed   prometheus.Counter
	activeConnections   prometheus.Gauge
	packetsReceived     prometheus.Counter
	packetSize          prometheus.Histogram
	bytesTransferred    *prometheus.CounterVec
	processRSS          prometheus.Gauge
	processCPU          prometheus.Gauge
	hostMemory          prometheus.Gauge
}

// NewServerMetrics creates a Prometheus-backed ServerMetrics on the global
// registry, or a no-op when metrics are not enabled.
func NewServerMetrics() ServerMetrics {
	if !IsEnabled() {
		return NewNoopServerMetrics()
	}
	return NewServerMetricsWith(GetRegistry())
}

// NewServerMetricsWith registers the server metrics on reg.
func NewServerMetricsWith(reg prometheus.Registerer) ServerMetrics {
	return &serverMetrics{
		connectionsAccepted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "validay_connections_accepted_total",
				Help: "Total number of connections accepted",
			},
		),
		connectionsClosed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "validay_connections_closed_total",
				Help: "Total number of connections closed",
			},
		),
		activeConnections: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "validay_active_connections",
				Help: "Current number of active connections",
			},
		),
		packetsReceived: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "validay_packets_received_total",
				Help: "Total number of reassembled packets received",
			},
		),
		packetSize: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "validay_packet_size_bytes",
				Help: "Size of received packets in bytes",
				Buckets: []float64{
					16,      // 16B
					64,      // 64B
					256,     // 256B
					1024,    // 1KB
					4096,    // 4KB
					65536,   // 64KB
					1048576, // 1MB
				},
			},
		),
		bytesTransferred: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "validay_bytes_transferred_total",
				Help: "Total bytes transferred",
			},
			[]string{"direction"}, // received or sent
		),
		processRSS: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "validay_process_resident_memory_bytes",
				Help: "Resident memory of the server process",
			},
		),
		processCPU: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "validay_process_cpu_percent",
				Help: "CPU usage of the server process in percent",
			},
		),
		hostMemory: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "validay_host_memory_used_percent",
				Help: "Memory used on the host in percent",
			},
		),
	}
}

func (m *serverMetrics) RecordConnectionAccepted() {
	m.connectionsAccepted.Inc()
}

func (m *serverMetrics) RecordConnectionClosed() {
	m.connectionsClosed.Inc()
}

func (m *serverMetrics) SetActiveConnections(count int) {
	m.activeConnections.Set(float64(count))
}

func (m *serverMetrics) RecordPacketReceived(size int) {
	m.packetsReceived.Inc()
	m.packetSize.Observe(float64(size))
	m.bytesTransferred.WithLabelValues("received").Add(float64(size))
}

func (m *serverMetrics) RecordBytesSent(n int) {
	m.bytesTransferred.WithLabelValues("sent").Add(float64(n))
}

func (m *serverMetrics) SetProcessStats(rssBytes uint64, cpuPercent, hostMemoryPercent float64) {
	m.processRSS.Set(float64(rssBytes))
	m.processCPU.Set(cpuPercent)
	m.hostMemory.Set(hostMemoryPercent)
}

// NewNoopServerMetrics returns a ServerMetrics that records nothing.
func NewNoopServerMetrics() ServerMetrics {
	return noopServerMetrics{}
}

type noopServerMetrics struct{}

func (noopServerMetrics) RecordConnectionAccepted()                {}
func (noopServerMetrics) RecordConnectionClosed()                  {}
func (noopServerMetrics) SetActiveConnections(int)                 {}
func (noopServerMetrics) RecordPacketReceived(int)                 {}
func (noopServerMetrics) RecordBytesSent(int)                      {}
func (noopServerMetrics) SetProcessStats(uint64, float64, float64) {}
