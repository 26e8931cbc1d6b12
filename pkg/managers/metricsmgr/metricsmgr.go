// Package metricsmgr feeds server events into Prometheus metrics.
package metricsmgr

import (
	"sync/atomic"

	"github.com/marmos91/validay/pkg/event"
	"github.com/marmos91/validay/pkg/logger"
	"github.com/marmos91/validay/pkg/manager"
	"github.com/marmos91/validay/pkg/metrics"
)

const Name = "MetricsManager"

// Manager records connection lifecycle and traffic on a ServerMetrics.
type Manager struct {
	manager.Base

	metrics metrics.ServerMetrics
	active  atomic.Int64
}

// New records into m. A nil m uses metrics.NewServerMetrics, which is a
// no-op unless the registry was initialized.
func New(m metrics.ServerMetrics) *Manager {
	if m == nil {
		m = metrics.NewServerMetrics()
	}
	return &Manager{Base: manager.NewBase(Name), metrics: m}
}

func (m *Manager) Start() {
	if !m.Activate() {
		return
	}

	if host := m.Host(); host != nil {
		m.active.Store(int64(len(host.GetAllConnections())))
		m.metrics.SetActiveConnections(int(m.active.Load()))
	}

	m.Subscribe(event.ClientConnected, m.onClientConnected)
	m.Subscribe(event.ClientDisconnected, m.onClientDisconnected)
	m.Subscribe(event.DataReceived, m.onDataReceived)
	m.Subscribe(event.DataSent, m.onDataSent)
	m.Logger().Log(logger.LevelInfo, "%s started", Name)
}

func (m *Manager) Stop() {
	if m.Deactivate() {
		m.Logger().Log(logger.LevelInfo, "%s stopped", Name)
	}
}

func (m *Manager) onClientConnected(event.Event) {
	m.metrics.RecordConnectionAccepted()
	m.metrics.SetActiveConnections(int(m.active.Add(1)))
}

func (m *Manager) onClientDisconnected(event.Event) {
	m.metrics.RecordConnectionClosed()
	n := m.active.Add(-1)
	if n < 0 {
		m.active.Store(0)
		n = 0
	}
	m.metrics.SetActiveConnections(int(n))
}

func (m *Manager) onDataReceived(e event.Event) {
	m.metrics.RecordPacketReceived(len(e.Data))
}

func (m *Manager) onDataSent(e event.Event) {
	m.metrics.RecordBytesSent(len(e.Data))
}
