// Package heartbeat periodically probes every connection and drops the
// ones that can no longer be written to.
package heartbeat

import (
	"sync"
	"time"

	"github.com/marmos91/validay/pkg/logger"
	"github.com/marmos91/validay/pkg/manager"
)

const Name = "ConnectionCheckManager"

// DefaultInterval is the probe period.
const DefaultInterval = 10 * time.Second

// Probe is the payload sent to every client.
var Probe = []byte{0x00, 0x00}

// Manager sends Probe to every live client once per interval, starting
// immediately. A client that is already closed or whose send fails is
// disconnected; write failures found later by the server's writer
// goroutine disconnect the client there.
type Manager struct {
	manager.Base

	interval time.Duration

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

func New(interval time.Duration) *Manager {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Manager{Base: manager.NewBase(Name), interval: interval}
}

func (m *Manager) Interval() time.Duration {
	return m.interval
}

func (m *Manager) Start() {
	if !m.Activate() {
		return
	}

	m.mu.Lock()
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go m.run(m.stop, m.done)
	m.mu.Unlock()

	m.Logger().Log(logger.LevelInfo, "%s started (interval %v)", Name, m.interval)
}

func (m *Manager) Stop() {
	if !m.Deactivate() {
		return
	}

	m.mu.Lock()
	stop, done := m.stop, m.done
	m.stop, m.done = nil, nil
	m.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	m.Logger().Log(logger.LevelInfo, "%s stopped", Name)
}

func (m *Manager) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Check()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.Check()
		}
	}
}

// Check probes every live client once and returns how many were dropped.
// Clients are visited in reverse snapshot order.
func (m *Manager) Check() int {
	host := m.Host()
	if host == nil {
		return 0
	}

	clients := host.GetAllConnections()
	dropped := 0
	for i := len(clients) - 1; i >= 0; i-- {
		c := clients[i]

		if c.IsClosed() {
			m.Logger().Log(logger.LevelLow, "%s: %v is closed, removing", Name, c)
			_ = host.DisconnectClient(c)
			dropped++
			continue
		}

		probe := make([]byte, len(Probe))
		copy(probe, Probe)
		if err := host.TrySendToClient(c, probe); err != nil {
			m.Logger().Log(logger.LevelLow, "%s: probe to %v failed: %v", Name, c, err)
			_ = host.DisconnectClient(c)
			dropped++
		}
	}

	if dropped > 0 {
		m.Logger().Log(logger.LevelInfo, "%s: dropped %d dead connection(s)", Name, dropped)
	}
	return dropped
}
