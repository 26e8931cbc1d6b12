// Package ratelimit disconnects clients that send packets faster than a
// configured rate.
package ratelimit

import (
	"github.com/marmos91/validay/internal/ratelimiter"
	"github.com/marmos91/validay/pkg/event"
	"github.com/marmos91/validay/pkg/logger"
	"github.com/marmos91/validay/pkg/manager"
)

const Name = "RateLimitManager"

const (
	DefaultPacketsPerSecond = 100
	DefaultBurst            = 200
)

type Config struct {
	PacketsPerSecond uint
	Burst            uint
}

// Manager keeps one token bucket per client. A packet arriving on an
// empty bucket disconnects its sender.
type Manager struct {
	manager.Base

	cfg      Config
	limiters *ratelimiter.Keyed
}

func New(cfg Config) *Manager {
	if cfg.PacketsPerSecond == 0 {
		cfg.PacketsPerSecond = DefaultPacketsPerSecond
	}
	if cfg.Burst == 0 {
		cfg.Burst = DefaultBurst
	}
	return &Manager{
		Base:     manager.NewBase(Name),
		cfg:      cfg,
		limiters: ratelimiter.NewKeyed(cfg.PacketsPerSecond, cfg.Burst),
	}
}

func (m *Manager) Start() {
	if !m.Activate() {
		return
	}
	m.Subscribe(event.DataReceived, m.onDataReceived)
	m.Subscribe(event.ClientDisconnected, m.onClientDisconnected)
	m.Logger().Log(logger.LevelInfo, "%s started (%d packets/s, burst %d)",
		Name, m.cfg.PacketsPerSecond, m.cfg.Burst)
}

func (m *Manager) Stop() {
	if m.Deactivate() {
		m.limiters.Reset()
		m.Logger().Log(logger.LevelInfo, "%s stopped", Name)
	}
}

// Tracked returns the number of clients with a live bucket.
func (m *Manager) Tracked() int {
	return m.limiters.Len()
}

func (m *Manager) onDataReceived(e event.Event) {
	if e.Client == nil {
		return
	}
	if m.limiters.Allow(e.Client.ID().String()) {
		return
	}

	m.Logger().Log(logger.LevelWarning, "%s: %v exceeded %d packets/s, disconnecting",
		Name, e.Client, m.cfg.PacketsPerSecond)
	if host := m.Host(); host != nil {
		_ = host.DisconnectClient(e.Client)
	}
}

func (m *Manager) onClientDisconnected(e event.Event) {
	if e.Client != nil {
		m.limiters.Remove(e.Client.ID().String())
	}
}
