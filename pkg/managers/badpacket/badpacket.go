// Package badpacket disconnects clients that keep sending packets no
// command is registered for.
package badpacket

import (
	"errors"
	"time"

	"github.com/marmos91/validay/pkg/command"
	"github.com/marmos91/validay/pkg/event"
	"github.com/marmos91/validay/pkg/logger"
	"github.com/marmos91/validay/pkg/manager"
	gocache "github.com/patrickmn/go-cache"
)

const Name = "BadPacketDefenderManager"

// DefaultThreshold is the number of bad packets that gets a client
// disconnected.
const DefaultThreshold = 10

type Config struct {
	// Threshold disconnects a client once its bad packet count reaches it.
	Threshold int

	// Window, when non-zero, forgets a client's count that long after its
	// first bad packet. Zero keeps counts until disconnect.
	Window time.Duration
}

// Manager counts, per client, packets whose id is unknown or that are too
// short to carry one.
type Manager struct {
	manager.Base

	commands *command.Registry
	decode   command.IDDecoder
	cfg      Config
	counters *gocache.Cache
}

func New(commands *command.Registry, decode command.IDDecoder, cfg Config) *Manager {
	if decode == nil {
		decode = command.LittleEndianID
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}

	expiration := gocache.NoExpiration
	cleanup := 10 * time.Second
	if cfg.Window > 0 {
		expiration = cfg.Window
		cleanup = cfg.Window
	}

	return &Manager{
		Base:     manager.NewBase(Name),
		commands: commands,
		decode:   decode,
		cfg:      cfg,
		counters: gocache.New(expiration, cleanup),
	}
}

func (m *Manager) Init(host manager.Host, log logger.Logger) error {
	if m.commands == nil {
		return errors.New(Name + ": command registry is nil")
	}
	return m.Base.Init(host, log)
}

func (m *Manager) Start() {
	if !m.Activate() {
		return
	}
	m.Subscribe(event.DataReceived, m.onDataReceived)
	m.Subscribe(event.ClientDisconnected, m.onClientDisconnected)
	m.Logger().Log(logger.LevelInfo, "%s started", Name)
}

func (m *Manager) Stop() {
	if m.Deactivate() {
		m.counters.Flush()
		m.Logger().Log(logger.LevelInfo, "%s stopped", Name)
	}
}

// Count returns the current bad packet count of the client with id key.
func (m *Manager) Count(key string) int {
	v, ok := m.counters.Get(key)
	if !ok {
		return 0
	}
	return v.(int)
}

func (m *Manager) onDataReceived(e event.Event) {
	if e.Client == nil {
		return
	}

	id, err := m.decode(e.Data)
	if err == nil && m.commands.Contains(id) {
		return
	}

	key := e.Client.ID().String()
	count := m.increment(key)
	m.Logger().Log(logger.LevelLow, "%s: bad packet from %v (%d/%d)", Name, e.Client, count, m.cfg.Threshold)

	if count >= m.cfg.Threshold {
		m.Logger().Log(logger.LevelWarning, "%s: %v sent %d bad packets, disconnecting", Name, e.Client, count)
		m.counters.Delete(key)
		if host := m.Host(); host != nil {
			_ = host.DisconnectClient(e.Client)
		}
	}
}

// increment runs on the client's reader goroutine, so a key is never
// incremented concurrently.
func (m *Manager) increment(key string) int {
	if err := m.counters.Add(key, 1, gocache.DefaultExpiration); err == nil {
		return 1
	}
	n, err := m.counters.IncrementInt(key, 1)
	if err != nil {
		// Expired between Add and IncrementInt.
		m.counters.Set(key, 1, gocache.DefaultExpiration)
		return 1
	}
	return n
}

func (m *Manager) onClientDisconnected(e event.Event) {
	if e.Client != nil {
		m.counters.Delete(e.Client.ID().String())
	}
}
