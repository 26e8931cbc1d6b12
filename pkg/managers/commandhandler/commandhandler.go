// Package commandhandler dispatches received packets to registered
// commands.
package commandhandler

import (
	"errors"

	"github.com/marmos91/validay/pkg/client"
	"github.com/marmos91/validay/pkg/command"
	"github.com/marmos91/validay/pkg/event"
	"github.com/marmos91/validay/pkg/logger"
	"github.com/marmos91/validay/pkg/manager"
)

// Name is the registry name of the manager.
const Name = "CommandHandlerManager"

// Manager decodes the id of every received packet, takes an instance of
// the bound command from the pool, executes it and puts it back.
//
// Unknown ids are ignored; policing them is the bad-packet defender's job.
type Manager struct {
	manager.Base

	commands *command.Registry
	pool     *command.Pool
	decode   command.IDDecoder
}

// New builds the dispatcher for commands, sharing pool with the server.
// A nil decoder falls back to command.LittleEndianID.
func New(commands *command.Registry, pool *command.Pool, decode command.IDDecoder) *Manager {
	if pool == nil {
		pool = command.NewPool()
	}
	if decode == nil {
		decode = command.LittleEndianID
	}
	return &Manager{
		Base:     manager.NewBase(Name),
		commands: commands,
		pool:     pool,
		decode:   decode,
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
	m.Logger().Log(logger.LevelInfo, "%s started", Name)
}

func (m *Manager) Stop() {
	if m.Deactivate() {
		m.Logger().Log(logger.LevelInfo, "%s stopped", Name)
	}
}

func (m *Manager) onDataReceived(e event.Event) {
	m.Dispatch(e.Client, e.Data)
}

// Dispatch runs the command bound to the id at the start of packet. It
// reports whether a command was executed to completion.
func (m *Manager) Dispatch(sender *client.Client, packet []byte) bool {
	id, err := m.decode(packet)
	if err != nil {
		m.Logger().Log(logger.LevelLow, "%s: ignoring packet from %v: %v", Name, sender, err)
		return false
	}

	if !m.commands.Contains(id) {
		return false
	}

	cmd, err := m.pool.GetCommand(id, m.commands)
	if err != nil {
		m.Logger().Log(logger.LevelLow, "%s: %v", Name, err)
		return false
	}

	if !m.execute(id, cmd, sender, packet) {
		// A panicking instance may hold broken state; it is not pooled.
		return false
	}

	if err := m.pool.ReturnCommandToPool(id, cmd, m.commands); err != nil {
		m.Logger().Log(logger.LevelWarning, "%s: %v", Name, err)
	}
	return true
}

func (m *Manager) execute(id uint16, cmd command.Command, sender *client.Client, packet []byte) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			m.Logger().Log(logger.LevelError, "%s: command %d panicked for %v: %v", Name, id, sender, r)
			ok = false
		}
	}()

	var managers *manager.Registry
	if host := m.Host(); host != nil {
		managers = host.Managers()
	}
	cmd.Execute(sender, managers, packet)
	return true
}
