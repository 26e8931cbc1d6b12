// Package sender sends application commands to clients.
package sender

import (
	"errors"
	"fmt"

	"github.com/marmos91/validay/pkg/client"
	"github.com/marmos91/validay/pkg/command"
	"github.com/marmos91/validay/pkg/logger"
	"github.com/marmos91/validay/pkg/manager"
	"github.com/marmos91/validay/pkg/protocol/framing"
)

const Name = "CommandSenderManager"

// ClientCommand is an outbound message that knows its own wire form.
type ClientCommand interface {
	RawData() ([]byte, error)
}

// Manager sends raw commands and framed packets through the host. It does
// not subscribe to any event.
type Manager struct {
	manager.Base

	marker []byte
	encode command.IDEncoder
}

// New builds a sender framing packets with marker and writing ids with
// encode. A nil encode writes little-endian ids.
func New(marker []byte, encode command.IDEncoder) *Manager {
	if encode == nil {
		_, encode, _ = command.ByteOrder("little")
	}
	return &Manager{
		Base:   manager.NewBase(Name),
		marker: append([]byte(nil), marker...),
		encode: encode,
	}
}

func (m *Manager) Start() {
	if m.Activate() {
		m.Logger().Log(logger.LevelInfo, "%s started", Name)
	}
}

func (m *Manager) Stop() {
	if m.Deactivate() {
		m.Logger().Log(logger.LevelInfo, "%s stopped", Name)
	}
}

// SendData sends cmd.RawData() to target as is.
func (m *Manager) SendData(target *client.Client, cmd ClientCommand) error {
	if cmd == nil {
		return errors.New("sender: nil command")
	}
	data, err := cmd.RawData()
	if err != nil {
		return fmt.Errorf("sender: encode command: %w", err)
	}
	return m.send(target, data)
}

// SendFramed sends marker | length | id | body to target.
func (m *Manager) SendFramed(target *client.Client, id uint16, body []byte) error {
	frame, err := m.Frame(id, body)
	if err != nil {
		return err
	}
	return m.send(target, frame)
}

// Frame builds the frame SendFramed writes.
func (m *Manager) Frame(id uint16, body []byte) ([]byte, error) {
	if len(m.marker) == 0 {
		return nil, errors.New("sender: no marker configured")
	}
	payload := m.encode(make([]byte, 0, command.IDSize+len(body)), id)
	payload = append(payload, body...)
	return framing.Encode(m.marker, payload), nil
}

// Broadcast sends cmd to every live client. It returns how many sends
// were accepted and the first failure, if any.
func (m *Manager) Broadcast(cmd ClientCommand) (int, error) {
	host := m.Host()
	if host == nil {
		return 0, errors.New("sender: server is not set")
	}
	if cmd == nil {
		return 0, errors.New("sender: nil command")
	}
	data, err := cmd.RawData()
	if err != nil {
		return 0, fmt.Errorf("sender: encode command: %w", err)
	}

	sent := 0
	var firstErr error
	for _, c := range host.GetAllConnections() {
		if err := host.SendToClient(c, data); err != nil {
			m.Logger().Log(logger.LevelLow, "%s: broadcast to %v failed: %v", Name, c, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("sender: broadcast to %v: %w", c, err)
			}
			continue
		}
		sent++
	}
	return sent, firstErr
}

func (m *Manager) send(target *client.Client, data []byte) error {
	host := m.Host()
	if host == nil {
		return errors.New("sender: server is not set")
	}
	if target == nil {
		return errors.New("sender: nil target")
	}
	return host.SendToClient(target, data)
}
