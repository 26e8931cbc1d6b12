// Package testutil provides an in-memory manager host for manager tests.
package testutil

import (
	"net"
	"sync"
	"testing"

	"github.com/marmos91/validay/pkg/client"
	"github.com/marmos91/validay/pkg/event"
	"github.com/marmos91/validay/pkg/manager"
)

// Host implements manager.Host without sockets. Clients are net.Pipe
// pairs; sends are recorded instead of written.
type Host struct {
	Bus      *event.Bus
	Registry *manager.Registry

	mu           sync.Mutex
	clients      []*client.Client
	sent         map[*client.Client][][]byte
	disconnected []*client.Client
	sendErr      error
}

func NewHost() *Host {
	return &Host{
		Bus:      event.NewBus(),
		Registry: manager.NewRegistry(),
		sent:     make(map[*client.Client][][]byte),
	}
}

// NewClient adds a live client backed by a pipe and publishes
// ClientConnected.
func (h *Host) NewClient(t *testing.T) *client.Client {
	t.Helper()

	local, remote := net.Pipe()
	t.Cleanup(func() {
		_ = local.Close()
		_ = remote.Close()
	})

	c, err := client.New(local, 4)
	if err != nil {
		t.Fatalf("client.New: %v", err)
	}

	h.mu.Lock()
	h.clients = append(h.clients, c)
	h.mu.Unlock()

	h.Bus.Publish(event.Event{Kind: event.ClientConnected, Client: c})
	return c
}

// Receive publishes packet as received from c.
func (h *Host) Receive(c *client.Client, packet []byte) {
	h.Bus.Publish(event.Event{Kind: event.DataReceived, Client: c, Data: packet})
}

// FailSends makes every following SendToClient return err.
func (h *Host) FailSends(err error) {
	h.mu.Lock()
	h.sendErr = err
	h.mu.Unlock()
}

func (h *Host) Subscribe(kind event.Kind, fn event.Handler) event.Token {
	return h.Bus.Subscribe(kind, fn)
}

func (h *Host) Unsubscribe(kind event.Kind, token event.Token) bool {
	return h.Bus.Unsubscribe(kind, token)
}

func (h *Host) TrySendToClient(c *client.Client, data []byte) error {
	return h.SendToClient(c, data)
}

func (h *Host) SendToClient(c *client.Client, data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sendErr != nil {
		return h.sendErr
	}
	if c.IsClosed() {
		return client.ErrClosed
	}
	h.sent[c] = append(h.sent[c], data)
	return nil
}

func (h *Host) DisconnectClient(c *client.Client) error {
	h.mu.Lock()
	idx := -1
	for i, live := range h.clients {
		if live == c {
			idx = i
			break
		}
	}
	if idx >= 0 {
		h.clients = append(h.clients[:idx], h.clients[idx+1:]...)
		h.disconnected = append(h.disconnected, c)
	}
	h.mu.Unlock()

	_ = c.Close()
	if idx < 0 {
		return client.ErrClosed
	}
	h.Bus.Publish(event.Event{Kind: event.ClientDisconnected, Client: c})
	return nil
}

func (h *Host) GetAllConnections() []*client.Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*client.Client, len(h.clients))
	copy(out, h.clients)
	return out
}

func (h *Host) Managers() *manager.Registry {
	return h.Registry
}

func (h *Host) IsRunning() bool {
	return true
}

// Sent returns what was sent to c.
func (h *Host) Sent(c *client.Client) [][]byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([][]byte, len(h.sent[c]))
	copy(out, h.sent[c])
	return out
}

// Disconnected returns the clients removed so far, in order.
func (h *Host) Disconnected() []*client.Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*client.Client, len(h.disconnected))
	copy(out, h.disconnected)
	return out
}

// IsDisconnected reports whether c was removed.
func (h *Host) IsDisconnected(c *client.Client) bool {
	for _, d := range h.Disconnected() {
		if d == c {
			return true
		}
	}
	return false
}
