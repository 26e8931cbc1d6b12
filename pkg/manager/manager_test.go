package manager

import (
	"bytes"
	"testing"

	"github.com/marmos91/validay/pkg/client"
	"github.com/marmos91/validay/pkg/event"
	"github.com/marmos91/validay/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHost implements Host on top of a real event bus.
type fakeHost struct {
	bus      *event.Bus
	registry *Registry
}

func newFakeHost() *fakeHost {
	return &fakeHost{bus: event.NewBus(), registry: NewRegistry()}
}

func (h *fakeHost) Subscribe(kind event.Kind, fn event.Handler) event.Token {
	return h.bus.Subscribe(kind, fn)
}
func (h *fakeHost) Unsubscribe(kind event.Kind, token event.Token) bool {
	return h.bus.Unsubscribe(kind, token)
}
func (h *fakeHost) SendToClient(*client.Client, []byte) error    { return nil }
func (h *fakeHost) TrySendToClient(*client.Client, []byte) error { return nil }
func (h *fakeHost) DisconnectClient(*client.Client) error        { return nil }
func (h *fakeHost) GetAllConnections() []*client.Client          { return nil }
func (h *fakeHost) Managers() *Registry                          { return h.registry }
func (h *fakeHost) IsRunning() bool                              { return true }

type countingManager struct {
	Base
	received int
}

func newCountingManager(name string) *countingManager {
	return &countingManager{Base: NewBase(name)}
}

func (m *countingManager) Start() {
	if !m.Activate() {
		return
	}
	m.Subscribe(event.DataReceived, func(event.Event) { m.received++ })
	m.Subscribe(event.ClientConnected, func(event.Event) {})
}

func (m *countingManager) Stop() {
	m.Deactivate()
}

func TestRegistry_DuplicateName(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(newCountingManager("dup")))
	err := r.Register(newCountingManager("dup"))

	assert.ErrorIs(t, err, ErrDuplicateName)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_KeepsOrder(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"c", "a", "b"} {
		require.NoError(t, r.Register(newCountingManager(name)))
	}

	var names []string
	for _, m := range r.All() {
		names = append(names, m.Name())
	}
	assert.Equal(t, []string{"c", "a", "b"}, names)

	m, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, "a", m.Name())

	_, ok = r.Get("missing")
	assert.False(t, ok)

	assert.Error(t, r.Register(nil))
}

func TestFind(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newCountingManager("first")))

	found, ok := Find[*countingManager](r)
	require.True(t, ok)
	assert.Equal(t, "first", found.Name())

	_, ok = Find[*countingManager](nil)
	assert.False(t, ok)
}

func TestBase_StartWithoutHostIsNoop(t *testing.T) {
	var buf bytes.Buffer
	prev := logger.Default()
	logger.SetDefault(logger.NewWithWriter(&buf, logger.LevelLow))
	defer logger.SetDefault(prev)

	m := newCountingManager("orphan")
	m.Start()

	assert.False(t, m.IsActive())
	assert.Contains(t, buf.String(), "orphan: server is not set")
}

func TestBase_InitRejectsNil(t *testing.T) {
	m := newCountingManager("m")
	assert.Error(t, m.Init(nil, logger.Nop()))
	assert.Error(t, m.Init(newFakeHost(), nil))
}

func TestBase_StartStopSubscriptions(t *testing.T) {
	host := newFakeHost()
	m := newCountingManager("counter")
	require.NoError(t, m.Init(host, logger.Nop()))

	m.Start()
	assert.True(t, m.IsActive())
	assert.Equal(t, 1, host.bus.Count(event.DataReceived))
	assert.Equal(t, 1, host.bus.Count(event.ClientConnected))

	// A second Start must not double-subscribe.
	m.Start()
	assert.Equal(t, 1, host.bus.Count(event.DataReceived))

	host.bus.Publish(event.Event{Kind: event.DataReceived})
	assert.Equal(t, 1, m.received)

	m.Stop()
	assert.False(t, m.IsActive())
	assert.Zero(t, host.bus.Count(event.DataReceived))
	assert.Zero(t, host.bus.Count(event.ClientConnected))

	host.bus.Publish(event.Event{Kind: event.DataReceived})
	assert.Equal(t, 1, m.received)

	// Stop on a stopped manager is harmless.
	m.Stop()
}
