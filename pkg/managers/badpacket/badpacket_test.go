package badpacket

import (
	"testing"
	"time"

	"github.com/marmos91/validay/internal/testutil"
	"github.com/marmos91/validay/pkg/client"
	"github.com/marmos91/validay/pkg/command"
	"github.com/marmos91/validay/pkg/logger"
	"github.com/marmos91/validay/pkg/manager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopCommand struct{}

func (noopCommand) Execute(*client.Client, *manager.Registry, []byte) {}

func setup(t *testing.T, cfg Config) (*Manager, *testutil.Host) {
	t.Helper()

	commands := command.NewRegistry()
	require.NoError(t, command.Register(commands, 1, func() noopCommand { return noopCommand{} }))

	host := testutil.NewHost()
	m := New(commands, command.LittleEndianID, cfg)
	require.NoError(t, m.Init(host, logger.Nop()))
	m.Start()
	t.Cleanup(m.Stop)
	return m, host
}

func TestDisconnectsAtThreshold(t *testing.T) {
	m, host := setup(t, Config{Threshold: 3})
	c := host.NewClient(t)
	key := c.ID().String()

	host.Receive(c, []byte{0x07, 0x00})
	host.Receive(c, []byte{0x07})
	assert.Equal(t, 2, m.Count(key))
	assert.False(t, host.IsDisconnected(c))

	host.Receive(c, []byte{0x08, 0x00})
	assert.True(t, host.IsDisconnected(c))
	assert.Zero(t, m.Count(key))
}

func TestKnownCommandsAreNotCounted(t *testing.T) {
	m, host := setup(t, Config{Threshold: 2})
	c := host.NewClient(t)

	for i := 0; i < 10; i++ {
		host.Receive(c, []byte{0x01, 0x00, 0xff})
	}
	assert.Zero(t, m.Count(c.ID().String()))
	assert.False(t, host.IsDisconnected(c))
}

func TestCountersArePerClient(t *testing.T) {
	m, host := setup(t, Config{Threshold: 2})
	a := host.NewClient(t)
	b := host.NewClient(t)

	host.Receive(a, []byte{0x09, 0x09})
	host.Receive(b, []byte{0x09, 0x09})

	assert.Equal(t, 1, m.Count(a.ID().String()))
	assert.Equal(t, 1, m.Count(b.ID().String()))
	assert.Empty(t, host.Disconnected())
}

func TestDefaultThreshold(t *testing.T) {
	_, host := setup(t, Config{})
	c := host.NewClient(t)

	for i := 0; i < DefaultThreshold-1; i++ {
		host.Receive(c, []byte{0x09, 0x09})
	}
	assert.False(t, host.IsDisconnected(c))

	host.Receive(c, []byte{0x09, 0x09})
	assert.True(t, host.IsDisconnected(c))
}

func TestCounterDroppedOnDisconnect(t *testing.T) {
	m, host := setup(t, Config{Threshold: 5})
	c := host.NewClient(t)

	host.Receive(c, []byte{0x09, 0x09})
	require.Equal(t, 1, m.Count(c.ID().String()))

	require.NoError(t, host.DisconnectClient(c))
	assert.Zero(t, m.Count(c.ID().String()))
}

func TestWindowExpiresCounts(t *testing.T) {
	m, host := setup(t, Config{Threshold: 2, Window: 50 * time.Millisecond})
	c := host.NewClient(t)

	host.Receive(c, []byte{0x09, 0x09})
	time.Sleep(120 * time.Millisecond)
	host.Receive(c, []byte{0x09, 0x09})

	assert.Equal(t, 1, m.Count(c.ID().String()))
	assert.False(t, host.IsDisconnected(c))
}

func TestStopUnsubscribes(t *testing.T) {
	m, host := setup(t, Config{Threshold: 1})
	m.Stop()

	c := host.NewClient(t)
	host.Receive(c, []byte{0x09, 0x09})
	assert.False(t, host.IsDisconnected(c))
}
