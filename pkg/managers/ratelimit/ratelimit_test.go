package ratelimit

import (
	"testing"

	"github.com/marmos91/validay/internal/testutil"
	"github.com/marmos91/validay/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisconnectsWhenBurstExhausted(t *testing.T) {
	host := testutil.NewHost()
	m := New(Config{PacketsPerSecond: 1, Burst: 3})
	require.NoError(t, m.Init(host, logger.Nop()))
	m.Start()
	defer m.Stop()

	fast := host.NewClient(t)
	calm := host.NewClient(t)

	for i := 0; i < 3; i++ {
		host.Receive(fast, []byte{1, 0})
	}
	assert.False(t, host.IsDisconnected(fast))

	host.Receive(calm, []byte{1, 0})
	host.Receive(fast, []byte{1, 0})

	assert.True(t, host.IsDisconnected(fast))
	assert.False(t, host.IsDisconnected(calm))

	// The disconnect drops the limiter of the removed client.
	assert.Equal(t, 1, m.Tracked())
}

func TestDefaults(t *testing.T) {
	m := New(Config{})
	assert.Equal(t, uint(DefaultPacketsPerSecond), m.cfg.PacketsPerSecond)
	assert.Equal(t, uint(DefaultBurst), m.cfg.Burst)
}

func TestStopResets(t *testing.T) {
	host := testutil.NewHost()
	m := New(Config{PacketsPerSecond: 1, Burst: 1})
	require.NoError(t, m.Init(host, logger.Nop()))
	m.Start()

	c := host.NewClient(t)
	host.Receive(c, []byte{1, 0})
	assert.Equal(t, 1, m.Tracked())

	m.Stop()
	assert.Zero(t, m.Tracked())

	host.Receive(c, []byte{1, 0})
	assert.False(t, host.IsDisconnected(c))
}
