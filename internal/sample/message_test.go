package sample

import (
	"testing"

	"github.com/marmos91/validay/internal/testutil"
	"github.com/marmos91/validay/pkg/logger"
	"github.com/marmos91/validay/pkg/managers/sender"
	"github.com/marmos91/validay/pkg/protocol/framing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var marker = []byte{0x56, 0x44}

func TestSimpleMessageCommand_Echoes(t *testing.T) {
	host := testutil.NewHost()
	out := sender.New(marker, nil)
	require.NoError(t, out.Init(host, logger.Nop()))
	require.NoError(t, host.Registry.Register(out))

	c := host.NewClient(t)
	NewSimpleMessageCommand().Execute(c, host.Registry, []byte{0x01, 0x00, 'h', 'e', 'y'})

	sent := host.Sent(c)
	require.Len(t, sent, 1)

	var packets [][]byte
	dec, err := framing.NewDecoder(marker, 0, framing.DefaultMaxPacketSize)
	require.NoError(t, err)
	require.NoError(t, dec.Feed(sent[0], func(p []byte) { packets = append(packets, p) }))
	require.Len(t, packets, 1)
	assert.Equal(t, []byte{0x01, 0x00, 'h', 'e', 'y'}, packets[0])
}

func TestSimpleMessageCommand_Ignores(t *testing.T) {
	host := testutil.NewHost()
	out := sender.New(marker, nil)
	require.NoError(t, out.Init(host, logger.Nop()))
	require.NoError(t, host.Registry.Register(out))
	c := host.NewClient(t)

	cmd := NewSimpleMessageCommand()
	cmd.Execute(c, host.Registry, []byte{0x01})
	cmd.Execute(c, host.Registry, []byte{0x01, 0x00, 0xff, 0xfe})

	assert.Empty(t, host.Sent(c))
}

func TestSimpleMessageCommand_NoSender(t *testing.T) {
	host := testutil.NewHost()
	c := host.NewClient(t)

	assert.NotPanics(t, func() {
		NewSimpleMessageCommand().Execute(c, host.Registry, []byte{0x01, 0x00, 'x'})
	})
	assert.Empty(t, host.Sent(c))
}
