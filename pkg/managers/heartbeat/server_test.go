package heartbeat

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/marmos91/validay/pkg/client"
	"github.com/marmos91/validay/pkg/logger"
	"github.com/marmos91/validay/pkg/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A peer that stops reading fills its queue; with default settings the
// server swallows that error, but the heartbeat must still drop it.
func TestCheck_DropsStalledClientOnServer(t *testing.T) {
	settings := server.DefaultSettings()
	settings.Port = 0
	settings.SendQueueSize = 1
	settings.Logger = logger.Nop()
	require.False(t, settings.ReportSendErrors)

	srv, err := server.New(settings)
	require.NoError(t, err)
	hb := New(time.Hour)
	require.NoError(t, srv.RegisterManager(hb))
	require.NoError(t, srv.Start())
	t.Cleanup(func() { _ = srv.Stop() })

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool { return srv.ConnectionCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	c := srv.GetAllConnections()[0]

	// The peer never reads, so the writer blocks on this write.
	require.NoError(t, srv.TrySendToClient(c, make([]byte, 64<<20)))
	require.Eventually(t, func() bool {
		return errors.Is(srv.TrySendToClient(c, []byte{1}), client.ErrQueueFull)
	}, 2*time.Second, 10*time.Millisecond)

	assert.NoError(t, srv.SendToClient(c, []byte{2}), "default settings swallow enqueue errors")

	assert.Equal(t, 1, hb.Check())
	assert.Zero(t, srv.ConnectionCount())
	assert.True(t, c.IsClosed())
}
