package client

import (
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RemoteEndpoint(t *testing.T) {
	server, peer := net.Pipe()
	defer peer.Close()

	c, err := New(server, 4)
	require.NoError(t, err)
	defer c.Close()

	assert.NotEqual(t, [16]byte{}, [16]byte(c.ID()))
	assert.Equal(t, "pipe", c.IP())
	assert.Equal(t, 0, c.Port())
	assert.False(t, c.ConnectedAt().IsZero())
}

func TestNew_NilConn(t *testing.T) {
	_, err := New(nil, 1)
	assert.Error(t, err)
}

func TestDefaultFactory_TCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	dialed, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer dialed.Close()

	conn := <-accepted
	c, err := DefaultFactory(conn)
	require.NoError(t, err)
	defer c.Close()

	local := dialed.LocalAddr().(*net.TCPAddr)
	assert.Equal(t, "127.0.0.1", c.IP())
	assert.Equal(t, local.Port, c.Port())
	assert.Equal(t, local.String(), c.String())
}

func TestEnqueue_QueueFull(t *testing.T) {
	server, peer := net.Pipe()
	defer peer.Close()

	c, err := New(server, 1)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Enqueue([]byte{1}))
	err = c.Enqueue([]byte{2})
	assert.True(t, errors.Is(err, ErrQueueFull))

	assert.Equal(t, []byte{1}, <-c.Outbound())
}

func TestClose_Idempotent(t *testing.T) {
	server, peer := net.Pipe()
	defer peer.Close()

	c, err := New(server, 1)
	require.NoError(t, err)

	assert.NoError(t, c.Close())
	assert.True(t, c.IsClosed())
	assert.ErrorIs(t, c.Close(), ErrClosed)
	assert.ErrorIs(t, c.Enqueue([]byte{1}), ErrClosed)

	select {
	case <-c.Done():
	default:
		t.Fatal("done channel should be closed")
	}
}

func TestValues(t *testing.T) {
	server, peer := net.Pipe()
	defer peer.Close()

	c, err := New(server, 1)
	require.NoError(t, err)
	defer c.Close()

	c.Set("user", "alice")
	v, ok := c.Get("user")
	require.True(t, ok)
	assert.Equal(t, "alice", v)

	c.Delete("user")
	_, ok = c.Get("user")
	assert.False(t, ok)
}
