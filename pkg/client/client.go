// Package client holds the per-connection state owned by the server's
// client registry.
package client

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrClosed is returned for I/O on a client that has been disconnected.
	ErrClosed = errors.New("client connection closed")

	// ErrQueueFull is returned when the outbound queue has no room left.
	ErrQueueFull = errors.New("client send queue full")
)

// DefaultQueueSize is the outbound queue length used by DefaultFactory.
const DefaultQueueSize = 64

// Client is one accepted connection.
//
// A Client is created on accept and stays immutable apart from its closed
// state. After Close, the value may still be used for logging but every
// send fails with ErrClosed.
type Client struct {
	id          uuid.UUID
	conn        net.Conn
	ip          string
	port        int
	connectedAt time.Time

	outbound  chan []byte
	done      chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool

	values sync.Map
}

// Factory builds a Client for an accepted connection. Returning an error
// rejects the connection; the server closes it.
type Factory func(conn net.Conn) (*Client, error)

// DefaultFactory wraps the connection with a queue of DefaultQueueSize.
func DefaultFactory(conn net.Conn) (*Client, error) {
	return New(conn, DefaultQueueSize)
}

// New wraps conn. queueSize bounds the number of pending outbound writes.
func New(conn net.Conn, queueSize int) (*Client, error) {
	if conn == nil {
		return nil, errors.New("client: nil connection")
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	ip, port := splitAddr(conn.RemoteAddr())

	return &Client{
		id:          uuid.New(),
		conn:        conn,
		ip:          ip,
		port:        port,
		connectedAt: time.Now(),
		outbound:    make(chan []byte, queueSize),
		done:        make(chan struct{}),
	}, nil
}

func splitAddr(addr net.Addr) (string, int) {
	if addr == nil {
		return "", 0
	}
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.IP.String(), tcp.Port
	}

	host, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String(), 0
	}
	port, _ := strconv.Atoi(portStr)
	return host, port
}

func (c *Client) ID() uuid.UUID {
	return c.id
}

func (c *Client) Conn() net.Conn {
	return c.conn
}

func (c *Client) IP() string {
	return c.ip
}

func (c *Client) Port() int {
	return c.port
}

func (c *Client) ConnectedAt() time.Time {
	return c.connectedAt
}

// String returns "ip:port", the form used in log lines.
func (c *Client) String() string {
	return net.JoinHostPort(c.ip, strconv.Itoa(c.port))
}

// Enqueue schedules data for the writer goroutine without blocking.
func (c *Client) Enqueue(data []byte) (err error) {
	if c.closed.Load() {
		return ErrClosed
	}

	// outbound is never closed; done signals shutdown.
	select {
	case <-c.done:
		return ErrClosed
	case c.outbound <- data:
		return nil
	default:
		return fmt.Errorf("%w (%d pending)", ErrQueueFull, len(c.outbound))
	}
}

// Outbound is the queue drained by the writer goroutine.
func (c *Client) Outbound() <-chan []byte {
	return c.outbound
}

// Done is closed when the client is closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close closes the connection. Only the first call does any work; later
// calls return ErrClosed.
func (c *Client) Close() error {
	err := ErrClosed
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

func (c *Client) IsClosed() bool {
	return c.closed.Load()
}

// Set stores an application value on the client.
func (c *Client) Set(key, value any) {
	c.values.Store(key, value)
}

// Get returns a value stored with Set.
func (c *Client) Get(key any) (any, bool) {
	return c.values.Load(key)
}

// Delete removes a value stored with Set.
func (c *Client) Delete(key any) {
	c.values.Delete(key)
}
