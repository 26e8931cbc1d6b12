package framework

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/marmos91/validay/pkg/command"
	"github.com/marmos91/validay/pkg/protocol/framing"
)

// TestClient speaks the framed protocol to a TestServer.
type TestClient struct {
	t       testing.TB
	conn    net.Conn
	marker  []byte
	decode  command.IDDecoder
	encode  command.IDEncoder
	decoder *framing.Decoder
	pending [][]byte
}

// Dial connects to ts using the server's marker and id byte order.
func Dial(t testing.TB, ts *TestServer) *TestClient {
	t.Helper()

	conn, err := net.DialTimeout("tcp", ts.Addr(), 2*time.Second)
	if err != nil {
		t.Fatalf("Failed to connect to %s: %v", ts.Addr(), err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	settings := ts.Server().Settings()
	dec, err := framing.NewDecoder(settings.Marker, 1024, settings.MaxPacketSize)
	if err != nil {
		t.Fatalf("Failed to create decoder: %v", err)
	}

	decode, encode, err := command.ByteOrder(ts.Config().Server.ByteOrder)
	if err != nil {
		t.Fatalf("Invalid byte order: %v", err)
	}

	return &TestClient{t: t, conn: conn, marker: settings.Marker, decode: decode, encode: encode, decoder: dec}
}

// Send writes one framed packet carrying id and body.
func (c *TestClient) Send(id uint16, body []byte) {
	c.t.Helper()
	if _, err := c.conn.Write(c.Frame(id, body)); err != nil {
		c.t.Fatalf("Failed to send packet %d: %v", id, err)
	}
}

// Frame builds the bytes Send writes.
func (c *TestClient) Frame(id uint16, body []byte) []byte {
	payload := c.encode(nil, id)
	payload = append(payload, body...)
	return framing.Encode(c.marker, payload)
}

// WriteRaw writes data unframed.
func (c *TestClient) WriteRaw(data []byte) {
	c.t.Helper()
	if _, err := c.conn.Write(data); err != nil {
		c.t.Fatalf("Failed to write: %v", err)
	}
}

// Receive returns the id and body of the next framed packet. Unframed
// heartbeat probes are skipped by the decoder.
func (c *TestClient) Receive(timeout time.Duration) (uint16, []byte, error) {
	deadline := time.Now().Add(timeout)
	buf := make([]byte, 4096)

	for {
		for len(c.pending) > 0 {
			p := c.pending[0]
			c.pending = c.pending[1:]
			id, err := c.decode(p)
			if err != nil {
				continue
			}
			return id, p[command.IDSize:], nil
		}

		_ = c.conn.SetReadDeadline(deadline)
		n, err := c.conn.Read(buf)
		if err != nil {
			return 0, nil, err
		}
		if err := c.decoder.Feed(buf[:n], func(p []byte) { c.pending = append(c.pending, p) }); err != nil {
			return 0, nil, err
		}
	}
}

// WaitClosed reports whether the server closed the connection within timeout.
func (c *TestClient) WaitClosed(timeout time.Duration) bool {
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	buf := make([]byte, 256)
	for {
		if _, err := c.conn.Read(buf); err != nil {
			var netErr net.Error
			return !(errors.As(err, &netErr) && netErr.Timeout())
		}
	}
}

// Close closes the connection.
func (c *TestClient) Close() {
	_ = c.conn.Close()
}
