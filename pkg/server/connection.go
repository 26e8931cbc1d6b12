package server

import (
	"errors"
	"io"
	"net"
	"time"

	"github.com/marmos91/validay/pkg/client"
	"github.com/marmos91/validay/pkg/event"
	"github.com/marmos91/validay/pkg/logger"
	"github.com/marmos91/validay/pkg/protocol/framing"
)

// acceptBackoff is the pause after an unexpected Accept error.
const acceptBackoff = 50 * time.Millisecond

func (s *Server) acceptLoop(ln net.Listener, shutdown <-chan struct{}) {
	defer s.conns.Done()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-shutdown:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}

			s.logSocketError("Error accepting connection: %v", err)
			time.Sleep(acceptBackoff)
			continue
		}

		s.accept(conn)
	}
}

func (s *Server) newClient(conn net.Conn) (*client.Client, error) {
	if s.settings.ClientFactory != nil {
		return s.settings.ClientFactory(conn)
	}
	return client.New(conn, s.settings.SendQueueSize)
}

// accept registers the client, publishes ClientConnected and spawns the
// reader and writer. It runs on the accept goroutine.
func (s *Server) accept(conn net.Conn) {
	c, err := s.newClient(conn)
	if err != nil {
		s.log.Log(logger.LevelWarning, "Rejected connection from %s: %v", conn.RemoteAddr(), err)
		_ = conn.Close()
		return
	}

	s.mu.Lock()
	if !s.running.Load() {
		s.mu.Unlock()
		s.log.Log(logger.LevelLow, "Server stopping, closing connection from %v", c)
		_ = c.Close()
		return
	}
	s.clients[c.ID()] = c
	active := len(s.clients)
	s.conns.Add(2)
	s.mu.Unlock()

	s.log.Log(logger.LevelLow, "Connection accepted from %v (active: %d)", c, active)
	s.bus.Publish(event.Event{Kind: event.ClientConnected, Client: c})

	go s.writeLoop(c)
	go s.readLoop(c)
}

// readLoop reads from c until it fails or is closed, feeding every chunk
// to the framing decoder. DataReceived is published on this goroutine, so
// the next read is only issued once the previous chunk is fully handled.
func (s *Server) readLoop(c *client.Client) {
	defer s.conns.Done()
	defer func() {
		if r := recover(); r != nil {
			s.log.Log(logger.LevelError, "Panic in connection handler for %v: %v", c, r)
		}
		s.disconnect(c)
	}()

	decoder, err := framing.NewDecoder(s.settings.Marker, s.settings.MaxDepth, s.settings.MaxPacketSize)
	if err != nil {
		s.log.Log(logger.LevelError, "Cannot create decoder for %v: %v", c, err)
		return
	}

	emit := func(packet []byte) {
		if c.IsClosed() {
			return
		}
		s.bus.Publish(event.Event{Kind: event.DataReceived, Client: c, Data: packet})
	}

	conn := c.Conn()
	buf := make([]byte, s.settings.BufferSize)

	for {
		if s.settings.ReadTimeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(s.settings.ReadTimeout)); err != nil {
				s.logSocketError("Failed to set read deadline for %v: %v", c, err)
				return
			}
		}

		n, err := conn.Read(buf)
		if n > 0 {
			if ferr := decoder.Feed(buf[:n], emit); ferr != nil {
				s.log.Log(logger.LevelWarning, "Protocol error from %v, disconnecting: %v", c, ferr)
				return
			}
			if c.IsClosed() {
				return
			}
		}

		if err != nil {
			switch {
			case c.IsClosed(), errors.Is(err, net.ErrClosed):
			case errors.Is(err, io.EOF):
				s.log.Log(logger.LevelLow, "Connection from %v closed by client", c)
			default:
				var netErr net.Error
				if errors.As(err, &netErr) && netErr.Timeout() {
					s.log.Log(logger.LevelLow, "Connection from %v timed out: %v", c, err)
				} else {
					s.logSocketError("Receive from %v failed: %v", c, err)
				}
			}
			return
		}

		if n == 0 {
			s.log.Log(logger.LevelLow, "Zero-length read from %v", c)
			return
		}
	}
}

// writeLoop drains c's outbound queue until c is closed. A failed write
// disconnects the client.
func (s *Server) writeLoop(c *client.Client) {
	defer s.conns.Done()

	conn := c.Conn()
	for {
		select {
		case <-c.Done():
			return
		case data := <-c.Outbound():
			if s.settings.WriteTimeout > 0 {
				if err := conn.SetWriteDeadline(time.Now().Add(s.settings.WriteTimeout)); err != nil {
					s.logSocketError("Failed to set write deadline for %v: %v", c, err)
				}
			}

			if _, err := conn.Write(data); err != nil {
				if !c.IsClosed() {
					s.logSocketError("Send to %v failed: %v", c, err)
					s.disconnect(c)
				}
				return
			}

			s.bus.Publish(event.Event{Kind: event.DataSent, Client: c, Data: data})
		}
	}
}
