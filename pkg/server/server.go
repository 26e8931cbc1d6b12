// Package server implements the connection engine: it accepts TCP
// connections, frames their byte streams into packets and publishes
// everything that happens as events for the registered managers.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/validay/pkg/client"
	"github.com/marmos91/validay/pkg/command"
	"github.com/marmos91/validay/pkg/event"
	"github.com/marmos91/validay/pkg/logger"
	"github.com/marmos91/validay/pkg/manager"
	"golang.org/x/net/netutil"
)

var (
	// ErrAlreadyRunning is returned by Start on a running server.
	ErrAlreadyRunning = errors.New("server already running")

	// ErrShutdownTimeout is returned by Stop when connection goroutines
	// outlive Settings.ShutdownTimeout.
	ErrShutdownTimeout = errors.New("server shutdown timeout")

	// ErrStillDraining is returned by Start while connection goroutines of
	// a timed-out Stop are still running.
	ErrStillDraining = errors.New("server still draining connections")
)

// Server is the root object of a Validay service.
//
// A Server owns the listener, the live clients, the manager registry, the
// command registry with its instance pool and the event bus. Managers and
// commands are registered before Start; the server can be started and
// stopped repeatedly.
//
// Each accepted client gets two goroutines: a reader that feeds the framing
// decoder and publishes DataReceived synchronously (so events of one client
// arrive in stream order), and a writer that drains the client's outbound
// queue and publishes DataSent.
//
// Shutdown flow:
//  1. Managers are stopped in registration order
//  2. The listener is closed (no new connections)
//  3. Every live client is disconnected
//  4. Stop waits for connection goroutines up to ShutdownTimeout
//
// All methods are safe for concurrent use.
type Server struct {
	settings Settings
	log      logger.Logger

	managers *manager.Registry
	commands *command.Registry
	pool     *command.Pool
	bus      *event.Bus

	// lifecycle serializes Start and Stop.
	lifecycle sync.Mutex
	running   atomic.Bool
	listener  net.Listener
	shutdown  chan struct{}

	// drained is closed once the goroutines of the last run have exited.
	drained chan struct{}

	addrMu sync.RWMutex
	addr   net.Addr

	// mu guards clients. Goroutines are added to conns under mu while
	// running, so Stop can Wait once it has taken its snapshot.
	mu      sync.Mutex
	clients map[uuid.UUID]*client.Client
	conns   sync.WaitGroup
}

// New creates a stopped server. It fails with an error wrapping
// ErrInvalidSettings when settings do not validate.
func New(settings Settings) (*Server, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	settings.Marker = append([]byte(nil), settings.Marker...)

	return &Server{
		settings: settings,
		log:      settings.Logger,
		managers: manager.NewRegistry(),
		commands: command.NewRegistry(),
		pool:     command.NewPool(),
		bus:      event.NewBus(),
		clients:  make(map[uuid.UUID]*client.Client),
	}, nil
}

// Start starts every registered manager in registration order, then binds
// the listener and begins accepting in a goroutine.
//
// When binding fails the failure is logged at LevelCritical, the managers
// are stopped again and the error is returned; the server stays stopped.
func (s *Server) Start() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.running.Load() {
		s.log.Log(logger.LevelWarning, "Server is already running on %v", s.listener.Addr())
		return ErrAlreadyRunning
	}
	if s.drained != nil {
		select {
		case <-s.drained:
		default:
			s.log.Log(logger.LevelWarning, "Server cannot start: connections of the previous run are still closing")
			return ErrStillDraining
		}
	}

	managers := s.managers.All()
	for _, m := range managers {
		m.Start()
	}

	addr := net.JoinHostPort(s.settings.IP, strconv.Itoa(s.settings.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.log.Log(logger.LevelCritical, "Failed to start server on %s: %v", addr, err)
		for _, m := range managers {
			m.Stop()
		}
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	if s.settings.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.settings.MaxConnections)
		s.log.Log(logger.LevelLow, "Connection limit: %d", s.settings.MaxConnections)
	}

	s.listener = ln
	s.shutdown = make(chan struct{})
	s.setAddr(ln.Addr())
	s.running.Store(true)

	s.conns.Add(1)
	go s.acceptLoop(ln, s.shutdown)

	s.log.Log(logger.LevelInfo, "Server listening on %s with %d manager(s) and %d command(s)",
		ln.Addr(), len(managers), s.commands.Len())
	return nil
}

// Stop stops the managers in registration order, closes the listener and
// disconnects every client. It waits for connection goroutines up to
// ShutdownTimeout and returns ErrShutdownTimeout if they do not finish;
// Start then fails with ErrStillDraining until they do.
//
// Stopping a stopped server logs a warning and does nothing else.
func (s *Server) Stop() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if !s.running.Load() {
		s.log.Log(logger.LevelWarning, "Server is not running")
		return nil
	}
	s.running.Store(false)

	for _, m := range s.managers.All() {
		m.Stop()
	}

	close(s.shutdown)
	if err := s.listener.Close(); err != nil {
		s.log.Log(logger.LevelLow, "Error closing listener: %v", err)
	}
	s.setAddr(nil)

	clients := s.GetAllConnections()
	s.log.Log(logger.LevelInfo, "Server stopping: disconnecting %d client(s)", len(clients))
	for _, c := range clients {
		s.disconnect(c)
	}

	done := make(chan struct{})
	s.drained = done
	go func() {
		s.conns.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Log(logger.LevelInfo, "Server stopped")
		return nil
	case <-time.After(s.settings.ShutdownTimeout):
		s.log.Log(logger.LevelWarning, "Server shutdown timeout exceeded after %v", s.settings.ShutdownTimeout)
		return fmt.Errorf("%w after %v", ErrShutdownTimeout, s.settings.ShutdownTimeout)
	}
}

// Run starts the server, blocks until ctx is cancelled and stops it.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	s.log.Log(logger.LevelInfo, "Shutdown signal received: %v", ctx.Err())
	return s.Stop()
}

func (s *Server) IsRunning() bool {
	return s.running.Load()
}

// RegisterManager initializes m with this server and the server logger and
// appends it to the manager registry. Names must be unique.
func (s *Server) RegisterManager(m manager.Manager) error {
	if m == nil {
		err := errors.New("manager is nil")
		s.log.Log(logger.LevelWarning, "Cannot register manager: %v", err)
		return err
	}

	if _, exists := s.managers.Get(m.Name()); exists {
		err := fmt.Errorf("%w: %s", manager.ErrDuplicateName, m.Name())
		s.log.Log(logger.LevelWarning, "Cannot register manager: %v", err)
		return err
	}

	if err := m.Init(s, s.log); err != nil {
		s.log.Log(logger.LevelWarning, "Cannot initialize manager %s: %v", m.Name(), err)
		return fmt.Errorf("init manager %s: %w", m.Name(), err)
	}

	if err := s.managers.Register(m); err != nil {
		s.log.Log(logger.LevelWarning, "Cannot register manager: %v", err)
		return err
	}

	s.log.Log(logger.LevelLow, "Registered manager %s", m.Name())
	return nil
}

// RegisterCommand binds id to the command type T on s.
func RegisterCommand[T command.Command](s *Server, id uint16, factory func() T) error {
	if err := command.Register(s.commands, id, factory); err != nil {
		s.log.Log(logger.LevelWarning, "Cannot register command %d: %v", id, err)
		return err
	}
	s.log.Log(logger.LevelLow, "Registered command %d", id)
	return nil
}

// SendToClient queues data for c. The write happens on c's writer
// goroutine; data must not be modified afterwards.
//
// Enqueue failures (nil or closed client, full queue) are logged and only
// returned when Settings.ReportSendErrors is set. A failed socket write
// disconnects the client.
func (s *Server) SendToClient(c *client.Client, data []byte) error {
	err := s.TrySendToClient(c, data)
	if err != nil && s.settings.ReportSendErrors {
		return err
	}
	return nil
}

// TrySendToClient queues data for c like SendToClient but always returns
// enqueue failures, whatever Settings.ReportSendErrors says.
func (s *Server) TrySendToClient(c *client.Client, data []byte) error {
	var err error
	if c == nil {
		err = errors.New("send to nil client")
	} else {
		err = c.Enqueue(data)
	}
	if err == nil {
		return nil
	}

	s.logSocketError("Cannot send %d byte(s) to %v: %v", len(data), c, err)
	return fmt.Errorf("send to %v: %w", c, err)
}

// DisconnectClient closes c, removes it from the live set and publishes
// ClientDisconnected. Only the call that removes the client publishes;
// later calls log at LevelLow and return client.ErrClosed.
func (s *Server) DisconnectClient(c *client.Client) error {
	if c == nil {
		return errors.New("disconnect nil client")
	}
	if !s.disconnect(c) {
		s.log.Log(logger.LevelLow, "Disconnect %v: %v", c, client.ErrClosed)
		return client.ErrClosed
	}
	return nil
}

// disconnect reports whether this call removed c.
func (s *Server) disconnect(c *client.Client) bool {
	s.mu.Lock()
	_, ok := s.clients[c.ID()]
	delete(s.clients, c.ID())
	remaining := len(s.clients)
	s.mu.Unlock()

	if err := c.Close(); err != nil && !errors.Is(err, client.ErrClosed) {
		s.logSocketError("Error closing connection to %v: %v", c, err)
	}
	if !ok {
		return false
	}

	s.log.Log(logger.LevelLow, "Client %v disconnected (active: %d)", c, remaining)
	s.bus.Publish(event.Event{Kind: event.ClientDisconnected, Client: c})
	return true
}

// GetAllConnections returns a snapshot of the live clients.
func (s *Server) GetAllConnections() []*client.Client {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*client.Client, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, c)
	}
	return out
}

// ConnectionCount returns the number of live clients.
func (s *Server) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) Subscribe(kind event.Kind, h event.Handler) event.Token {
	return s.bus.Subscribe(kind, h)
}

func (s *Server) Unsubscribe(kind event.Kind, token event.Token) bool {
	return s.bus.Unsubscribe(kind, token)
}

func (s *Server) OnDataReceived(h event.Handler) event.Token {
	return s.bus.Subscribe(event.DataReceived, h)
}

func (s *Server) OnDataSent(h event.Handler) event.Token {
	return s.bus.Subscribe(event.DataSent, h)
}

func (s *Server) OnClientConnected(h event.Handler) event.Token {
	return s.bus.Subscribe(event.ClientConnected, h)
}

func (s *Server) OnClientDisconnected(h event.Handler) event.Token {
	return s.bus.Subscribe(event.ClientDisconnected, h)
}

func (s *Server) Managers() *manager.Registry {
	return s.managers
}

func (s *Server) Commands() *command.Registry {
	return s.commands
}

func (s *Server) CommandPool() *command.Pool {
	return s.pool
}

// Settings returns a copy of the server settings.
func (s *Server) Settings() Settings {
	out := s.settings
	out.Marker = append([]byte(nil), s.settings.Marker...)
	return out
}

// Addr returns the listener address, or nil when the server is stopped.
func (s *Server) Addr() net.Addr {
	s.addrMu.RLock()
	defer s.addrMu.RUnlock()
	return s.addr
}

func (s *Server) setAddr(addr net.Addr) {
	s.addrMu.Lock()
	s.addr = addr
	s.addrMu.Unlock()
}

// logSocketError logs transient socket failures, at LevelLow when
// HideSocketErrors is set.
func (s *Server) logSocketError(format string, args ...any) {
	level := logger.LevelWarning
	if s.settings.HideSocketErrors {
		level = logger.LevelLow
	}
	s.log.Log(level, format, args...)
}
