package framework

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/marmos91/validay/internal/sample"
	"github.com/marmos91/validay/pkg/config"
	"github.com/marmos91/validay/pkg/logger"
	"github.com/marmos91/validay/pkg/server"
	"github.com/marmos91/validay/pkg/session"
)

// StoreType represents the session store backing the test server.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeBadger StoreType = "badger"
)

// TestServerConfig holds configuration for the test server.
// This is distinct from pkg/config.ServerConfig (application-level server settings).
type TestServerConfig struct {
	SessionStore StoreType
	LogLevel     string

	// Mutate adjusts the generated configuration before the server is built.
	Mutate func(cfg *config.Config)
}

// TestServer wraps a fully wired Validay server for testing.
type TestServer struct {
	t      testing.TB
	config TestServerConfig
	cfg    *config.Config
	server *server.Server
	store  session.Store

	mu      sync.Mutex
	started bool
}

// NewTestServer creates a new test server instance listening on a free
// loopback port.
func NewTestServer(t testing.TB, tsCfg TestServerConfig) *TestServer {
	t.Helper()

	if tsCfg.SessionStore == "" {
		tsCfg.SessionStore = StoreTypeMemory
	}
	if tsCfg.LogLevel == "" {
		tsCfg.LogLevel = "ERROR" // Keep tests quiet by default
	}

	cfg := config.GetDefaultConfig()
	cfg.Logging.Level = tsCfg.LogLevel
	cfg.Logging.Output = "stderr"
	cfg.Server.Port = 0
	cfg.Sessions.Enabled = true
	cfg.Sessions.Store.Type = string(tsCfg.SessionStore)
	cfg.Sessions.Store.Badger["db_path"] = t.TempDir()
	if tsCfg.Mutate != nil {
		tsCfg.Mutate(cfg)
	}

	return &TestServer{t: t, config: tsCfg, cfg: cfg}
}

// Start builds the server the way cmd/validay does and starts it.
func (ts *TestServer) Start() error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.started {
		return fmt.Errorf("server already started")
	}
	ts.t.Helper()

	if err := config.Validate(ts.cfg); err != nil {
		return fmt.Errorf("invalid test configuration: %w", err)
	}

	log, err := config.BuildLogger(&ts.cfg.Logging)
	if err != nil {
		return err
	}
	logger.SetDefault(log)

	settings, err := config.BuildSettings(ts.cfg, log)
	if err != nil {
		return err
	}
	srv, err := server.New(settings)
	if err != nil {
		return err
	}
	if err := server.RegisterCommand(srv, sample.SimpleMessageID, sample.NewSimpleMessageCommand); err != nil {
		return err
	}

	ts.store, err = config.CreateSessionStore(context.Background(), &ts.cfg.Sessions.Store)
	if err != nil {
		return err
	}

	managers, err := config.CreateManagers(ts.cfg, config.ManagerDeps{
		Commands:     srv.Commands(),
		Pool:         srv.CommandPool(),
		SessionStore: ts.store,
	})
	if err != nil {
		_ = ts.store.Close()
		return err
	}
	for _, m := range managers {
		if err := srv.RegisterManager(m); err != nil {
			_ = ts.store.Close()
			return err
		}
	}

	if err := srv.Start(); err != nil {
		_ = ts.store.Close()
		return fmt.Errorf("server failed to start: %w", err)
	}

	ts.server = srv
	ts.started = true
	ts.t.Logf("Server started on %s", srv.Addr())
	return nil
}

// Stop stops the server and closes the session store.
func (ts *TestServer) Stop() error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if !ts.started {
		return nil
	}

	err := ts.server.Stop()
	if cerr := ts.store.Close(); err == nil {
		err = cerr
	}
	ts.started = false
	return err
}

// Addr returns the listening address.
func (ts *TestServer) Addr() string {
	return ts.server.Addr().String()
}

// Server returns the wrapped server.
func (ts *TestServer) Server() *server.Server {
	return ts.server
}

// Config returns the configuration the server was built from.
func (ts *TestServer) Config() *config.Config {
	return ts.cfg
}

// SessionStore returns the session store instance.
func (ts *TestServer) SessionStore() session.Store {
	return ts.store
}
