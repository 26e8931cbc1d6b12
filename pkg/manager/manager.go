// Package manager defines the pluggable components attached to a server.
//
// A manager is registered once, initialized with the server (seen through
// the Host interface) and a logger, then started and stopped together with
// the server. Managers observe the server exclusively through its event
// streams and act through the Host methods; they never own socket state.
package manager

import (
	"github.com/marmos91/validay/pkg/client"
	"github.com/marmos91/validay/pkg/event"
	"github.com/marmos91/validay/pkg/logger"
)

// Manager is the capability interface every manager implements.
type Manager interface {
	// Name identifies the manager. Names are unique per server.
	Name() string

	// IsActive reports whether the manager is started.
	IsActive() bool

	// Init hands the manager its host and logger. It is called once by
	// the server during registration.
	Init(host Host, log logger.Logger) error

	// Start subscribes the manager to the host's events. Without a host
	// it logs a warning and stays inactive.
	Start()

	// Stop unsubscribes everything Start subscribed.
	Stop()
}

// Host is the part of the server a manager may use.
type Host interface {
	Subscribe(kind event.Kind, h event.Handler) event.Token
	Unsubscribe(kind event.Kind, token event.Token) bool

	SendToClient(c *client.Client, data []byte) error
	// TrySendToClient is SendToClient that always returns enqueue failures.
	TrySendToClient(c *client.Client, data []byte) error
	DisconnectClient(c *client.Client) error
	GetAllConnections() []*client.Client

	Managers() *Registry
	IsRunning() bool
}
