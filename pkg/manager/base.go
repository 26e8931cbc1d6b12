package manager

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/marmos91/validay/pkg/event"
	"github.com/marmos91/validay/pkg/logger"
)

type binding struct {
	kind  event.Kind
	token event.Token
}

// Base carries the state shared by all managers. Embed it and implement
// Start/Stop on top of Activate, Subscribe and Deactivate.
type Base struct {
	name   string
	active atomic.Bool

	mu       sync.Mutex
	host     Host
	log      logger.Logger
	bindings []binding
}

func NewBase(name string) Base {
	return Base{name: name}
}

func (b *Base) Name() string {
	return b.name
}

func (b *Base) IsActive() bool {
	return b.active.Load()
}

func (b *Base) Init(host Host, log logger.Logger) error {
	if host == nil {
		return errors.New(b.name + ": host is nil")
	}
	if log == nil {
		return errors.New(b.name + ": logger is nil")
	}

	b.mu.Lock()
	b.host = host
	b.log = log
	b.mu.Unlock()
	return nil
}

// Host returns the host passed to Init, or nil.
func (b *Base) Host() Host {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.host
}

// Logger never returns nil; before Init it falls back to the default logger.
func (b *Base) Logger() logger.Logger {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.log == nil {
		return logger.Default()
	}
	return b.log
}

// Activate marks the manager active. It returns false, after logging a
// warning, when the manager has no host or is already active.
func (b *Base) Activate() bool {
	if b.Host() == nil {
		b.Logger().Log(logger.LevelWarning, "%s: server is not set, not starting", b.name)
		return false
	}
	if !b.active.CompareAndSwap(false, true) {
		b.Logger().Log(logger.LevelWarning, "%s: already started", b.name)
		return false
	}
	return true
}

// Subscribe subscribes h through the host and remembers the token so
// Deactivate can undo it.
func (b *Base) Subscribe(kind event.Kind, h event.Handler) {
	host := b.Host()
	if host == nil {
		return
	}
	token := host.Subscribe(kind, h)

	b.mu.Lock()
	b.bindings = append(b.bindings, binding{kind: kind, token: token})
	b.mu.Unlock()
}

// Deactivate unsubscribes every handler and marks the manager inactive.
// It returns false when the manager was not active.
func (b *Base) Deactivate() bool {
	if !b.active.CompareAndSwap(true, false) {
		return false
	}

	b.mu.Lock()
	bindings := b.bindings
	b.bindings = nil
	host := b.host
	b.mu.Unlock()

	for _, bnd := range bindings {
		host.Unsubscribe(bnd.kind, bnd.token)
	}
	return true
}
