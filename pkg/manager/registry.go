package manager

import (
	"errors"
	"fmt"
	"sync"
)

// ErrDuplicateName is returned when a manager name is already registered.
var ErrDuplicateName = errors.New("manager already registered")

// Registry keeps managers in registration order with unique names.
type Registry struct {
	mu       sync.RWMutex
	managers []Manager
	byName   map[string]Manager
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Manager)}
}

// Register appends m. It fails with ErrDuplicateName if a manager with the
// same name exists, leaving the registry unchanged.
func (r *Registry) Register(m Manager) error {
	if m == nil {
		return errors.New("manager is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := m.Name()
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateName, name)
	}

	r.managers = append(r.managers, m)
	r.byName[name] = m
	return nil
}

// Get returns the manager registered under name.
func (r *Registry) Get(name string) (Manager, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byName[name]
	return m, ok
}

// All returns the managers in registration order. The slice is a copy.
func (r *Registry) All() []Manager {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Manager, len(r.managers))
	copy(out, r.managers)
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.managers)
}

// Find returns the first registered manager of type T.
func Find[T Manager](r *Registry) (T, bool) {
	var zero T
	if r == nil {
		return zero, false
	}
	for _, m := range r.All() {
		if typed, ok := m.(T); ok {
			return typed, true
		}
	}
	return zero, false
}
