package command

import (
	"fmt"
	"reflect"
	"sync"
)

type typePool struct {
	mu   sync.Mutex
	idle []Command
}

// Pool keeps idle command instances per command type. An instance handed
// out by GetCommand is not handed out again until it is returned.
// Instances are kept for the life of the pool.
type Pool struct {
	mu    sync.Mutex
	types map[reflect.Type]*typePool
}

func NewPool() *Pool {
	return &Pool{types: make(map[reflect.Type]*typePool)}
}

func (p *Pool) poolFor(typ reflect.Type) *typePool {
	p.mu.Lock()
	defer p.mu.Unlock()

	tp, ok := p.types[typ]
	if !ok {
		tp = &typePool{}
		p.types[typ] = tp
	}
	return tp
}

// GetCommand returns an idle instance of the command bound to id, or a new
// one from the registered factory when none is idle.
func (p *Pool) GetCommand(id uint16, registry *Registry) (Command, error) {
	d, ok := registry.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrCommandNotFound, id)
	}

	tp := p.poolFor(d.Type)

	tp.mu.Lock()
	if n := len(tp.idle); n > 0 {
		cmd := tp.idle[n-1]
		tp.idle[n-1] = nil
		tp.idle = tp.idle[:n-1]
		tp.mu.Unlock()
		return cmd, nil
	}
	tp.mu.Unlock()

	return d.Factory(), nil
}

// ReturnCommandToPool makes cmd available to the next GetCommand for the
// type bound to id.
func (p *Pool) ReturnCommandToPool(id uint16, cmd Command, registry *Registry) error {
	d, ok := registry.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: id %d", ErrCommandNotFound, id)
	}
	if cmd == nil {
		return fmt.Errorf("command %d: cannot return nil instance", id)
	}

	typ := reflect.TypeOf(cmd)
	if !sameType(typ, d.Type) {
		return fmt.Errorf("%w: id %d expects %v, got %v", ErrWrongType, id, d.Type, typ)
	}

	tp := p.poolFor(d.Type)
	tp.mu.Lock()
	defer tp.mu.Unlock()

	if typ.Comparable() {
		for _, idle := range tp.idle {
			if idle == cmd {
				return fmt.Errorf("%w: id %d", ErrAlreadyPooled, id)
			}
		}
	}
	tp.idle = append(tp.idle, cmd)
	return nil
}

// sameType reports whether an instance of typ may be pooled under the
// registered type. Interface registrations accept any implementation.
func sameType(typ, registered reflect.Type) bool {
	if registered.Kind() == reflect.Interface {
		return typ.Implements(registered)
	}
	return typ == registered
}

// Idle returns the number of idle instances for the type bound to id.
func (p *Pool) Idle(id uint16, registry *Registry) int {
	d, ok := registry.Lookup(id)
	if !ok {
		return 0
	}
	tp := p.poolFor(d.Type)
	tp.mu.Lock()
	defer tp.mu.Unlock()
	return len(tp.idle)
}
