package command

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Descriptor is what the registry knows about one id.
type Descriptor struct {
	ID      uint16
	Type    reflect.Type
	Factory func() Command
}

// Registry maps ids to command descriptors. Ids and types are both unique.
// One registry belongs to one server.
type Registry struct {
	mu     sync.RWMutex
	byID   map[uint16]Descriptor
	byType map[reflect.Type]uint16
}

func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[uint16]Descriptor),
		byType: make(map[reflect.Type]uint16),
	}
}

// Register binds id to the command type T. factory builds new instances
// for the pool. The type is used only as an identity tag; instances always
// come from factory.
//
// Registering an id twice fails with ErrDuplicateID, registering T under a
// second id fails with ErrDuplicateType. In both cases the registry is left
// unchanged.
func Register[T Command](r *Registry, id uint16, factory func() T) error {
	if factory == nil {
		return fmt.Errorf("command %d: factory is nil", id)
	}

	typ := reflect.TypeOf((*T)(nil)).Elem()
	return r.add(Descriptor{
		ID:      id,
		Type:    typ,
		Factory: func() Command { return factory() },
	})
}

func (r *Registry) add(d Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byID[d.ID]; ok {
		return fmt.Errorf("%w: id %d is bound to %v", ErrDuplicateID, d.ID, existing.Type)
	}
	if otherID, ok := r.byType[d.Type]; ok {
		return fmt.Errorf("%w: %v is bound to id %d", ErrDuplicateType, d.Type, otherID)
	}

	r.byID[d.ID] = d
	r.byType[d.Type] = d.ID
	return nil
}

// Lookup returns the descriptor for id.
func (r *Registry) Lookup(id uint16) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byID[id]
	return d, ok
}

func (r *Registry) Contains(id uint16) bool {
	_, ok := r.Lookup(id)
	return ok
}

// IDs returns the registered ids in ascending order.
func (r *Registry) IDs() []uint16 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]uint16, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
