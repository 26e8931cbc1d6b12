// Package memory is an in-process session.Store. Records are lost on
// restart.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/marmos91/validay/pkg/session"
)

// Store keeps records in a map guarded by a read-write mutex.
type Store struct {
	mu      sync.RWMutex
	records map[uuid.UUID]session.Record
	closed  bool
}

func New() *Store {
	return &Store{records: make(map[uuid.UUID]session.Record)}
}

func (s *Store) Put(ctx context.Context, rec session.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return session.ErrStoreClosed
	}
	s.records[rec.ID] = rec
	return nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (session.Record, error) {
	if err := ctx.Err(); err != nil {
		return session.Record{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return session.Record{}, session.ErrStoreClosed
	}
	rec, ok := s.records[id]
	if !ok {
		return session.Record{}, session.ErrNotFound
	}
	return rec, nil
}

func (s *Store) List(ctx context.Context) ([]session.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, session.ErrStoreClosed
	}
	out := make([]session.Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	s.mu.RUnlock()

	session.Sort(out)
	return out, nil
}

func (s *Store) Delete(ctx context.Context, ids ...uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return session.ErrStoreClosed
	}
	for _, id := range ids {
		delete(s.records, id)
	}
	return nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.records = nil
	return nil
}
