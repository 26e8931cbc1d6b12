// Package session defines the record kept for every client connection and
// the storage contracts used to persist and export it.
package session

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no record has the requested id.
	ErrNotFound = errors.New("session not found")

	// ErrStoreClosed is returned by stores used after Close.
	ErrStoreClosed = errors.New("session store closed")
)

// Record describes one client connection from accept to disconnect.
type Record struct {
	ID             uuid.UUID `json:"id"`
	ClientID       uuid.UUID `json:"client_id"`
	Address        string    `json:"address"`
	ConnectedAt    time.Time `json:"connected_at"`
	DisconnectedAt time.Time `json:"disconnected_at,omitzero"`
	BytesIn        uint64    `json:"bytes_in"`
	BytesOut       uint64    `json:"bytes_out"`
	PacketsIn      uint64    `json:"packets_in"`
	PacketsOut     uint64    `json:"packets_out"`
}

// Duration is how long the connection lasted. It is zero while the
// connection is still open.
func (r Record) Duration() time.Duration {
	if r.DisconnectedAt.IsZero() {
		return 0
	}
	return r.DisconnectedAt.Sub(r.ConnectedAt)
}

// Store persists closed session records.
//
// Implementations must be safe for concurrent use. List returns records
// ordered by disconnect time, with ties broken by id. Delete ignores ids
// that are not stored.
type Store interface {
	Put(ctx context.Context, rec Record) error
	Get(ctx context.Context, id uuid.UUID) (Record, error)
	List(ctx context.Context) ([]Record, error)
	Delete(ctx context.Context, ids ...uuid.UUID) error
	Close() error
}

// Archiver exports a batch of records to long-term storage.
type Archiver interface {
	Archive(ctx context.Context, records []Record) error
}

// Sort orders records the way Store.List returns them.
func Sort(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.DisconnectedAt.Equal(b.DisconnectedAt) {
			return a.DisconnectedAt.Before(b.DisconnectedAt)
		}
		return bytes.Compare(a.ID[:], b.ID[:]) < 0
	})
}
