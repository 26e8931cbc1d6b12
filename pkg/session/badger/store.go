// Package badger is a session.Store persisted in BadgerDB.
package badger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/google/uuid"
	"github.com/marmos91/validay/pkg/logger"
	"github.com/marmos91/validay/pkg/session"
	xdr "github.com/rasky/go-xdr/xdr2"
)

// keyPrefix namespaces session records. Keys are "s:" followed by the
// record id in canonical string form.
const keyPrefix = "s:"

// Store implements session.Store on top of BadgerDB.
//
// Records are XDR-encoded with a fixed wire layout (see wireRecord), so a
// database written by one build stays readable by the next as long as the
// layout is only extended at the end.
//
// Thread Safety:
// BadgerDB transactions are safe for concurrent use. The mutex only guards
// the db handle against use after Close.
type Store struct {
	mu sync.RWMutex
	db *badger.DB
}

// Config contains the options for opening a badger session store.
type Config struct {
	// DBPath is the directory BadgerDB keeps its files in. It is created
	// when missing.
	DBPath string `mapstructure:"db_path" validate:"required"`

	// InMemory runs BadgerDB without touching disk. DBPath is ignored.
	InMemory bool `mapstructure:"in_memory"`

	// SyncWrites fsyncs every write.
	SyncWrites bool `mapstructure:"sync_writes"`
}

// wireRecord is the on-disk representation of a session.Record.
// Timestamps are Unix nanoseconds; zero means unset.
type wireRecord struct {
	ID             string
	ClientID       string
	Address        string
	ConnectedAt    int64
	DisconnectedAt int64
	BytesIn        uint64
	BytesOut       uint64
	PacketsIn      uint64
	PacketsOut     uint64
}

// New opens (or creates) the store described by cfg.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.DBPath == "" {
			return nil, errors.New("badger session store: db_path is required")
		}
		opts = badger.DefaultOptions(cfg.DBPath)
	}

	opts = opts.WithLoggingLevel(badger.WARNING)
	opts = opts.WithCompression(options.None) // records are tiny
	opts = opts.WithSyncWrites(cfg.SyncWrites)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", cfg.DBPath, err)
	}

	logger.Debug("Opened badger session store at %q (in-memory=%v)", cfg.DBPath, cfg.InMemory)
	return &Store{db: db}, nil
}

func recordKey(id uuid.UUID) []byte {
	return []byte(keyPrefix + id.String())
}

func encodeRecord(rec session.Record) ([]byte, error) {
	w := wireRecord{
		ID:             rec.ID.String(),
		ClientID:       rec.ClientID.String(),
		Address:        rec.Address,
		ConnectedAt:    unixNanos(rec.ConnectedAt),
		DisconnectedAt: unixNanos(rec.DisconnectedAt),
		BytesIn:        rec.BytesIn,
		BytesOut:       rec.BytesOut,
		PacketsIn:      rec.PacketsIn,
		PacketsOut:     rec.PacketsOut,
	}

	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, &w); err != nil {
		return nil, fmt.Errorf("encode session %s: %w", rec.ID, err)
	}
	return buf.Bytes(), nil
}

func decodeRecord(data []byte) (session.Record, error) {
	var w wireRecord
	if _, err := xdr.Unmarshal(bytes.NewReader(data), &w); err != nil {
		return session.Record{}, fmt.Errorf("decode session: %w", err)
	}

	id, err := uuid.Parse(w.ID)
	if err != nil {
		return session.Record{}, fmt.Errorf("decode session id %q: %w", w.ID, err)
	}
	clientID, err := uuid.Parse(w.ClientID)
	if err != nil {
		return session.Record{}, fmt.Errorf("decode client id %q: %w", w.ClientID, err)
	}

	return session.Record{
		ID:             id,
		ClientID:       clientID,
		Address:        w.Address,
		ConnectedAt:    fromUnixNanos(w.ConnectedAt),
		DisconnectedAt: fromUnixNanos(w.DisconnectedAt),
		BytesIn:        w.BytesIn,
		BytesOut:       w.BytesOut,
		PacketsIn:      w.PacketsIn,
		PacketsOut:     w.PacketsOut,
	}, nil
}

func unixNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// handle returns the open database, or ErrStoreClosed. Callers hold s.mu.
func (s *Store) handle() (*badger.DB, error) {
	if s.db == nil {
		return nil, session.ErrStoreClosed
	}
	return s.db, nil
}

func (s *Store) Put(ctx context.Context, rec session.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	db, err := s.handle()
	if err != nil {
		return err
	}
	return db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(rec.ID), value)
	})
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (session.Record, error) {
	if err := ctx.Err(); err != nil {
		return session.Record{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	db, err := s.handle()
	if err != nil {
		return session.Record{}, err
	}

	var rec session.Record
	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return session.ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			rec, err = decodeRecord(val)
			return err
		})
	})
	return rec, err
}

func (s *Store) List(ctx context.Context) ([]session.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	var out []session.Record
	err = db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		scanned := 0
		for it.Rewind(); it.Valid(); it.Next() {
			scanned++
			if scanned%1000 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}

			err := it.Item().Value(func(val []byte) error {
				rec, err := decodeRecord(val)
				if err != nil {
					return err
				}
				out = append(out, rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	session.Sort(out)
	return out, nil
}

func (s *Store) Delete(ctx context.Context, ids ...uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	db, err := s.handle()
	if err != nil {
		return err
	}

	wb := db.NewWriteBatch()
	defer wb.Cancel()

	for _, id := range ids {
		if err := wb.Delete(recordKey(id)); err != nil {
			return fmt.Errorf("delete session %s: %w", id, err)
		}
	}
	return wb.Flush()
}

// Close closes the database. Further calls return nil.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
