// Package sessiontest holds a behavioral test suite shared by every
// session.Store implementation.
package sessiontest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/validay/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) session.Store

// NewRecord returns a closed session that disconnected at the given time.
func NewRecord(disconnectedAt time.Time) session.Record {
	return session.Record{
		ID:             uuid.New(),
		ClientID:       uuid.New(),
		Address:        "127.0.0.1:50000",
		ConnectedAt:    disconnectedAt.Add(-time.Minute),
		DisconnectedAt: disconnectedAt,
		BytesIn:        120,
		BytesOut:       64,
		PacketsIn:      3,
		PacketsOut:     2,
	}
}

// Run exercises newStore against the session.Store contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("PutGet", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		rec := NewRecord(time.Unix(1700000000, 123456789))
		require.NoError(t, s.Put(ctx, rec))

		got, err := s.Get(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, rec.ID, got.ID)
		assert.Equal(t, rec.ClientID, got.ClientID)
		assert.Equal(t, rec.Address, got.Address)
		assert.True(t, rec.ConnectedAt.Equal(got.ConnectedAt))
		assert.True(t, rec.DisconnectedAt.Equal(got.DisconnectedAt))
		assert.Equal(t, rec.BytesIn, got.BytesIn)
		assert.Equal(t, rec.BytesOut, got.BytesOut)
		assert.Equal(t, rec.PacketsIn, got.PacketsIn)
		assert.Equal(t, rec.PacketsOut, got.PacketsOut)
	})

	t.Run("PutOverwrites", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		rec := NewRecord(time.Unix(1700000000, 0))
		require.NoError(t, s.Put(ctx, rec))
		rec.BytesIn = 999
		require.NoError(t, s.Put(ctx, rec))

		got, err := s.Get(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, uint64(999), got.BytesIn)

		all, err := s.List(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		_, err := s.Get(context.Background(), uuid.New())
		assert.ErrorIs(t, err, session.ErrNotFound)
	})

	t.Run("ListOrderedByDisconnect", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		base := time.Unix(1700000000, 0)
		late := NewRecord(base.Add(2 * time.Second))
		early := NewRecord(base)
		mid := NewRecord(base.Add(time.Second))
		for _, rec := range []session.Record{late, early, mid} {
			require.NoError(t, s.Put(ctx, rec))
		}

		all, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, early.ID, all[0].ID)
		assert.Equal(t, mid.ID, all[1].ID)
		assert.Equal(t, late.ID, all[2].ID)
	})

	t.Run("ListEmpty", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		all, err := s.List(context.Background())
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("Delete", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		a := NewRecord(time.Unix(1700000000, 0))
		b := NewRecord(time.Unix(1700000001, 0))
		require.NoError(t, s.Put(ctx, a))
		require.NoError(t, s.Put(ctx, b))

		require.NoError(t, s.Delete(ctx, a.ID, uuid.New()))
		require.NoError(t, s.Delete(ctx))

		_, err := s.Get(ctx, a.ID)
		assert.ErrorIs(t, err, session.ErrNotFound)

		all, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, b.ID, all[0].ID)
	})

	t.Run("CanceledContext", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, s.Put(ctx, NewRecord(time.Now())), context.Canceled)
		_, err := s.List(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("UseAfterClose", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Close())
		assert.NoError(t, s.Close())

		ctx := context.Background()
		assert.ErrorIs(t, s.Put(ctx, NewRecord(time.Now())), session.ErrStoreClosed)
		_, err := s.Get(ctx, uuid.New())
		assert.ErrorIs(t, err, session.ErrStoreClosed)
	})
}
