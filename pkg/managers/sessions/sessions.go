// Package sessions records one session.Record per connection and persists
// it when the connection ends.
package sessions

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/validay/pkg/client"
	"github.com/marmos91/validay/pkg/event"
	"github.com/marmos91/validay/pkg/logger"
	"github.com/marmos91/validay/pkg/manager"
	"github.com/marmos91/validay/pkg/metrics"
	"github.com/marmos91/validay/pkg/session"
)

const Name = "SessionManager"

const (
	// DefaultArchiveInterval is how often stored records are exported.
	DefaultArchiveInterval = 5 * time.Minute

	// DefaultStoreTimeout bounds every store call made from an event.
	DefaultStoreTimeout = 5 * time.Second
)

type Config struct {
	// Archiver exports stored records. Nil disables archiving.
	Archiver        session.Archiver
	ArchiveInterval time.Duration

	StoreTimeout time.Duration

	// Metrics records store and archive operations. Nil disables it.
	Metrics metrics.SessionMetrics
}

// Manager keeps a live record for every connected client and writes it to
// the store on disconnect. With an Archiver configured it periodically
// uploads the stored records and deletes them once the upload succeeds.
type Manager struct {
	manager.Base

	store session.Store
	cfg   Config

	mu   sync.Mutex
	live map[uuid.UUID]*session.Record

	// archiveMu serializes ArchiveNow so a record is never uploaded twice.
	archiveMu sync.Mutex

	loopMu sync.Mutex
	stop   chan struct{}
	done   chan struct{}
}

func New(store session.Store, cfg Config) *Manager {
	if cfg.ArchiveInterval <= 0 {
		cfg.ArchiveInterval = DefaultArchiveInterval
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = DefaultStoreTimeout
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoopSessionMetrics()
	}
	return &Manager{
		Base:  manager.NewBase(Name),
		store: store,
		cfg:   cfg,
		live:  make(map[uuid.UUID]*session.Record),
	}
}

func (m *Manager) Init(host manager.Host, log logger.Logger) error {
	if m.store == nil {
		return errors.New(Name + ": session store is nil")
	}
	return m.Base.Init(host, log)
}

func (m *Manager) Start() {
	if !m.Activate() {
		return
	}

	for _, c := range m.Host().GetAllConnections() {
		m.track(c)
	}

	m.Subscribe(event.ClientConnected, m.onClientConnected)
	m.Subscribe(event.ClientDisconnected, m.onClientDisconnected)
	m.Subscribe(event.DataReceived, m.onDataReceived)
	m.Subscribe(event.DataSent, m.onDataSent)

	if m.cfg.Archiver != nil {
		m.loopMu.Lock()
		m.stop = make(chan struct{})
		m.done = make(chan struct{})
		go m.archiveLoop(m.stop, m.done)
		m.loopMu.Unlock()
	}

	m.Logger().Log(logger.LevelInfo, "%s started", Name)
}

// Stop persists the records of clients that are still connected, using the
// stop time as their disconnect time, then runs a last archive pass.
func (m *Manager) Stop() {
	if !m.Deactivate() {
		return
	}

	m.loopMu.Lock()
	stop, done := m.stop, m.done
	m.stop, m.done = nil, nil
	m.loopMu.Unlock()
	if stop != nil {
		close(stop)
		<-done
	}

	m.mu.Lock()
	pending := make([]session.Record, 0, len(m.live))
	now := time.Now()
	for id, rec := range m.live {
		rec.DisconnectedAt = now
		pending = append(pending, *rec)
		delete(m.live, id)
	}
	m.mu.Unlock()

	for _, rec := range pending {
		m.persist(rec)
	}

	if m.cfg.Archiver != nil {
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.StoreTimeout)
		if _, err := m.ArchiveNow(ctx); err != nil {
			m.Logger().Log(logger.LevelWarning, "%s: final archive failed: %v", Name, err)
		}
		cancel()
	}

	m.Logger().Log(logger.LevelInfo, "%s stopped", Name)
}

// Live returns a copy of the records of connected clients.
func (m *Manager) Live() []session.Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]session.Record, 0, len(m.live))
	for _, rec := range m.live {
		out = append(out, *rec)
	}
	return out
}

// Store returns the backing store.
func (m *Manager) Store() session.Store {
	return m.store
}

// ArchiveNow uploads every stored record and deletes the uploaded ones.
// It returns how many records were archived.
func (m *Manager) ArchiveNow(ctx context.Context) (int, error) {
	if m.cfg.Archiver == nil {
		return 0, nil
	}

	m.archiveMu.Lock()
	defer m.archiveMu.Unlock()

	start := time.Now()
	records, err := m.store.List(ctx)
	m.cfg.Metrics.RecordStoreOperation("list", time.Since(start), err)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	start = time.Now()
	err = m.cfg.Archiver.Archive(ctx, records)
	m.cfg.Metrics.RecordArchive(len(records), archivedBytes(records), time.Since(start), err)
	if err != nil {
		return 0, err
	}

	ids := make([]uuid.UUID, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
	}

	start = time.Now()
	err = m.store.Delete(ctx, ids...)
	m.cfg.Metrics.RecordStoreOperation("delete", time.Since(start), err)
	if err != nil {
		return len(records), err
	}

	m.Logger().Log(logger.LevelInfo, "%s: archived %d session(s)", Name, len(records))
	return len(records), nil
}

func archivedBytes(records []session.Record) int64 {
	var n int64
	for _, rec := range records {
		n += int64(rec.BytesIn + rec.BytesOut)
	}
	return n
}

func (m *Manager) archiveLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.cfg.ArchiveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), m.cfg.StoreTimeout)
			if _, err := m.ArchiveNow(ctx); err != nil {
				m.Logger().Log(logger.LevelWarning, "%s: archive failed, keeping records: %v", Name, err)
			}
			cancel()
		}
	}
}

func (m *Manager) track(c *client.Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.live[c.ID()]; ok {
		return
	}
	connectedAt := c.ConnectedAt()
	if connectedAt.IsZero() {
		connectedAt = time.Now()
	}
	m.live[c.ID()] = &session.Record{
		ID:          uuid.New(),
		ClientID:    c.ID(),
		Address:     c.String(),
		ConnectedAt: connectedAt,
	}
}

func (m *Manager) onClientConnected(e event.Event) {
	m.track(e.Client)
}

func (m *Manager) onClientDisconnected(e event.Event) {
	m.mu.Lock()
	rec, ok := m.live[e.Client.ID()]
	if ok {
		delete(m.live, e.Client.ID())
		rec.DisconnectedAt = time.Now()
	}
	m.mu.Unlock()

	if ok {
		m.persist(*rec)
	}
}

func (m *Manager) onDataReceived(e event.Event) {
	m.mu.Lock()
	if rec, ok := m.live[e.Client.ID()]; ok {
		rec.BytesIn += uint64(len(e.Data))
		rec.PacketsIn++
	}
	m.mu.Unlock()
}

func (m *Manager) onDataSent(e event.Event) {
	m.mu.Lock()
	if rec, ok := m.live[e.Client.ID()]; ok {
		rec.BytesOut += uint64(len(e.Data))
		rec.PacketsOut++
	}
	m.mu.Unlock()
}

func (m *Manager) persist(rec session.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.StoreTimeout)
	defer cancel()

	start := time.Now()
	err := m.store.Put(ctx, rec)
	m.cfg.Metrics.RecordStoreOperation("put", time.Since(start), err)
	if err != nil {
		m.Logger().Log(logger.LevelError, "%s: cannot store session %s for %s: %v", Name, rec.ID, rec.Address, err)
		return
	}
	m.Logger().Log(logger.LevelLow, "%s: stored session %s for %s (%v, %d in / %d out)",
		Name, rec.ID, rec.Address, rec.Duration().Round(time.Millisecond), rec.BytesIn, rec.BytesOut)
}
