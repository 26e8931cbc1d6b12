package stats

import (
	"testing"
	"time"

	"github.com/marmos91/validay/internal/testutil"
	"github.com/marmos91/validay/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type processStats struct {
	calls int
	rss   uint64
}

func (*processStats) RecordConnectionAccepted() {}
func (*processStats) RecordConnectionClosed()   {}
func (*processStats) SetActiveConnections(int)  {}
func (*processStats) RecordPacketReceived(int)  {}
func (*processStats) RecordBytesSent(int)       {}

func (p *processStats) SetProcessStats(rss uint64, _, _ float64) {
	p.calls++
	p.rss = rss
}

func TestSample(t *testing.T) {
	host := testutil.NewHost()
	sink := &processStats{}
	m := New(Config{Interval: time.Hour, Metrics: sink, Quiet: true})
	require.NoError(t, m.Init(host, logger.Nop()))

	host.NewClient(t)
	host.NewClient(t)

	snap := m.Sample()
	assert.Equal(t, 2, snap.ActiveConnections)
	assert.False(t, snap.Time.IsZero())
	assert.Positive(t, snap.RSSBytes)
	assert.GreaterOrEqual(t, snap.HostMemoryPercent, 0.0)

	assert.Equal(t, snap, m.Snapshot())
	assert.Equal(t, 1, sink.calls)
	assert.Equal(t, snap.RSSBytes, sink.rss)
}

func TestStartSamplesPeriodically(t *testing.T) {
	host := testutil.NewHost()
	m := New(Config{Interval: 20 * time.Millisecond, Quiet: true})
	require.NoError(t, m.Init(host, logger.Nop()))

	assert.True(t, m.Snapshot().Time.IsZero())

	m.Start()
	require.Eventually(t, func() bool { return !m.Snapshot().Time.IsZero() }, time.Second, 5*time.Millisecond)
	m.Stop()

	assert.False(t, m.IsActive())
}

func TestNew_Defaults(t *testing.T) {
	m := New(Config{})
	assert.Equal(t, DefaultInterval, m.cfg.Interval)
	assert.NotNil(t, m.cfg.Metrics)
}
