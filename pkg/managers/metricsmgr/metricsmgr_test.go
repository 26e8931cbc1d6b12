package metricsmgr

import (
	"strings"
	"testing"

	"github.com/marmos91/validay/internal/testutil"
	"github.com/marmos91/validay/pkg/event"
	"github.com/marmos91/validay/pkg/logger"
	"github.com/marmos91/validay/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordsEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	host := testutil.NewHost()
	m := New(metrics.NewServerMetricsWith(reg))
	require.NoError(t, m.Init(host, logger.Nop()))
	m.Start()
	defer m.Stop()

	a := host.NewClient(t)
	host.NewClient(t)
	host.Receive(a, []byte{1, 0, 2, 3})
	host.Bus.Publish(event.Event{Kind: event.DataSent, Client: a, Data: []byte{9, 9}})
	require.NoError(t, host.DisconnectClient(a))

	expected := `
# HELP validay_active_connections Current number of active connections
# TYPE validay_active_connections gauge
validay_active_connections 1
# HELP validay_connections_accepted_total Total number of connections accepted
# TYPE validay_connections_accepted_total counter
validay_connections_accepted_total 2
# HELP validay_connections_closed_total Total number of connections closed
# TYPE validay_connections_closed_total counter
validay_connections_closed_total 1
# HELP validay_packets_received_total Total number of reassembled packets received
# TYPE validay_packets_received_total counter
validay_packets_received_total 1
`
	assert.NoError(t, promtest.GatherAndCompare(reg, strings.NewReader(expected),
		"validay_active_connections",
		"validay_connections_accepted_total",
		"validay_connections_closed_total",
		"validay_packets_received_total",
	))

	count, err := promtest.GatherAndCount(reg, "validay_bytes_transferred_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestStartSeedsActiveConnections(t *testing.T) {
	reg := prometheus.NewRegistry()
	host := testutil.NewHost()
	host.NewClient(t)
	host.NewClient(t)

	m := New(metrics.NewServerMetricsWith(reg))
	require.NoError(t, m.Init(host, logger.Nop()))
	m.Start()
	defer m.Stop()

	assert.Equal(t, int64(2), m.active.Load())
}

func TestNilMetricsFallsBack(t *testing.T) {
	assert.NotNil(t, New(nil).metrics)
}
