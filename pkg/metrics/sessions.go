package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SessionMetrics provides observability for session persistence: store
// operations and archive uploads.
//
// Example usage:
//
//	m := metrics.NewSessionMetrics("badger")
//	mgr := sessions.New(store, sessions.Config{Metrics: m})
type SessionMetrics interface {
	// RecordStoreOperation records a completed store operation.
	//
	// Parameters:
	//   - operation: "put", "get", "list" or "delete"
	//   - duration: Time taken to complete the operation
	//   - err: Error if the operation failed, nil if successful
	RecordStoreOperation(operation string, duration time.Duration, err error)

	// RecordArchive records one archive upload.
	RecordArchive(records int, bytes int64, duration time.Duration, err error)
}

type sessionMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	archivesTotal     *prometheus.CounterVec
	archivedRecords   prometheus.Counter
	archivedBytes     prometheus.Counter
	archiveDuration   prometheus.Histogram
}

// NewSessionMetrics creates a Prometheus-backed SessionMetrics on the
// global registry, or a no-op when metrics are not enabled.
func NewSessionMetrics(storeType string) SessionMetrics {
	if !IsEnabled() {
		return NewNoopSessionMetrics()
	}
	return NewSessionMetricsWith(GetRegistry(), storeType)
}

// NewSessionMetricsWith registers the session metrics on reg.
func NewSessionMetricsWith(reg prometheus.Registerer, storeType string) SessionMetrics {
	constLabels := prometheus.Labels{"store_type": storeType}

	return &sessionMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name:        "validay_session_store_operations_total",
				Help:        "Total number of session store operations by operation and status",
				ConstLabels: constLabels,
			},
			[]string{"operation", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "validay_session_store_operation_duration_seconds",
				Help:        "Duration of session store operations in seconds",
				ConstLabels: constLabels,
				Buckets: []float64{
					0.0001, // 100µs
					0.001,  // 1ms
					0.01,   // 10ms
					0.1,    // 100ms
					1.0,    // 1s
				},
			},
			[]string{"operation"},
		),
		archivesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "validay_session_archives_total",
				Help: "Total number of session archive uploads by status",
			},
			[]string{"status"},
		),
		archivedRecords: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "validay_session_archived_records_total",
				Help: "Total number of session records archived",
			},
		),
		archivedBytes: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "validay_session_archived_bytes_total",
				Help: "Total bytes uploaded by the session archiver",
			},
		),
		archiveDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "validay_session_archive_duration_seconds",
				Help: "Duration of session archive uploads in seconds",
				Buckets: []float64{
					0.01, // 10ms
					0.1,  // 100ms
					0.5,  // 500ms
					1.0,  // 1s
					5.0,  // 5s
					30.0, // 30s
				},
			},
		),
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (m *sessionMetrics) RecordStoreOperation(operation string, duration time.Duration, err error) {
	m.operationsTotal.WithLabelValues(operation, status(err)).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *sessionMetrics) RecordArchive(records int, bytes int64, duration time.Duration, err error) {
	m.archivesTotal.WithLabelValues(status(err)).Inc()
	m.archiveDuration.Observe(duration.Seconds())
	if err == nil {
		m.archivedRecords.Add(float64(records))
		m.archivedBytes.Add(float64(bytes))
	}
}

// NewNoopSessionMetrics returns a SessionMetrics that records nothing.
func NewNoopSessionMetrics() SessionMetrics {
	return noopSessionMetrics{}
}

type noopSessionMetrics struct{}

func (noopSessionMetrics) RecordStoreOperation(string, time.Duration, error) {}
func (noopSessionMetrics) RecordArchive(int, int64, time.Duration, error)    {}
