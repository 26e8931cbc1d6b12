package config

import (
	"github.com/marmos91/validay/pkg/metrics"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// ServerMetrics records connection and traffic metrics (never nil, uses noop if disabled)
	ServerMetrics metrics.ServerMetrics

	// SessionMetrics records session store and archive metrics (never nil, uses noop if disabled)
	SessionMetrics metrics.SessionMetrics
}

// InitializeMetrics creates and initializes all metrics components based on configuration.
//
// If metrics are enabled in the configuration:
//   - Initializes the global Prometheus registry
//   - Creates the metrics HTTP server
//   - Creates Prometheus-backed metrics instances for all components
//
// If metrics are disabled:
//   - Returns nil server
//   - Returns no-op metrics implementations (zero overhead)
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Metrics.Enabled {
		return &MetricsResult{
			ServerMetrics:  metrics.NewNoopServerMetrics(),
			SessionMetrics: metrics.NewNoopSessionMetrics(),
		}
	}

	metrics.InitRegistry()

	return &MetricsResult{
		Server: metrics.NewServer(metrics.ServerConfig{
			Port: cfg.Metrics.Port,
		}),
		ServerMetrics:  metrics.NewServerMetrics(),
		SessionMetrics: metrics.NewSessionMetrics(cfg.Sessions.Store.Type),
	}
}
