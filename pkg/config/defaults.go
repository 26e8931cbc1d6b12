package config

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/marmos91/validay/pkg/managers/badpacket"
	"github.com/marmos91/validay/pkg/managers/heartbeat"
	"github.com/marmos91/validay/pkg/managers/ratelimit"
	"github.com/marmos91/validay/pkg/managers/sessions"
	"github.com/marmos91/validay/pkg/server"
)

// DefaultStatsInterval is the stats period used by configuration files.
// The manager's own default is shorter and meant for interactive runs.
const DefaultStatsInterval = 30 * time.Second

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", nil) are replaced with defaults
//   - Explicit values are preserved
//   - Boolean switches are defaulted by Load through viper
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyManagersDefaults(&cfg.Managers)
	applyMetricsDefaults(&cfg.Metrics)
	applySessionsDefaults(&cfg.Sessions)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyServerDefaults sets listener and framing defaults from
// server.DefaultSettings.
func applyServerDefaults(cfg *ServerConfig) {
	def := server.DefaultSettings()

	if cfg.Host == "" {
		cfg.Host = def.IP
	}
	// Port 0 is a valid request for an ephemeral port, so only the
	// generated config file carries the default port.
	if cfg.Backlog == 0 {
		cfg.Backlog = def.Backlog
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = def.BufferSize
	}
	// MaxConnections defaults to 0 (unlimited)
	if cfg.MaxDepth == 0 {
		cfg.MaxDepth = def.MaxDepth
	}
	if cfg.MaxPacketSize == 0 {
		cfg.MaxPacketSize = def.MaxPacketSize
	}
	if cfg.Marker == "" {
		cfg.Marker = hex.EncodeToString(def.Marker)
	}
	cfg.ByteOrder = strings.ToLower(cfg.ByteOrder)
	if cfg.ByteOrder == "" {
		cfg.ByteOrder = "little"
	}
	if cfg.SendQueueSize == 0 {
		cfg.SendQueueSize = def.SendQueueSize
	}
	// ReadTimeout defaults to 0 (never)
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
}

// applyManagersDefaults sets manager defaults.
func applyManagersDefaults(cfg *ManagersConfig) {
	if cfg.BadPacket.Threshold == 0 {
		cfg.BadPacket.Threshold = badpacket.DefaultThreshold
	}
	if cfg.Heartbeat.Interval == 0 {
		cfg.Heartbeat.Interval = heartbeat.DefaultInterval
	}
	if cfg.RateLimit.PacketsPerSecond == 0 {
		cfg.RateLimit.PacketsPerSecond = ratelimit.DefaultPacketsPerSecond
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = ratelimit.DefaultBurst
	}
	if cfg.Stats.Interval == 0 {
		cfg.Stats.Interval = DefaultStatsInterval
	}
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// applySessionsDefaults sets session store and archive defaults.
func applySessionsDefaults(cfg *SessionsConfig) {
	if cfg.Store.Type == "" {
		cfg.Store.Type = "memory"
	}
	if cfg.Store.Badger == nil {
		cfg.Store.Badger = make(map[string]any)
	}
	if _, ok := cfg.Store.Badger["db_path"]; !ok {
		cfg.Store.Badger["db_path"] = "/tmp/validay-sessions"
	}

	if cfg.Archive.Type == "" {
		cfg.Archive.Type = "s3"
	}
	if cfg.Archive.Interval == 0 {
		cfg.Archive.Interval = sessions.DefaultArchiveInterval
	}
	if cfg.Archive.S3 == nil {
		cfg.Archive.S3 = make(map[string]any)
	}
	if _, ok := cfg.Archive.S3["key_prefix"]; !ok {
		cfg.Archive.S3["key_prefix"] = "validay/sessions/"
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port: server.DefaultSettings().Port,
		},
		Managers: ManagersConfig{
			BadPacket: BadPacketConfig{Enabled: true},
			Heartbeat: HeartbeatConfig{Enabled: true},
			Sender:    SenderConfig{Enabled: true},
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
