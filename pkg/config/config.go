package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/validay/pkg/server"
	"github.com/spf13/viper"
)

// Config represents the complete Validay configuration.
//
// This structure captures all configurable aspects of the server including:
//   - Logging configuration
//   - Listener and framing settings
//   - Which managers are registered and how they behave
//   - The Prometheus metrics endpoint
//   - Session recording, storage and archiving
//
// Configuration sources (in order of precedence):
//  1. Environment variables (VALIDAY_*)
//  2. Configuration file (YAML or TOML)
//  3. Default values (lowest priority)
//
// Store Configuration Pattern:
// Each session store and archiver defines its own configuration type. The
// Config struct contains type-specific sections (e.g., sessions.store.badger)
// and only the section matching the selected type is used.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Server contains listener and framing settings
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Managers selects and configures the built-in managers
	Managers ManagersConfig `mapstructure:"managers" yaml:"managers"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Sessions configures per-connection session records
	Sessions SessionsConfig `mapstructure:"sessions" yaml:"sessions"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: LOW, DEBUG, INFO, WARN, WARNING, ERROR, CRITICAL (normalized to uppercase)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=LOW DEBUG INFO WARN WARNING ERROR CRITICAL CRITICALERROR"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// ServerConfig contains the TCP listener and framing settings.
type ServerConfig struct {
	// Host is the IP address to listen on
	Host string `mapstructure:"host" yaml:"host" validate:"required,ip"`

	// Port is the TCP port to listen on (0 picks a free port)
	Port int `mapstructure:"port" yaml:"port" validate:"min=0,max=65535"`

	// Backlog is the requested listen backlog
	Backlog int `mapstructure:"backlog" yaml:"backlog" validate:"min=0"`

	// BufferSize is the per-client read buffer size in bytes
	BufferSize int `mapstructure:"buffer_size" yaml:"buffer_size" validate:"min=1"`

	// MaxConnections caps concurrent connections (0 = unlimited)
	MaxConnections int `mapstructure:"max_connections" yaml:"max_connections" validate:"min=0"`

	// MaxDepth is the number of extra packets accepted from a single read
	MaxDepth int `mapstructure:"max_depth" yaml:"max_depth" validate:"min=0"`

	// MaxPacketSize is the largest accepted payload in bytes
	MaxPacketSize int `mapstructure:"max_packet_size" yaml:"max_packet_size" validate:"min=1"`

	// Marker is the hex-encoded start-of-packet marker (e.g. "5644")
	Marker string `mapstructure:"marker" yaml:"marker" validate:"required,hexadecimal"`

	// ByteOrder is the byte order of command ids
	// Valid values: little, big
	ByteOrder string `mapstructure:"byte_order" yaml:"byte_order" validate:"required,oneof=little big"`

	// SendQueueSize bounds each client's outbound queue
	SendQueueSize int `mapstructure:"send_queue_size" yaml:"send_queue_size" validate:"min=1"`

	// ReadTimeout disconnects idle clients (0 = never)
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout" validate:"min=0"`

	// WriteTimeout bounds every socket write (0 = none)
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout" validate:"min=0"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"required,gt=0"`

	// ShowSocketErrors logs transient socket errors at warning level
	// instead of debug level
	ShowSocketErrors bool `mapstructure:"show_socket_errors" yaml:"show_socket_errors"`

	// ReportSendErrors returns enqueue failures to callers of SendToClient
	ReportSendErrors bool `mapstructure:"report_send_errors" yaml:"report_send_errors"`
}

// ManagersConfig selects the optional managers. The command handler is
// always registered.
type ManagersConfig struct {
	BadPacket BadPacketConfig `mapstructure:"bad_packet" yaml:"bad_packet"`
	Heartbeat HeartbeatConfig `mapstructure:"heartbeat" yaml:"heartbeat"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
	Stats     StatsConfig     `mapstructure:"stats" yaml:"stats"`
	Sender    SenderConfig    `mapstructure:"sender" yaml:"sender"`
}

// BadPacketConfig configures the bad packet defender.
type BadPacketConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Threshold is the number of bad packets tolerated before disconnecting
	Threshold int `mapstructure:"threshold" yaml:"threshold" validate:"min=1"`

	// Window lets counters expire after this long (0 = never)
	Window time.Duration `mapstructure:"window" yaml:"window" validate:"min=0"`
}

// HeartbeatConfig configures the connection check manager.
type HeartbeatConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	Interval time.Duration `mapstructure:"interval" yaml:"interval" validate:"gt=0"`
}

// RateLimitConfig configures per-client packet rate limiting.
type RateLimitConfig struct {
	Enabled          bool `mapstructure:"enabled" yaml:"enabled"`
	PacketsPerSecond uint `mapstructure:"packets_per_second" yaml:"packets_per_second"`
	Burst            uint `mapstructure:"burst" yaml:"burst"`
}

// StatsConfig configures periodic resource usage logging.
type StatsConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	Interval time.Duration `mapstructure:"interval" yaml:"interval" validate:"gt=0"`
}

// SenderConfig enables the command sender manager.
type SenderConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port serving /metrics
	Port int `mapstructure:"port" yaml:"port" validate:"min=0,max=65535"`
}

// SessionsConfig configures session recording.
type SessionsConfig struct {
	Enabled bool               `mapstructure:"enabled" yaml:"enabled"`
	Store   SessionStoreConfig `mapstructure:"store" yaml:"store"`
	Archive ArchiveConfig      `mapstructure:"archive" yaml:"archive"`
}

// SessionStoreConfig specifies the session store.
//
// The Type field determines which store implementation is used.
// Only the corresponding type-specific configuration section is used.
type SessionStoreConfig struct {
	// Type specifies which store implementation to use
	// Valid values: memory, badger
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=memory badger"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger" yaml:"badger"`
}

// ArchiveConfig specifies where closed sessions are exported.
type ArchiveConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Interval is how often stored sessions are uploaded
	Interval time.Duration `mapstructure:"interval" yaml:"interval" validate:"gt=0"`

	// Type specifies the archive backend
	// Valid values: s3
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=s3"`

	// S3 contains S3-specific configuration
	// Only used when Type = "s3"
	S3 map[string]any `mapstructure:"s3" yaml:"s3"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (VALIDAY_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables, switch defaults
// and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use VALIDAY_ prefix and underscores
	// Example: VALIDAY_SERVER_PORT=9000
	v.SetEnvPrefix("VALIDAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Booleans and the port have meaningful zero values, so their defaults
	// are set here rather than in ApplyDefaults.
	v.SetDefault("server.port", server.DefaultSettings().Port)
	v.SetDefault("managers.bad_packet.enabled", true)
	v.SetDefault("managers.heartbeat.enabled", true)
	v.SetDefault("managers.sender.enabled", true)
	v.SetDefault("managers.stats.enabled", false)
	v.SetDefault("managers.rate_limit.enabled", false)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("sessions.enabled", false)
	v.SetDefault("sessions.archive.enabled", false)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/validay/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			// A missing config file is acceptable - use defaults
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "validay")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "validay")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
