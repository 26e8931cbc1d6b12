package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "info"

server:
  port: 7000
  marker: "aabb"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected normalized level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("Expected port 7000, got %d", cfg.Server.Port)
	}
	if cfg.Server.Marker != "aabb" {
		t.Errorf("Expected marker 'aabb', got %q", cfg.Server.Marker)
	}
	if cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Errorf("Expected default shutdown_timeout 5s, got %v", cfg.Server.ShutdownTimeout)
	}
	if !cfg.Managers.BadPacket.Enabled || !cfg.Managers.Heartbeat.Enabled {
		t.Error("Expected bad packet and heartbeat managers to be enabled by default")
	}
	if cfg.Metrics.Enabled {
		t.Error("Expected metrics to be disabled by default")
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	// Use a non-existent path so the user's ~/.config/validay is not read
	nonExistentPath := filepath.Join(t.TempDir(), "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("Expected no error with missing config file, got: %v", err)
	}

	if cfg.Server.Port != 8888 {
		t.Errorf("Expected default port 8888, got %d", cfg.Server.Port)
	}
	if cfg.Server.Marker != "5644" {
		t.Errorf("Expected default marker '5644', got %q", cfg.Server.Marker)
	}
	if cfg.Server.ByteOrder != "little" {
		t.Errorf("Expected default byte order 'little', got %q", cfg.Server.ByteOrder)
	}
	if cfg.Sessions.Store.Type != "memory" {
		t.Errorf("Expected default session store 'memory', got %q", cfg.Sessions.Store.Type)
	}
}

func TestLoad_ExplicitDisable(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	configContent := `
managers:
  heartbeat:
    enabled: false
    interval: 2s
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Managers.Heartbeat.Enabled {
		t.Error("Expected heartbeat to stay disabled")
	}
	if cfg.Managers.Heartbeat.Interval != 2*time.Second {
		t.Errorf("Expected interval 2s, got %v", cfg.Managers.Heartbeat.Interval)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("VALIDAY_SERVER_PORT", "9100")
	t.Setenv("VALIDAY_METRICS_ENABLED", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Port != 9100 {
		t.Errorf("Expected port 9100 from environment, got %d", cfg.Server.Port)
	}
	if !cfg.Metrics.Enabled {
		t.Error("Expected metrics enabled from environment")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "invalid.yaml")

	configContent := `
logging:
  level: INFO
  invalid yaml here [[[
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected error with invalid YAML, got nil")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	configContent := `
server:
  byte_order: middle
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected validation error for unknown byte order")
	}
}

func TestLoad_TOML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")

	configContent := `
[logging]
level = "WARN"
format = "json"

[server]
byte_order = "big"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load TOML config: %v", err)
	}

	if cfg.Logging.Level != "WARN" {
		t.Errorf("Expected level 'WARN', got %q", cfg.Logging.Level)
	}
	if cfg.Server.ByteOrder != "big" {
		t.Errorf("Expected byte order 'big', got %q", cfg.Server.ByteOrder)
	}
}

func TestGetConfigDir_XDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	if got := GetConfigDir(); got != filepath.Join(dir, "validay") {
		t.Errorf("Expected %s, got %s", filepath.Join(dir, "validay"), got)
	}
	if got := GetDefaultConfigPath(); got != filepath.Join(dir, "validay", "config.yaml") {
		t.Errorf("Unexpected default config path %s", got)
	}
	if ConfigExists() {
		t.Error("Expected no config in a fresh directory")
	}
}
