package config

import (
	"errors"
	"testing"

	"github.com/marmos91/validay/pkg/command"
	"github.com/marmos91/validay/pkg/logger"
	"github.com/marmos91/validay/pkg/managers/commandhandler"
	"github.com/marmos91/validay/pkg/managers/metricsmgr"
	"github.com/marmos91/validay/pkg/managers/sessions"
	"github.com/marmos91/validay/pkg/managers/stats"
	"github.com/marmos91/validay/pkg/server"
	sessionMemory "github.com/marmos91/validay/pkg/session/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSettings(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.Marker = "aabbcc"
	cfg.Server.ByteOrder = "big"
	cfg.Server.MaxConnections = 5
	cfg.Server.ShowSocketErrors = true

	log := logger.Nop()
	settings, err := BuildSettings(cfg, log)
	require.NoError(t, err)

	assert.Equal(t, []byte{0xaa, 0xbb, 0xcc}, settings.Marker)
	assert.Equal(t, 5, settings.MaxConnections)
	assert.False(t, settings.HideSocketErrors)
	assert.Equal(t, log, settings.Logger)

	id, err := settings.IDDecoder([]byte{0x01, 0x02})
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0102), id)
}

func TestBuildSettings_Invalid(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.Marker = "abc"
	_, err := BuildSettings(cfg, nil)
	assert.Error(t, err)

	cfg = GetDefaultConfig()
	cfg.Server.Host = "not-an-ip"
	_, err = BuildSettings(cfg, nil)
	assert.True(t, errors.Is(err, server.ErrInvalidSettings))
}

func TestBuildLogger(t *testing.T) {
	l, err := BuildLogger(&LoggingConfig{Level: "WARN", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	assert.Equal(t, logger.LevelWarning, l.Level())

	_, err = BuildLogger(&LoggingConfig{Level: "LOUD", Format: "text", Output: "stdout"})
	assert.Error(t, err)
}

func managerNames(t *testing.T, cfg *Config, deps ManagerDeps) []string {
	t.Helper()
	managers, err := CreateManagers(cfg, deps)
	require.NoError(t, err)

	names := make([]string, len(managers))
	for i, m := range managers {
		names[i] = m.Name()
	}
	return names
}

func TestCreateManagers_Defaults(t *testing.T) {
	names := managerNames(t, GetDefaultConfig(), ManagerDeps{Commands: command.NewRegistry()})
	assert.Equal(t, []string{
		commandhandler.Name,
		"BadPacketDefenderManager",
		"ConnectionCheckManager",
		"CommandSenderManager",
	}, names)
}

func TestCreateManagers_Everything(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Managers.RateLimit.Enabled = true
	cfg.Managers.Stats.Enabled = true
	cfg.Metrics.Enabled = true
	cfg.Sessions.Enabled = true

	names := managerNames(t, cfg, ManagerDeps{
		Commands:     command.NewRegistry(),
		SessionStore: sessionMemory.New(),
	})
	assert.Equal(t, []string{
		commandhandler.Name,
		"BadPacketDefenderManager",
		"RateLimitManager",
		"ConnectionCheckManager",
		"CommandSenderManager",
		sessions.Name,
		metricsmgr.Name,
		stats.Name,
	}, names)
}

func TestCreateManagers_Errors(t *testing.T) {
	_, err := CreateManagers(GetDefaultConfig(), ManagerDeps{})
	assert.Error(t, err)

	cfg := GetDefaultConfig()
	cfg.Sessions.Enabled = true
	_, err = CreateManagers(cfg, ManagerDeps{Commands: command.NewRegistry()})
	assert.ErrorContains(t, err, "session store is required")
}

func TestInitializeMetrics_Disabled(t *testing.T) {
	result := InitializeMetrics(GetDefaultConfig())
	assert.Nil(t, result.Server)
	assert.NotNil(t, result.ServerMetrics)
	assert.NotNil(t, result.SessionMetrics)
}
