package config

import (
	"errors"
	"fmt"

	"github.com/marmos91/validay/pkg/command"
	"github.com/marmos91/validay/pkg/manager"
	"github.com/marmos91/validay/pkg/managers/badpacket"
	"github.com/marmos91/validay/pkg/managers/commandhandler"
	"github.com/marmos91/validay/pkg/managers/heartbeat"
	"github.com/marmos91/validay/pkg/managers/metricsmgr"
	"github.com/marmos91/validay/pkg/managers/ratelimit"
	"github.com/marmos91/validay/pkg/managers/sender"
	"github.com/marmos91/validay/pkg/managers/sessions"
	"github.com/marmos91/validay/pkg/managers/stats"
	"github.com/marmos91/validay/pkg/metrics"
	"github.com/marmos91/validay/pkg/session"
)

// ManagerDeps carries the runtime objects managers are built around.
type ManagerDeps struct {
	// Commands and Pool back the command handler and the bad packet
	// defender. Commands is required; a nil Pool creates a private one.
	Commands *command.Registry
	Pool     *command.Pool

	// Metrics comes from InitializeMetrics. Nil disables metrics.
	Metrics *MetricsResult

	// SessionStore is required when sessions are enabled.
	SessionStore session.Store

	// Archiver is optional even when archiving is enabled in cfg.
	Archiver session.Archiver
}

// CreateManagers creates all enabled managers from the configuration, in
// the order they should be registered (and therefore started).
//
// The command handler is always first. Policing managers (bad packet,
// rate limit) come right after it; observers come last.
func CreateManagers(cfg *Config, deps ManagerDeps) ([]manager.Manager, error) {
	if deps.Commands == nil {
		return nil, errors.New("managers: command registry is required")
	}

	decode, encode, err := command.ByteOrder(cfg.Server.ByteOrder)
	if err != nil {
		return nil, fmt.Errorf("server.byte_order: %w", err)
	}
	settings, err := BuildSettings(cfg, nil)
	if err != nil {
		return nil, err
	}

	serverMetrics := metrics.NewNoopServerMetrics()
	sessionMetrics := metrics.NewNoopSessionMetrics()
	if deps.Metrics != nil {
		serverMetrics = deps.Metrics.ServerMetrics
		sessionMetrics = deps.Metrics.SessionMetrics
	}

	mc := cfg.Managers
	managers := []manager.Manager{
		commandhandler.New(deps.Commands, deps.Pool, decode),
	}

	if mc.BadPacket.Enabled {
		managers = append(managers, badpacket.New(deps.Commands, decode, badpacket.Config{
			Threshold: mc.BadPacket.Threshold,
			Window:    mc.BadPacket.Window,
		}))
	}

	if mc.RateLimit.Enabled {
		managers = append(managers, ratelimit.New(ratelimit.Config{
			PacketsPerSecond: mc.RateLimit.PacketsPerSecond,
			Burst:            mc.RateLimit.Burst,
		}))
	}

	if mc.Heartbeat.Enabled {
		managers = append(managers, heartbeat.New(mc.Heartbeat.Interval))
	}

	if mc.Sender.Enabled {
		managers = append(managers, sender.New(settings.Marker, encode))
	}

	if cfg.Sessions.Enabled {
		if deps.SessionStore == nil {
			return nil, errors.New("sessions: a session store is required when sessions are enabled")
		}
		sc := sessions.Config{Metrics: sessionMetrics}
		if cfg.Sessions.Archive.Enabled {
			sc.Archiver = deps.Archiver
			sc.ArchiveInterval = cfg.Sessions.Archive.Interval
		}
		managers = append(managers, sessions.New(deps.SessionStore, sc))
	}

	if cfg.Metrics.Enabled {
		managers = append(managers, metricsmgr.New(serverMetrics))
	}

	if mc.Stats.Enabled {
		managers = append(managers, stats.New(stats.Config{
			Interval: mc.Stats.Interval,
			Metrics:  serverMetrics,
		}))
	}

	return managers, nil
}
