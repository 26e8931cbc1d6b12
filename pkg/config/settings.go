package config

import (
	"encoding/hex"
	"fmt"

	"github.com/marmos91/validay/pkg/command"
	"github.com/marmos91/validay/pkg/logger"
	"github.com/marmos91/validay/pkg/server"
)

// BuildSettings converts the server section into server.Settings.
//
// The marker is decoded from hex and the id decoder is chosen from
// ByteOrder. log becomes the server logger; nil keeps the default one.
func BuildSettings(cfg *Config, log logger.Logger) (server.Settings, error) {
	sc := cfg.Server

	marker, err := hex.DecodeString(sc.Marker)
	if err != nil {
		return server.Settings{}, fmt.Errorf("server.marker: %w", err)
	}

	decode, err := command.DecoderFor(sc.ByteOrder)
	if err != nil {
		return server.Settings{}, fmt.Errorf("server.byte_order: %w", err)
	}

	settings := server.DefaultSettings()
	settings.IP = sc.Host
	settings.Port = sc.Port
	settings.Backlog = sc.Backlog
	settings.BufferSize = sc.BufferSize
	settings.MaxConnections = sc.MaxConnections
	settings.MaxDepth = sc.MaxDepth
	settings.MaxPacketSize = sc.MaxPacketSize
	settings.Marker = marker
	settings.IDDecoder = decode
	settings.SendQueueSize = sc.SendQueueSize
	settings.ReadTimeout = sc.ReadTimeout
	settings.WriteTimeout = sc.WriteTimeout
	settings.ShutdownTimeout = sc.ShutdownTimeout
	settings.HideSocketErrors = !sc.ShowSocketErrors
	settings.ReportSendErrors = sc.ReportSendErrors
	if log != nil {
		settings.Logger = log
	}

	if err := settings.Validate(); err != nil {
		return server.Settings{}, err
	}
	return settings, nil
}

// BuildLogger creates the logger described by the logging section.
func BuildLogger(cfg *LoggingConfig) (*logger.Logrus, error) {
	return logger.New(logger.Config{Level: cfg.Level, Format: cfg.Format, Output: cfg.Output})
}
