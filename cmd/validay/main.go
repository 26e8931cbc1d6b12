package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/validay/internal/sample"
	"github.com/marmos91/validay/pkg/config"
	"github.com/marmos91/validay/pkg/logger"
	"github.com/marmos91/validay/pkg/server"
	"github.com/marmos91/validay/pkg/session"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/validay/config.yaml)")
	logLevel := flag.String("log-level", "", "Override the configured log level (LOW, INFO, WARNING, ERROR, CRITICAL)")
	initConfig := flag.Bool("init", false, "Write a default config file and exit")
	force := flag.Bool("force", false, "Overwrite an existing config file with -init")
	flag.Parse()

	if *initConfig {
		runInit(*configPath, *force)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	appLog, err := config.BuildLogger(&cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = appLog.Close() }()
	logger.SetDefault(appLog)

	fmt.Println("Validay - TCP command server")
	logger.Info("Log level set to: %s", cfg.Logging.Level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx, cfg, appLog); err != nil {
		logger.Error("Server error: %v", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func runInit(path string, force bool) {
	if path == "" {
		created, err := config.InitConfig(force)
		if err != nil {
			log.Fatalf("Failed to initialize config: %v", err)
		}
		fmt.Printf("Configuration written to %s\n", created)
		return
	}
	if err := config.InitConfigToPath(path, force); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}
	fmt.Printf("Configuration written to %s\n", path)
}

func run(ctx context.Context, cfg *config.Config, appLog logger.Logger) error {
	settings, err := config.BuildSettings(cfg, appLog)
	if err != nil {
		return err
	}

	srv, err := server.New(settings)
	if err != nil {
		return err
	}

	if err := server.RegisterCommand(srv, sample.SimpleMessageID, sample.NewSimpleMessageCommand); err != nil {
		return err
	}

	metricsResult := config.InitializeMetrics(cfg)

	var (
		store    session.Store
		archiver session.Archiver
	)
	if cfg.Sessions.Enabled {
		store, err = config.CreateSessionStore(ctx, &cfg.Sessions.Store)
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Error("Failed to close session store: %v", err)
			}
		}()

		if cfg.Sessions.Archive.Enabled {
			archiver, err = config.CreateArchiver(ctx, &cfg.Sessions.Archive)
			if err != nil {
				return err
			}
		}
	}

	managers, err := config.CreateManagers(cfg, config.ManagerDeps{
		Commands:     srv.Commands(),
		Pool:         srv.CommandPool(),
		Metrics:      metricsResult,
		SessionStore: store,
		Archiver:     archiver,
	})
	if err != nil {
		return err
	}
	for _, m := range managers {
		if err := srv.RegisterManager(m); err != nil {
			return err
		}
	}

	if metricsResult.Server != nil {
		go func() {
			if err := metricsResult.Server.Start(ctx); err != nil {
				logger.Error("Metrics server error: %v", err)
			}
		}()
	}

	logger.Info("Server configuration:")
	logger.Info("  Address: %s:%d", settings.IP, settings.Port)
	if settings.MaxConnections > 0 {
		logger.Info("  Max connections: %d", settings.MaxConnections)
	} else {
		logger.Info("  Max connections: unlimited")
	}
	logger.Info("  Marker: % X, id byte order: %s", settings.Marker, cfg.Server.ByteOrder)
	logger.Info("  Managers: %d", len(managers))

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Server is starting. Press Ctrl+C to stop.")
	return srv.Run(sigCtx)
}
