package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/loftlabs/loftfs/internal/logger"
	"github.com/loftlabs/loftfs/internal/server"
	"github.com/loftlabs/loftfs/pkg/config"
	"github.com/loftlabs/loftfs/pkg/metrics"
	"github.com/loftlabs/loftfs/pkg/storage"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: "+config.GetDefaultConfigPath()+")")
	logLevel := flag.String("log-level", "", "Override log level (DEBUG, INFO, WARN, ERROR)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Command-line level wins over file and environment.
	level := cfg.Logging.Level
	if *logLevel != "" {
		level = *logLevel
	}
	logger.SetLevel(level)
	if err := logger.SetOutput(cfg.Logging.Output); err != nil {
		log.Fatalf("Failed to configure log output: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fmt.Println("LoftFS - Personal Storage Server")
	logger.Info("Log level set to: %s", level)
	logger.Info("Canonical root: %s", cfg.Storage.DataRoot)
	logger.Info("Mirror root: %s", cfg.Storage.MirrorRoot)

	layout, err := storage.NewLayout(cfg.Storage.DataRoot, cfg.Storage.MirrorRoot)
	if err != nil {
		log.Fatalf("Failed to initialize storage layout: %v", err)
	}

	authStore, err := config.CreateAuthStore(ctx, &cfg.Auth)
	if err != nil {
		log.Fatalf("Failed to create auth store: %v", err)
	}
	defer func() {
		if err := authStore.Close(); err != nil {
			logger.Error("Failed to close auth store: %v", err)
		}
	}()
	logger.Info("Auth store: %s", cfg.Auth.Type)

	archiveStore, err := config.CreateArchiveStore(ctx, &cfg.Archive)
	if err != nil {
		log.Fatalf("Failed to create archive store: %v", err)
	}
	logger.Info("Archive store: %s", cfg.Archive.Type)

	index := storage.NewShareIndex(layout)
	bus := storage.NewNotificationBus()
	propagator := storage.NewMutationPropagator(layout, index, bus, archiveStore)

	var protocolMetrics metrics.ProtocolMetrics
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		protocolMetrics = metrics.NewProtocolMetrics()

		metricsServer := metrics.NewServer(metrics.ServerConfig{Port: cfg.Metrics.Port})
		go func() {
			if err := metricsServer.Start(ctx); err != nil {
				logger.Error("Metrics server error: %v", err)
			}
		}()
	}

	serverConfig := server.Config{
		ListenAddr:     cfg.Server.ListenAddr,
		MaxConnections: cfg.Server.MaxConnections,
	}

	logger.Info("Server configuration:")
	logger.Info("  Listen address: %s", serverConfig.ListenAddr)
	if serverConfig.MaxConnections > 0 {
		logger.Info("  Max connections: %d", serverConfig.MaxConnections)
	} else {
		logger.Info("  Max connections: unlimited")
	}
	logger.Info("  Shutdown timeout: %v", cfg.Server.ShutdownTimeout)
	if cfg.Metrics.Enabled {
		logger.Info("  Metrics: http://localhost:%d/metrics", cfg.Metrics.Port)
	} else {
		logger.Info("  Metrics: disabled")
	}

	srv := server.New(serverConfig, authStore, layout, propagator, bus, protocolMetrics)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Serve(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Server is running on %s. Press Ctrl+C to stop.", serverConfig.ListenAddr)

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown...")
		cancel()

		select {
		case err := <-serverDone:
			if err != nil {
				logger.Error("Server shutdown error: %v", err)
				os.Exit(1)
			}
			logger.Info("Server stopped gracefully")
		case <-time.After(cfg.Server.ShutdownTimeout):
			logger.Error("Shutdown timed out after %v", cfg.Server.ShutdownTimeout)
			os.Exit(1)
		}

	case err := <-serverDone:
		if err != nil {
			logger.Error("Server error: %v", err)
			os.Exit(1)
		}
		logger.Info("Server stopped")
	}
}
