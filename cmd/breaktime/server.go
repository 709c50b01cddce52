package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goodtune/breaktime/internal/admin"
	"github.com/goodtune/breaktime/internal/browser"
	"github.com/goodtune/breaktime/internal/budget"
	"github.com/goodtune/breaktime/internal/config"
	"github.com/goodtune/breaktime/internal/metrics"
	"github.com/goodtune/breaktime/internal/notify"
	"github.com/goodtune/breaktime/internal/storage"
	"github.com/goodtune/breaktime/internal/storage/bolt"
	"github.com/goodtune/breaktime/internal/storage/redis"
	"github.com/goodtune/breaktime/internal/systemd"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the breaktime daemon",
	Long:  `Start the background tracker with its scheduler, settings API and metrics endpoints.`,
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting breaktime")

	// Check for systemd socket activation
	sdListeners, err := systemd.GetListeners()
	if err != nil {
		return fmt.Errorf("failed to get systemd listeners: %w", err)
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	// Initialize storage
	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	logger.Info().
		Str("type", cfg.Storage.Type).
		Msg("Storage initialized")

	// Initialize focus agent client
	inspector := browser.NewAgentClient(browser.AgentConfig{
		Endpoint: cfg.Agent.Endpoint,
		Timeout:  parseDuration(cfg.Agent.Timeout, browser.DefaultAgentTimeout),
	}, logger)

	// Initialize notifier
	notifier, err := buildNotifier(cfg.Notifier, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize notifier: %w", err)
	}

	// Initialize budget tracker
	tracker, err := budget.NewTracker(store.State(), inspector, notifier, budget.Config{
		BreakURL:      cfg.Budget.BreakURL,
		WarningWindow: parseDuration(cfg.Tracker.WarningWindow, time.Minute),
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize budget tracker: %w", err)
	}

	logger.Info().
		Str("break_url", cfg.Budget.BreakURL).
		Msg("Budget tracker initialized")

	// Initialize scheduler
	scheduler := budget.NewScheduler(
		tracker,
		parseDuration(cfg.Tracker.Interval, budget.DefaultTickInterval),
		logger,
	)
	scheduler.Start()

	// Initialize settings API server
	var adminServer *admin.Server
	if cfg.Admin.Enabled {
		adminAddr := fmt.Sprintf("%s:%d", cfg.Admin.BindAddress, cfg.Admin.Port)
		adminServer = admin.NewServer(admin.Config{ListenAddr: adminAddr}, store.State(), tracker, logger)

		if sdListeners.Activated && sdListeners.Admin != nil {
			adminServer.SetListener(sdListeners.Admin)
		}

		if err := adminServer.Start(); err != nil {
			return fmt.Errorf("failed to start settings API server: %w", err)
		}

		logger.Info().
			Str("addr", adminAddr).
			Msg("Settings API server started")
	}

	// Initialize metrics server
	metricsAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.MetricsPort)
	metricsServer := metrics.NewServer(metricsAddr, logger)

	if sdListeners.Activated && sdListeners.Metrics != nil {
		metricsServer.SetListener(sdListeners.Metrics)
	}

	if err := metricsServer.Start(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	logger.Info().
		Str("addr", metricsAddr).
		Msg("Metrics server started")

	logger.Info().Msg("breaktime startup complete")

	// Notify systemd that we're ready
	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan

	logger.Info().Msg("Shutdown signal received, gracefully stopping...")

	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}

	// Stop servers
	scheduler.Stop()

	if adminServer != nil {
		if err := adminServer.Stop(); err != nil {
			logger.Error().Err(err).Msg("Error stopping settings API server")
		}
	}

	if err := metricsServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping metrics server")
	}

	logger.Info().Msg("breaktime stopped")

	return nil
}

func openStorage(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case "redis":
		return redis.Open(cfg.Redis)
	case "bolt", "":
		return bolt.Open(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

func buildNotifier(cfg config.NotifierConfig, logger zerolog.Logger) (notify.Notifier, error) {
	switch cfg.Type {
	case "command":
		return notify.NewCommand(cfg.Command, logger)
	case "log", "":
		return notify.NewLog(logger), nil
	default:
		return nil, fmt.Errorf("unsupported notifier type: %s", cfg.Type)
	}
}
