package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goodtune/browseback/internal/activetab"
	"github.com/goodtune/browseback/internal/api"
	"github.com/goodtune/browseback/internal/config"
	"github.com/goodtune/browseback/internal/domain"
	"github.com/goodtune/browseback/internal/estimate"
	"github.com/goodtune/browseback/internal/history"
	"github.com/goodtune/browseback/internal/history/chromium"
	"github.com/goodtune/browseback/internal/metrics"
	"github.com/goodtune/browseback/internal/notify"
	"github.com/goodtune/browseback/internal/report"
	"github.com/goodtune/browseback/internal/scheduler"
	"github.com/goodtune/browseback/internal/storage"
	"github.com/goodtune/browseback/internal/storage/bolt"
	"github.com/goodtune/browseback/internal/storage/memory"
	"github.com/goodtune/browseback/internal/storage/redis"
	"github.com/goodtune/browseback/internal/systemd"
	"github.com/goodtune/browseback/internal/usage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start browseback server",
	Long:  `Start the browseback daemon: usage tracker, daily reset, history refresher, local API and metrics endpoints.`,
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
		Msg("Starting browseback")

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
	state := storage.NewState(store)

	logger.Info().
		Str("type", cfg.Storage.Type).
		Str("path", cfg.Storage.Path).
		Msg("Storage initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Reporting
	estimator, err := newEstimator(cfg.Estimator)
	if err != nil {
		return err
	}
	adapter := report.NewAdapter(estimator)

	// Notifications
	feed := notify.NewFeed(cfg.Notify.FeedSize)
	sinks := notify.Multi{notify.NewLogSink(logger), feed}
	if cfg.Notify.WebhookURL != "" {
		sinks = append(sinks, notify.NewWebhookSink(
			cfg.Notify.WebhookURL,
			parseDuration(cfg.Notify.WebhookTimeout, 5*time.Second),
		))
		logger.Info().Str("url", cfg.Notify.WebhookURL).Msg("Webhook notifications enabled")
	}

	// Initialize Usage Tracker
	beacon := activetab.NewBeacon(parseDuration(cfg.Tracking.ActiveTabStaleAfter, activetab.DefaultStaleAfter))
	tracker := usage.NewTracker(
		state,
		beacon,
		sinks,
		usage.RealClock{},
		usage.Config{
			Interval: parseDuration(cfg.Tracking.TickInterval, usage.DefaultInterval),
		},
		logger,
	)

	logger.Info().Dur("interval", tracker.Interval()).Msg("Usage Tracker initialized")

	// Initialize Reset Scheduler; its first check runs immediately
	resetScheduler := usage.NewResetScheduler(
		tracker,
		parseDuration(cfg.Tracking.ResetCheckInterval, usage.DefaultResetCheckInterval),
		usage.RealClock{},
		logger,
	)
	resetScheduler.Start(ctx)
	logger.Info().Msg("Reset Scheduler initialized")

	// Periodic jobs
	jobs := scheduler.New(logger)
	jobs.Every("usage-tick", tracker.Interval(), func(ctx context.Context) error {
		_, err := tracker.RunTick(ctx)
		return err
	})

	var refresher *history.Refresher
	provider, err := newHistoryProvider(cfg.History, logger)
	switch {
	case err != nil:
		logger.Warn().Err(err).Msg("Browser history unavailable, reports will be empty")
	case provider == nil:
		logger.Info().Msg("History source disabled")
	default:
		refresher = history.NewRefresher(provider, state, history.RefresherConfig{
			Lookback:   parseDuration(cfg.History.Lookback, 7*24*time.Hour),
			MaxResults: cfg.History.MaxResults,
		}, logger)
		jobs.EveryNow("history-refresh", parseDuration(cfg.History.RefreshInterval, 10*time.Minute), refresher.Refresh)
	}

	if interval := systemd.WatchdogInterval(); interval > 0 {
		jobs.Every("systemd-watchdog", interval, func(context.Context) error {
			return systemd.NotifyWatchdog()
		})
	}

	jobs.Start(ctx)

	// Initialize API Server
	apiAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.APIPort)
	apiServer, err := api.NewServer(api.Config{ListenAddr: apiAddr}, api.Deps{
		State:   state,
		Tracker: tracker,
		Beacon:  beacon,
		Adapter: adapter,
		Feed:    feed,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize API Server: %w", err)
	}
	if err := apiServer.Watch(ctx); err != nil {
		return fmt.Errorf("failed to watch storage: %w", err)
	}

	// Use systemd socket-activated listener if available
	if sdListeners.API != nil {
		apiServer.SetListener(sdListeners.API)
	}

	if err := apiServer.Start(); err != nil {
		return fmt.Errorf("failed to start API Server: %w", err)
	}

	// Initialize Metrics Server
	var metricsServer *metrics.Server
	if cfg.Server.MetricsPort > 0 || sdListeners.Metrics != nil {
		metricsAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.MetricsPort)
		metricsServer = metrics.NewServer(metricsAddr, logger)

		if sdListeners.Metrics != nil {
			metricsServer.SetListener(sdListeners.Metrics)
		}

		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start Metrics Server: %w", err)
		}
	}

	// Log startup complete
	logger.Info().Msg("browseback startup complete")
	logger.Info().Msgf("API: http://%s", apiAddr)
	if metricsServer != nil {
		logger.Info().Msgf("Metrics: http://%s:%d/metrics", cfg.Server.BindAddress, cfg.Server.MetricsPort)
	}

	// Notify systemd that we're ready to serve requests
	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	} else {
		logger.Debug().Msg("Sent systemd ready notification")
	}

	// Wait for signals (shutdown or refresh)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	for sig := range sigChan {
		if sig != syscall.SIGHUP {
			logger.Info().Msg("Shutdown signal received, gracefully stopping...")
			break
		}

		logger.Info().Msg("SIGHUP received, refreshing history...")
		if refresher == nil {
			logger.Warn().Msg("No history source configured")
			continue
		}
		if err := refresher.Refresh(ctx); err != nil {
			logger.Error().Err(err).Msg("Failed to refresh history")
		}
	}

	// Notify systemd that we're stopping
	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}

	// Stop background work before the servers and the store
	cancel()
	jobs.Stop()
	resetScheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error stopping API Server")
	}

	if metricsServer != nil {
		if err := metricsServer.Stop(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Error stopping Metrics Server")
		}
	}

	logger.Info().Msg("browseback stopped")

	return nil
}

func openStorage(cfg config.StorageConfig) (storage.KeyValueStore, error) {
	storageType := cfg.Type
	if storageType == "" {
		storageType = "bolt"
	}

	switch storageType {
	case "bolt":
		return bolt.Open(cfg.Path)
	case "redis":
		return redis.Open(cfg.Redis)
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s (must be bolt, redis or memory)", storageType)
	}
}

// openState opens storage for a one-shot command.
func openState(cfg *config.Config) (*storage.State, func(), error) {
	store, err := openStorage(cfg.Storage)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return storage.NewState(store), func() { _ = store.Close() }, nil
}

// newHistoryProvider returns nil when the history source is disabled.
func newHistoryProvider(cfg config.HistoryConfig, logger zerolog.Logger) (history.Provider, error) {
	switch cfg.Source {
	case "none":
		return nil, nil
	case "", "chromium":
		provider, err := chromium.New(cfg.Path, logger)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("path", provider.Path()).Msg("Reading Chromium history")
		return provider, nil
	default:
		return nil, fmt.Errorf("unsupported history source: %s", cfg.Source)
	}
}

func newEstimator(cfg config.EstimatorConfig) (*estimate.Estimator, error) {
	classifier, err := domain.NewClassifier(domain.DefaultCacheSize)
	if err != nil {
		return nil, err
	}
	return &estimate.Estimator{
		MaxGap:        parseDuration(cfg.MaxSessionGap, estimate.DefaultMaxSessionGap),
		TrailingVisit: parseDuration(cfg.TrailingVisit, estimate.DefaultTrailingVisit),
		Classifier:    classifier,
	}, nil
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	// Set log level
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	// Set output format
	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Default to JSON
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// quietLogger is used by one-shot commands
func quietLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.ErrorLevel).With().Timestamp().Logger()
}

// parseDuration parses a duration string with a fallback
func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
