package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/driftfs/driftfs/internal/logger"
	"github.com/driftfs/driftfs/internal/telemetry"
	"github.com/driftfs/driftfs/pkg/api"
	"github.com/driftfs/driftfs/pkg/config"
	"github.com/driftfs/driftfs/pkg/metrics"
	metricsprom "github.com/driftfs/driftfs/pkg/metrics/prometheus"
	"github.com/driftfs/driftfs/pkg/vfs"
	"github.com/driftfs/driftfs/pkg/vfs/store"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the DriftFS server",
	Long: `Start the DriftFS server with the specified configuration.

The server runs in the foreground until interrupted. Use --config to specify
a custom configuration file, or it will use the default location at
$XDG_CONFIG_HOME/driftfs/config.yaml.

Examples:
  # Start with default config location
  driftfs start

  # Start with custom config file
  driftfs start --config /etc/driftfs/config.yaml

  # Start with environment variable overrides
  DRIFTFS_LOGGING_LEVEL=DEBUG driftfs start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	// Initialize the structured logger
	if err := logger.Init(cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry (if enabled)
	telemetryCfg := telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "driftfs",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	}
	telemetryShutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	fmt.Println("DriftFS - A deduplicating virtual filesystem")
	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	} else {
		logger.Info("Telemetry disabled")
	}

	// Initialize metrics before the provider so vfs metrics register against
	// the live registry
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		logger.Info("Metrics enabled", "path", "/metrics")
	} else {
		logger.Info("Metrics collection disabled")
	}

	// Open the metadata store
	st, err := store.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize metadata store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("metadata store close error", "error", err)
		}
	}()
	logger.Info("Metadata store initialized", "type", cfg.Database.Type)

	// Open the payload store
	payloads, err := config.NewPayloadStore(ctx, cfg.Payload)
	if err != nil {
		return fmt.Errorf("failed to initialize payload store: %w", err)
	}
	logger.Info("Payload store initialized", "type", cfg.Payload.Type)

	// Build the filesystem provider and the orphan reaper
	var providerOpts []vfs.Option
	var reaperOpts []vfs.ReaperOption
	if metrics.IsEnabled() {
		vfsMetrics := metricsprom.NewVFSMetrics()
		providerOpts = append(providerOpts, vfs.WithMetrics(vfsMetrics))
		reaperOpts = append(reaperOpts, vfs.WithReaperMetrics(vfsMetrics))
	}
	provider := vfs.NewProvider(st, payloads, providerOpts...)

	reaper := vfs.NewReaper(st, payloads, cfg.Reaper, reaperOpts...)
	reaperDone := make(chan struct{})
	go func() {
		defer close(reaperDone)
		reaper.Run(ctx)
	}()
	logger.Info("Orphan reaper started", "interval", cfg.Reaper.Interval, "batch_size", cfg.Reaper.BatchSize)

	// Create the API server
	srv, err := api.NewServer(cfg.API, provider)
	if err != nil {
		return fmt.Errorf("failed to create API server: %w", err)
	}
	logger.Info("API server configured", "port", cfg.API.Port)

	// Start server in background
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Start(ctx)
	}()

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Server is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()

		// Wait for server to shut down gracefully
		select {
		case err := <-serverDone:
			if err != nil {
				logger.Error("Server shutdown error", "error", err)
				return err
			}
		case <-time.After(cfg.ShutdownTimeout):
			logger.Error("Shutdown timed out", "timeout", cfg.ShutdownTimeout)
			return fmt.Errorf("shutdown timed out after %s", cfg.ShutdownTimeout)
		}
		<-reaperDone
		logger.Info("Server stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		cancel()
		<-reaperDone
		if err != nil {
			logger.Error("Server error", "error", err)
			return err
		}
		logger.Info("Server stopped")
	}

	return nil
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}
