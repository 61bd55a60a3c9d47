package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/marmos91/offlinekit/internal/buildinfo"
	"github.com/marmos91/offlinekit/internal/bytesize"
	"github.com/marmos91/offlinekit/internal/logger"
	"github.com/marmos91/offlinekit/internal/telemetry"
	"github.com/marmos91/offlinekit/pkg/api"
	"github.com/marmos91/offlinekit/pkg/config"
	"github.com/marmos91/offlinekit/pkg/offline"

	// Registers the prometheus metrics implementation.
	_ "github.com/marmos91/offlinekit/pkg/metrics/prometheus"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the offlinekit daemon",
	Long: `Run the offlinekit daemon in the foreground.

The daemon opens the configured store, restores every persisted region
paused, and serves the control API until SIGINT or SIGTERM. Use a process
supervisor to run it in the background.

Examples:
  offlinekit start
  offlinekit start --config /etc/offlinekit/config.yaml
  OFFLINEKIT_LOGGING_LEVEL=DEBUG offlinekit start`,
	Args: cobra.NoArgs,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cleanup, err := setupObservability(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	// Collectors must exist before the manager hands them to the engine.
	metricsResult := config.InitializeMetrics(cfg)

	backend, err := config.OpenBackend(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store.Type, err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Error("Store close error", logger.Err(err))
		}
	}()

	fetcher, err := config.NewFetcher(ctx, cfg.Transport)
	if err != nil {
		return err
	}

	mgr, err := offline.Open(ctx, backend, fetcher, cfg.ManagerConfig(), offline.WithMetrics(metricsResult.Offline))
	if err != nil {
		return fmt.Errorf("open offline manager: %w", err)
	}
	logger.Info("Offline manager ready",
		logger.KeyStoreType, cfg.Store.Type,
		"regions", len(mgr.ListRegions()),
		logger.KeyHighWaterMark, bytesize.ByteSize(cfg.Store.HighWaterMark.Int64()).String(),
		logger.KeyTileLimit, cfg.Download.MaxTileCount)

	serveErr := serve(ctx, cfg, mgr, metricsResult)

	// The signal context is done by now; give the manager its own deadline.
	closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := mgr.Close(closeCtx); err != nil {
		logger.Error("Offline manager shutdown error", logger.Err(err))
		serveErr = errors.Join(serveErr, err)
	}

	if serveErr == nil {
		logger.Info("offlinekit stopped")
	}
	return serveErr
}

// serve runs the enabled servers until ctx ends or one of them fails.
func serve(ctx context.Context, cfg *config.Config, mgr *offline.Manager, m config.MetricsResult) error {
	g, gctx := errgroup.WithContext(ctx)

	if m.Server != nil {
		g.Go(func() error { return m.Server.Serve(gctx) })
	} else {
		logger.Info("Metrics disabled")
	}

	if cfg.API.IsEnabled() {
		srv := api.NewServer(cfg.API, mgr)
		g.Go(func() error { return srv.Start(gctx) })
	} else {
		logger.Info("API server disabled")
	}

	logger.Info("offlinekit is running, press Ctrl+C to stop")
	<-gctx.Done()
	if ctx.Err() != nil {
		logger.Info("Shutdown signal received")
	}

	err := g.Wait()
	if err != nil {
		logger.Error("Server error", logger.Err(err))
	}
	return err
}

// setupObservability initializes logging, tracing and profiling from cfg.
// The returned cleanup flushes exporters.
func setupObservability(ctx context.Context, cfg *config.Config) (func(), error) {
	err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	info := buildinfo.Get("offlinekit")
	logger.Info("Starting offlinekit",
		"version", info.Version,
		"commit", info.Commit,
		"config", configSource(),
		"log_level", cfg.Logging.Level)

	tc := cfg.Telemetry
	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        tc.Enabled,
		ServiceVersion: info.Version,
		Endpoint:       tc.Endpoint,
		Insecure:       tc.Insecure,
		SampleRate:     tc.SampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize telemetry: %w", err)
	}
	if telemetry.IsEnabled() {
		logger.Info("Tracing enabled", "endpoint", tc.Endpoint, "sample_rate", tc.SampleRate)
	}

	stopProfiling, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        tc.Profiling.Enabled,
		ServiceVersion: info.Version,
		Endpoint:       tc.Profiling.Endpoint,
		ProfileTypes:   tc.Profiling.ProfileTypes,
	})
	if err != nil {
		_ = shutdownTracing(context.Background())
		return nil, fmt.Errorf("initialize profiling: %w", err)
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", tc.Profiling.Endpoint, "profile_types", tc.Profiling.ProfileTypes)
	}

	return func() {
		if err := stopProfiling(); err != nil {
			logger.Error("Profiling shutdown error", logger.Err(err))
		}
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Error("Telemetry shutdown error", logger.Err(err))
		}
	}, nil
}

// configSource names where the configuration came from.
func configSource() string {
	if path := GetConfigFile(); path != "" {
		return path
	}
	return config.GetDefaultConfigPath()
}
