package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vialytics/wrapped-worker/config"
	"github.com/vialytics/wrapped-worker/internal/adapters/reaper"
	"github.com/vialytics/wrapped-worker/internal/adapters/worker"
	"github.com/vialytics/wrapped-worker/internal/core"
	"github.com/vialytics/wrapped-worker/internal/data"
	"github.com/vialytics/wrapped-worker/internal/observability/statsd"
)

// shutdownWaitTimeout bounds how long we wait for a background service to
// drain after cancellation.
const shutdownWaitTimeout = 30 * time.Second

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink   *statsd.Client
	MetricsConfig config.ObservabilityMetricsConfig
}

// buildObservability configures the metrics sink.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	var metricsSink *statsd.Client
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  "wrapped_worker",
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			metricsSink = client
		}
	}

	return ObservabilityContainer{
		MetricsSink:   metricsSink,
		MetricsConfig: cfg.Metrics,
	}
}

// ServiceOrchestrationConfig groups everything RunServicesWithShutdown needs.
type ServiceOrchestrationConfig struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// backgroundService is one runnable unit managed by the orchestrator.
type backgroundService struct {
	name string
	run  func(ctx context.Context) error
}

type backgroundServiceHandle struct {
	name string
	done <-chan struct{}
}

// buildBackgroundServices constructs the enabled services from configuration.
func buildBackgroundServices(cfg *ServiceOrchestrationConfig, obs ObservabilityContainer) ([]backgroundService, error) {
	var services []backgroundService

	enabled, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return nil, fmt.Errorf("determine enabled services: %w", err)
	}

	if enabled[config.ServiceModeWorker] {
		var cache core.CacheRepository
		if cfg.RedisClient != nil {
			cache = data.NewRedisCacheRepo(cfg.RedisClient)
		}

		runner, err := worker.NewRunner(worker.RunnerOptions{
			DB:       cfg.DB,
			Worker:   cfg.Config.Worker,
			Indexer:  cfg.Config.Indexer,
			Oracle:   cfg.Config.Oracle,
			Chain:    cfg.Config.Chain,
			Logger:   cfg.Logger,
			Cache:    cache,
			CacheTTL: cfg.Config.Redis.PriceTTL,
			Metrics:  sinkOrNil(obs.MetricsSink),
		})
		if err != nil {
			return nil, fmt.Errorf("build worker runner: %w", err)
		}
		services = append(services, backgroundService{name: "worker", run: runner.Run})
	}

	if enabled[config.ServiceModeReaper] {
		runner, err := reaper.NewRunner(reaper.RunnerOptions{
			DB:      cfg.DB,
			Config:  cfg.Config.Reaper,
			Logger:  cfg.Logger,
			Metrics: sinkOrNil(obs.MetricsSink),
		})
		if err != nil {
			return nil, fmt.Errorf("build reaper runner: %w", err)
		}
		services = append(services, backgroundService{name: "reaper", run: runner.Run})
	}

	return services, nil
}

// sinkOrNil avoids handing services a typed-nil interface value.
func sinkOrNil(c *statsd.Client) statsd.Sink {
	if c == nil {
		return nil
	}
	return c
}

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// This function blocks until a shutdown signal is received or a service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	obs := buildObservability(logger, cfg.Config.Observability)
	defer func() {
		_ = obs.MetricsSink.Close()
	}()

	services, err := buildBackgroundServices(cfg, obs)
	if err != nil {
		return err
	}
	if len(services) == 0 {
		return errors.New("no services enabled")
	}

	serviceCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, len(services))
	handles := make([]backgroundServiceHandle, 0, len(services))

	for _, svc := range services {
		done := make(chan struct{})
		handles = append(handles, backgroundServiceHandle{name: svc.name, done: done})
		go func(svc backgroundService, done chan<- struct{}) {
			defer close(done)
			if runErr := svc.run(serviceCtx); runErr != nil && !errors.Is(runErr, context.Canceled) {
				errCh <- fmt.Errorf("%s: %w", svc.name, runErr)
			}
		}(svc, done)
		logger.Info("service started", "service", svc.name)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runErr error
	select {
	case sig := <-quit:
		logger.Info("shutting down services...", "signal", sig.String())
	case runErr = <-errCh:
		logger.Error("service error", "error", runErr)
	}
	cancel()

	for _, h := range handles {
		waitForService(h.done, h.name, logger)
	}

	return runErr
}

// waitForService waits for a service to finish with timeout.
func waitForService(done <-chan struct{}, name string, logger *slog.Logger) {
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info(name + " stopped")
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("timeout waiting for " + name + " to stop")
	}
}
