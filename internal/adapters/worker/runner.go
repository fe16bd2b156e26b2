// Package worker provides the adapter for running the wrapped request worker.
package worker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vialytics/wrapped-worker/config"
	"github.com/vialytics/wrapped-worker/internal/chain"
	"github.com/vialytics/wrapped-worker/internal/core"
	"github.com/vialytics/wrapped-worker/internal/data"
	"github.com/vialytics/wrapped-worker/internal/indexer"
	"github.com/vialytics/wrapped-worker/internal/observability/statsd"
	"github.com/vialytics/wrapped-worker/internal/oracle"
	"github.com/vialytics/wrapped-worker/internal/service"
)

// RunnerOptions holds the dependencies for creating a Runner. Only DB (or an
// injected Repo) is mandatory; the remaining collaborators are constructed
// from configuration when not injected.
type RunnerOptions struct {
	DB      *sql.DB
	Worker  config.WorkerConfig
	Indexer config.IndexerConfig
	Oracle  config.OracleConfig
	Chain   config.ChainConfig
	Logger  *slog.Logger

	// Optional dependency injections (useful for tests/decoupling)
	Repo     core.RequestRepository
	Verifier core.PaymentVerifier
	Stats    core.StatsGenerator
	Cache    core.CacheRepository
	// CacheTTL bounds how long a cached native price is served.
	CacheTTL time.Duration
	Metrics  statsd.Sink
}

// Runner wires the worker service to its collaborators and runs its loop.
type Runner struct {
	worker *service.WorkerService
	logger *slog.Logger
}

// NewRunner creates a new worker runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.DB == nil && opts.Repo == nil {
		return nil, errors.New("either DB or Repo must be provided")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	repo := opts.Repo
	if repo == nil {
		repo = data.NewRequestRepo(opts.DB, data.RepoConfig{Logger: opts.Logger})
	}

	verifier := opts.Verifier
	if verifier == nil {
		verifier = chain.NewRPCVerifier(chain.Config{
			RPCURL:         opts.Chain.RPCURL,
			TreasuryWallet: opts.Chain.TreasuryWallet,
			Logger:         opts.Logger,
		})
	}

	stats := opts.Stats
	if stats == nil {
		prices := oracle.New(oracle.Config{
			Endpoint:      opts.Oracle.Endpoint,
			FallbackPrice: opts.Oracle.FallbackPrice,
			Cache:         opts.Cache,
			CacheTTL:      opts.CacheTTL,
			Logger:        opts.Logger,
		})
		launcher := indexer.NewLauncher(indexer.Config{
			BinaryPath: opts.Indexer.BinaryPath,
			DataDir:    opts.Indexer.DataDir,
			RPCURL:     opts.Chain.RPCURL,
			Timeout:    opts.Indexer.Timeout,
			Logger:     opts.Logger,
		})

		var err error
		stats, err = service.NewStatsService(service.StatsServiceOptions{
			Builder:     launcher,
			Prices:      prices,
			WindowStart: opts.Indexer.WindowStart,
			Logger:      opts.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("wire stats service: %w", err)
		}
	}

	workerSvc, err := service.NewWorkerService(service.WorkerServiceOptions{
		Repo:     repo,
		Verifier: verifier,
		Stats:    stats,
		Config:   opts.Worker,
		Logger:   opts.Logger,
		Metrics:  opts.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("wire worker service: %w", err)
	}

	return &Runner{
		worker: workerSvc,
		logger: opts.Logger,
	}, nil
}

// Run executes the worker loop until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	return r.worker.Run(ctx)
}
