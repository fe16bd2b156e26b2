package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/vialytics/wrapped-worker/internal/core"
	"github.com/vialytics/wrapped-worker/internal/data"
	"github.com/vialytics/wrapped-worker/internal/data/ledger"
	"github.com/vialytics/wrapped-worker/internal/domain/model"
	"github.com/vialytics/wrapped-worker/internal/domain/stats"
)

// StatsServiceOptions groups dependencies for StatsService.
type StatsServiceOptions struct {
	Builder core.LedgerBuilder // Required: runs the indexer
	Prices  core.PriceSource   // Required: resolves USD prices
	// WindowStart is the unix-seconds lower bound for analysed activity.
	WindowStart int64
	Logger      *slog.Logger      // Optional: structured logger
	Time        data.TimeProvider // Optional: clock override for tests
	// NewRand supplies the generator used for persona word draws. Defaults
	// to a time-seeded source per call; tests inject a fixed seed.
	NewRand func() *rand.Rand
}

// StatsService produces a wallet summary end to end: it builds the ledger
// store, rolls it up, prices the activity and classifies the persona. It
// implements core.StatsGenerator.
type StatsService struct {
	builder     core.LedgerBuilder
	prices      core.PriceSource
	windowStart int64
	logger      *slog.Logger
	time        data.TimeProvider
	newRand     func() *rand.Rand
}

// NewStatsService constructs a new StatsService.
func NewStatsService(opts StatsServiceOptions) (*StatsService, error) {
	if opts.Builder == nil {
		return nil, errors.New("LedgerBuilder is required")
	}
	if opts.Prices == nil {
		return nil, errors.New("PriceSource is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tp := opts.Time
	if tp == nil {
		tp = &data.RealTimeProvider{}
	}
	newRand := opts.NewRand
	if newRand == nil {
		newRand = func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		}
	}

	return &StatsService{
		builder:     opts.Builder,
		prices:      opts.Prices,
		windowStart: opts.WindowStart,
		logger:      logger.With("component", "stats_service"),
		time:        tp,
		newRand:     newRand,
	}, nil
}

// Generate builds and analyses the ledger for walletAddress. The ledger store
// is removed before returning on every path, success or failure.
func (s *StatsService) Generate(ctx context.Context, walletAddress string) (*model.WalletStats, error) {
	handle, err := s.builder.BuildLedger(ctx, walletAddress)
	if err != nil {
		return nil, fmt.Errorf("build ledger: %w", err)
	}
	defer func() {
		if cerr := handle.Close(); cerr != nil {
			s.logger.WarnContext(ctx, "release ledger store", "wallet", walletAddress, "error", cerr)
		}
	}()

	reader, err := ledger.Open(handle.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer func() {
		if cerr := reader.Close(); cerr != nil {
			s.logger.WarnContext(ctx, "close ledger reader", "wallet", walletAddress, "error", cerr)
		}
	}()

	raw, err := reader.Aggregates(ctx, s.windowStart)
	if err != nil {
		return nil, fmt.Errorf("aggregate ledger: %w", err)
	}

	nativePrice := s.prices.NativeUSDPrice(ctx)
	s.logger.InfoContext(ctx, "ledger aggregated",
		"wallet", walletAddress,
		"tx_count", raw.TxCount,
		"assets", len(raw.Assets),
		"native_price", nativePrice,
	)

	summary := stats.Summarize(raw, nativePrice, s.prices.AssetUSDPrice, s.time.Now(), s.newRand())
	return summary, nil
}
