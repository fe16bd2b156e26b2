package service

import (
	"context"
	"database/sql"
	"errors"
	"math/rand"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vialytics/wrapped-worker/internal/core"
	"github.com/vialytics/wrapped-worker/internal/data"
)

const testWindowStart = int64(1735689600) // 2025-01-01 00:00:00 UTC

type builderStub struct {
	buildFn func(ctx context.Context, walletAddress string) (core.LedgerHandle, error)
}

func (b *builderStub) BuildLedger(ctx context.Context, walletAddress string) (core.LedgerHandle, error) {
	return b.buildFn(ctx, walletAddress)
}

type handleStub struct {
	path   string
	closed atomic.Bool
}

func (h *handleStub) DBPath() string { return h.path }

func (h *handleStub) Close() error {
	h.closed.Store(true)
	return nil
}

type pricesStub struct {
	native float64
}

func (p *pricesStub) NativeUSDPrice(context.Context) float64 { return p.native }

func (p *pricesStub) AssetUSDPrice(mint string, nativePrice float64) float64 {
	if mint == "So11111111111111111111111111111111111111112" {
		return nativePrice
	}
	return 0
}

// ledgerFixture writes a minimal populated store the reader can roll up.
func ledgerFixture(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "wallet_fixture.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`
		CREATE TABLE transactions (
			signature  TEXT PRIMARY KEY,
			fee        INTEGER,
			block_time INTEGER
		);
		CREATE TABLE token_movements (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			mint       TEXT NOT NULL,
			amount     REAL NOT NULL,
			decimals   INTEGER,
			block_time INTEGER
		);
		INSERT INTO transactions VALUES ('sig-1', 5000, 1735776000);
		INSERT INTO transactions VALUES ('sig-2', 5000, 1735776060);
		INSERT INTO token_movements (mint, amount, decimals, block_time)
			VALUES ('So11111111111111111111111111111111111111112', 1000000000, 9, 1735776000);
	`)
	require.NoError(t, err)
	return path
}

func newTestStatsService(t *testing.T, builder core.LedgerBuilder) *StatsService {
	t.Helper()
	s, err := NewStatsService(StatsServiceOptions{
		Builder:     builder,
		Prices:      &pricesStub{native: 100},
		WindowStart: testWindowStart,
		Logger:      testLogger(),
		Time:        data.NewFixedTimeProvider(time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)),
		NewRand:     func() *rand.Rand { return rand.New(rand.NewSource(1)) },
	})
	require.NoError(t, err)
	return s
}

func TestNewStatsServiceRequiresDependencies(t *testing.T) {
	t.Parallel()

	_, err := NewStatsService(StatsServiceOptions{Prices: &pricesStub{}})
	require.Error(t, err)

	_, err = NewStatsService(StatsServiceOptions{Builder: &builderStub{}})
	require.Error(t, err)
}

func TestGenerateEndToEnd(t *testing.T) {
	t.Parallel()

	handle := &handleStub{path: ledgerFixture(t)}
	builder := &builderStub{
		buildFn: func(_ context.Context, walletAddress string) (core.LedgerHandle, error) {
			require.Equal(t, "wallet1", walletAddress)
			return handle, nil
		},
	}
	s := newTestStatsService(t, builder)

	summary, err := s.Generate(context.Background(), "wallet1")
	require.NoError(t, err)

	require.Equal(t, 2, summary.TotalTransactions)
	require.InDelta(t, 0.00001, summary.TotalGasSpent, 1e-12)
	require.Equal(t, "2025-01-02", summary.MostActiveDay)
	require.Equal(t, "2025-01-02", summary.FirstActiveDate)
	require.InDelta(t, 100.0, summary.TotalVolumeUSD, 1e-9)
	require.InDelta(t, 1.0, summary.HighestTransaction, 1e-9)
	require.NotEmpty(t, summary.Persona)

	require.True(t, handle.closed.Load(), "ledger store released after a successful run")
}

func TestGenerateBuilderFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("indexer exploded")
	builder := &builderStub{
		buildFn: func(context.Context, string) (core.LedgerHandle, error) {
			return nil, boom
		},
	}
	s := newTestStatsService(t, builder)

	_, err := s.Generate(context.Background(), "wallet1")
	require.ErrorIs(t, err, boom)
}

func TestGenerateReleasesStoreOnAggregateFailure(t *testing.T) {
	t.Parallel()

	// A store without the expected schema fails during rollup.
	path := filepath.Join(t.TempDir(), "broken.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE unrelated (x INTEGER)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	handle := &handleStub{path: path}
	builder := &builderStub{
		buildFn: func(context.Context, string) (core.LedgerHandle, error) {
			return handle, nil
		},
	}
	s := newTestStatsService(t, builder)

	_, err = s.Generate(context.Background(), "wallet1")
	require.Error(t, err)
	require.True(t, handle.closed.Load(), "ledger store released even when rollup fails")
}
