package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const windowStart = int64(1735689600) // 2025-01-01 00:00:00 UTC

type txRow struct {
	fee       int64
	blockTime int64
}

type movementRow struct {
	mint      string
	amount    float64
	decimals  int
	blockTime int64
}

func buildStore(t *testing.T, txs []txRow, moves []movementRow) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "wallet_test.db")
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
	`)
	require.NoError(t, err)

	for i, tx := range txs {
		_, err = db.Exec(
			`INSERT INTO transactions (signature, fee, block_time) VALUES (?, ?, ?)`,
			fmt.Sprintf("sig-%d", i), tx.fee, tx.blockTime,
		)
		require.NoError(t, err)
	}
	for _, m := range moves {
		_, err = db.Exec(
			`INSERT INTO token_movements (mint, amount, decimals, block_time) VALUES (?, ?, ?, ?)`,
			m.mint, m.amount, m.decimals, m.blockTime,
		)
		require.NoError(t, err)
	}
	return path
}

func day(offset int) int64 {
	return windowStart + int64(offset)*86400
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := Open("")
	require.Error(t, err)
}

func TestAggregatesEmptyStore(t *testing.T) {
	t.Parallel()

	path := buildStore(t, nil, nil)
	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	agg, err := r.Aggregates(context.Background(), windowStart)
	require.NoError(t, err)

	require.Equal(t, 0, agg.TxCount)
	require.Equal(t, int64(0), agg.TotalFees)
	require.Empty(t, agg.MostActiveDay)
	require.Empty(t, agg.TopToken)
	require.Empty(t, agg.Assets)
	require.Equal(t, int64(0), agg.FirstTxTime)
	require.Zero(t, agg.MaxNativeMove)
}

func TestAggregatesRollsUpActivity(t *testing.T) {
	t.Parallel()

	usdc := "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	path := buildStore(t,
		[]txRow{
			{fee: 5000, blockTime: day(1)},
			{fee: 5000, blockTime: day(1) + 60},
			{fee: 10000, blockTime: day(1) + 120},
			{fee: 5000, blockTime: day(3)},
		},
		[]movementRow{
			{mint: NativeMint, amount: 1_000_000_000, decimals: 9, blockTime: day(1)},
			{mint: NativeMint, amount: -2_500_000_000, decimals: 9, blockTime: day(3)},
			{mint: usdc, amount: 10_000_000, decimals: 6, blockTime: day(1)},
			{mint: usdc, amount: 20_000_000, decimals: 6, blockTime: day(2)},
			{mint: usdc, amount: -5_000_000, decimals: 6, blockTime: day(2) + 60},
		},
	)

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	agg, err := r.Aggregates(context.Background(), windowStart)
	require.NoError(t, err)

	require.Equal(t, 4, agg.TxCount)
	require.Equal(t, int64(25000), agg.TotalFees)
	require.Equal(t, "2025-01-02", agg.MostActiveDay)
	require.Equal(t, usdc, agg.TopToken, "most movements wins, not largest amount")
	require.Equal(t, day(1), agg.FirstTxTime)
	require.InDelta(t, 2_500_000_000, agg.MaxNativeMove, 1e-6, "absolute value of the largest native move")

	require.Len(t, agg.Assets, 2)
	byMint := map[string]int{}
	for i, a := range agg.Assets {
		byMint[a.Mint] = i
	}

	native := agg.Assets[byMint[NativeMint]]
	require.InDelta(t, 3_500_000_000, native.TotalAmount, 1e-6, "amounts sum by absolute value")
	require.Equal(t, 9, native.Decimals)
	require.Equal(t, day(1), native.FirstSeen)
	require.Equal(t, day(3), native.LastSeen)

	stable := agg.Assets[byMint[usdc]]
	require.InDelta(t, 35_000_000, stable.TotalAmount, 1e-6)
	require.Equal(t, 6, stable.Decimals)
	require.Equal(t, day(1), stable.FirstSeen)
	require.Equal(t, day(2)+60, stable.LastSeen)
}

func TestAggregatesRespectsWindow(t *testing.T) {
	t.Parallel()

	path := buildStore(t,
		[]txRow{
			{fee: 5000, blockTime: windowStart - 86400}, // previous year
			{fee: 7000, blockTime: day(10)},
		},
		[]movementRow{
			{mint: NativeMint, amount: 9_000_000_000, decimals: 9, blockTime: windowStart - 86400},
			{mint: NativeMint, amount: 1_000_000_000, decimals: 9, blockTime: day(10)},
		},
	)

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	agg, err := r.Aggregates(context.Background(), windowStart)
	require.NoError(t, err)

	require.Equal(t, 1, agg.TxCount)
	require.Equal(t, int64(7000), agg.TotalFees)
	require.Equal(t, day(10), agg.FirstTxTime)
	require.InDelta(t, 1_000_000_000, agg.MaxNativeMove, 1e-6, "out-of-window moves are invisible")
	require.Len(t, agg.Assets, 1)
}

func TestAggregatesMissingSchema(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "empty.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE unrelated (x INTEGER)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Aggregates(context.Background(), windowStart)
	require.Error(t, err, "a store the indexer never populated is an error, not an empty summary")
}
