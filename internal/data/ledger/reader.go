// Package ledger reads the per-wallet SQLite store produced by the indexer
// and rolls it up into raw aggregates.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/vialytics/wrapped-worker/internal/domain/model"
)

// NativeMint is the chain's native asset identifier, used to pick the
// movements that feed the highest-transaction rollup.
const NativeMint = "So11111111111111111111111111111111111111112"

// Reader runs read-only aggregate queries against a single ledger store. It
// never writes; the store is owned by the job that built it.
type Reader struct {
	db *sql.DB
}

// Open opens the ledger store at path in read-only mode.
func Open(path string) (*Reader, error) {
	if path == "" {
		return nil, errors.New("ledger path is required")
	}
	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open ledger store: %w", err)
	}
	// One job reads one store; parallel readers would contend on the file.
	db.SetMaxOpenConns(1)
	return &Reader{db: db}, nil
}

// Close releases the underlying handle.
func (r *Reader) Close() error {
	return r.db.Close()
}

// Aggregates computes the raw rollups for events at or after windowStart
// (unix seconds). Empty stores yield zero values, not errors.
func (r *Reader) Aggregates(ctx context.Context, windowStart int64) (*model.RawAggregates, error) {
	agg := &model.RawAggregates{}

	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE block_time >= ?`,
		windowStart).Scan(&agg.TxCount); err != nil {
		return nil, fmt.Errorf("count transactions: %w", err)
	}

	var totalFees sql.NullInt64
	if err := r.db.QueryRowContext(ctx,
		`SELECT SUM(fee) FROM transactions WHERE block_time >= ?`,
		windowStart).Scan(&totalFees); err != nil {
		return nil, fmt.Errorf("sum fees: %w", err)
	}
	agg.TotalFees = totalFees.Int64

	mostActiveDay, err := r.mostActiveDay(ctx, windowStart)
	if err != nil {
		return nil, err
	}
	agg.MostActiveDay = mostActiveDay

	topToken, err := r.topToken(ctx, windowStart)
	if err != nil {
		return nil, err
	}
	agg.TopToken = topToken

	assets, err := r.assetActivity(ctx, windowStart)
	if err != nil {
		return nil, err
	}
	agg.Assets = assets

	var firstTx sql.NullInt64
	if err := r.db.QueryRowContext(ctx,
		`SELECT MIN(block_time) FROM transactions WHERE block_time >= ?`,
		windowStart).Scan(&firstTx); err != nil {
		return nil, fmt.Errorf("first transaction time: %w", err)
	}
	agg.FirstTxTime = firstTx.Int64

	var maxMove sql.NullFloat64
	if err := r.db.QueryRowContext(ctx, `
		SELECT MAX(ABS(amount))
		FROM token_movements
		WHERE mint = ? AND block_time >= ?
	`, NativeMint, windowStart).Scan(&maxMove); err != nil {
		return nil, fmt.Errorf("max native movement: %w", err)
	}
	agg.MaxNativeMove = maxMove.Float64

	return agg, nil
}

func (r *Reader) mostActiveDay(ctx context.Context, windowStart int64) (string, error) {
	var day string
	err := r.db.QueryRowContext(ctx, `
		SELECT date(datetime(block_time, 'unixepoch')) AS day
		FROM transactions
		WHERE block_time >= ? AND block_time IS NOT NULL
		GROUP BY day
		ORDER BY count(*) DESC
		LIMIT 1
	`, windowStart).Scan(&day)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("most active day: %w", err)
	}
	return day, nil
}

func (r *Reader) topToken(ctx context.Context, windowStart int64) (string, error) {
	var mint string
	err := r.db.QueryRowContext(ctx, `
		SELECT mint
		FROM token_movements
		WHERE block_time >= ?
		GROUP BY mint
		ORDER BY count(*) DESC
		LIMIT 1
	`, windowStart).Scan(&mint)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("top token: %w", err)
	}
	return mint, nil
}

func (r *Reader) assetActivity(ctx context.Context, windowStart int64) ([]model.AssetActivity, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT
			mint,
			SUM(ABS(amount)) AS total_amount,
			MAX(decimals)    AS decimals,
			MIN(block_time)  AS first_seen,
			MAX(block_time)  AS last_seen
		FROM token_movements
		WHERE block_time >= ?
		GROUP BY mint
	`, windowStart)
	if err != nil {
		return nil, fmt.Errorf("asset activity: %w", err)
	}
	defer rows.Close()

	var out []model.AssetActivity
	for rows.Next() {
		var (
			a        model.AssetActivity
			decimals sql.NullInt64
		)
		if err := rows.Scan(&a.Mint, &a.TotalAmount, &decimals, &a.FirstSeen, &a.LastSeen); err != nil {
			return nil, fmt.Errorf("scan asset activity: %w", err)
		}
		a.Decimals = int(decimals.Int64)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("asset activity: %w", err)
	}
	return out, nil
}
