// Package core declares the ports between the worker's services and their
// collaborators. Services depend on these interfaces; the data, indexer,
// oracle and chain packages provide the implementations.
package core

import (
	"context"
	"encoding/json"
	"time"

	"github.com/vialytics/wrapped-worker/internal/domain/model"
)

// RequestRepository is the queue store port. The store owns request rows; the
// worker reads and mutates them through this interface only.
type RequestRepository interface {
	// ListPending returns up to limit rows in pending status, oldest first.
	ListPending(ctx context.Context, limit int) ([]*model.WrappedRequest, error)

	// GetByID fetches a single request row.
	GetByID(ctx context.Context, id string) (*model.WrappedRequest, error)

	// MarkProcessing transitions a pending row to processing. Returns false
	// when the row was not in pending status.
	MarkProcessing(ctx context.Context, id string) (bool, error)

	// Complete transitions a processing row to completed and stores the
	// summary. Returns false when the row was not in processing status.
	Complete(ctx context.Context, id string, stats json.RawMessage) (bool, error)

	// Fail transitions a processing row to failed with a human-readable
	// error message.
	Fail(ctx context.Context, id, errMsg string) (bool, error)

	// WaitForNotification blocks until the store signals a newly inserted
	// pending row, returning its id.
	WaitForNotification(ctx context.Context) (string, error)
}

// ReaperRepository is the retention sweep port.
type ReaperRepository interface {
	// DeleteOldCompleted deletes up to batchSize completed rows older than
	// maxAge and returns the number deleted.
	DeleteOldCompleted(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error)
}

// PaymentVerifier checks a request's proof of payment. A false result with a
// nil error means the payment is definitively invalid.
type PaymentVerifier interface {
	VerifyPayment(ctx context.Context, txSignature, walletAddress string) (bool, error)
}

// LedgerBuilder runs the external indexer and yields a populated, exclusively
// owned ledger store for one wallet.
type LedgerBuilder interface {
	BuildLedger(ctx context.Context, walletAddress string) (LedgerHandle, error)
}

// LedgerHandle is a built ledger store. Close releases the store and every
// scoped artifact behind it; it must be called on all exit paths.
type LedgerHandle interface {
	DBPath() string
	Close() error
}

// PriceSource resolves USD prices. NativeUSDPrice is best-effort and never
// fails; AssetUSDPrice returns 0 for unknown assets, which excludes them from
// volume.
type PriceSource interface {
	NativeUSDPrice(ctx context.Context) float64
	AssetUSDPrice(mint string, nativePrice float64) float64
}

// StatsGenerator drives the build-ledger/aggregate/summarize pipeline for one
// wallet.
type StatsGenerator interface {
	Generate(ctx context.Context, walletAddress string) (*model.WalletStats, error)
}

// CacheRepository is a byte-oriented cache with TTLs. Used by the price
// oracle; a nil repository disables caching.
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
