package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vialytics/wrapped-worker/internal/data/pgxutil"
	"github.com/vialytics/wrapped-worker/internal/domain/model"
	apperrors "github.com/vialytics/wrapped-worker/internal/errors"
)

// NotifyChannel is the Postgres channel signalled when a pending request is
// inserted. The migration installs a trigger that fires pg_notify on insert;
// Create also notifies explicitly so seeded rows wake workers immediately.
const NotifyChannel = "wrapped_request_pending"

// Advisory lock namespace for reaper operations.
// Using two-arg pg_try_advisory_xact_lock(major, minor) for proper namespacing.
// Major key 2100 is reserved for wrapped-worker reaper operations.
const (
	advisoryLockReaperMajor         = 2100
	advisoryLockReaperDeleteRequest = 1 // minor key for DeleteOldCompleted
)

// RepoConfig holds configuration options for the request repository.
type RepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// RequestRepo provides database operations for wrapped request management.
type RequestRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewRequestRepo creates a new RequestRepo instance with the given database
// connection and configuration.
func NewRequestRepo(db *sql.DB, cfg RepoConfig) *RequestRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}

	return &RequestRepo{
		DB:           db,
		timeProvider: tp,
		logger:       cfg.Logger,
	}
}

const requestColumns = `
  id,
  wallet_address,
  tx_signature,
  status,
  stats_json,
  error_message,
  created_at,
  updated_at
`

func scanRequest(row interface{ Scan(...any) error }) (*model.WrappedRequest, error) {
	var (
		req      model.WrappedRequest
		stats    []byte
		errMsg   sql.NullString
		statusIn string
	)
	if err := row.Scan(
		&req.ID,
		&req.WalletAddress,
		&req.TxSignature,
		&statusIn,
		&stats,
		&errMsg,
		&req.CreatedAt,
		&req.UpdatedAt,
	); err != nil {
		return nil, err
	}
	req.Status = model.RequestStatus(statusIn)
	if len(stats) > 0 {
		req.StatsJSON = json.RawMessage(stats)
	}
	if errMsg.Valid {
		req.ErrorMessage = &errMsg.String
	}
	return &req, nil
}

// Create inserts a new pending request and notifies listening workers.
func (r *RequestRepo) Create(ctx context.Context, p *model.CreateRequestParams) (*model.WrappedRequest, error) {
	if p == nil {
		return nil, errors.New("create request params are required")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var req *model.WrappedRequest
	txErr := pgxutil.WithSQLTx(ctx, r.DB, func(tx *sql.Tx) error {
		now := r.timeProvider.Now().UTC()
		row := tx.QueryRowContext(ctx, `
			INSERT INTO wrapped_requests(wallet_address, tx_signature, status, created_at, updated_at)
			VALUES ($1, $2, 'pending', $3, $3)
			RETURNING `+requestColumns,
			p.WalletAddress, p.TxSignature, now)

		var scanErr error
		req, scanErr = scanRequest(row)
		if scanErr != nil {
			return fmt.Errorf("collect request: %w", scanErr)
		}

		if _, notifyErr := tx.ExecContext(ctx, `SELECT pg_notify($1::text, $2::text)`, NotifyChannel, req.ID); notifyErr != nil {
			return fmt.Errorf("send request notification: %w", notifyErr)
		}
		return nil
	})
	if txErr != nil {
		return nil, apperrors.MapDBError(txErr)
	}
	return req, nil
}

// ListPending returns up to limit pending requests, oldest first.
func (r *RequestRepo) ListPending(ctx context.Context, limit int) ([]*model.WrappedRequest, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+requestColumns+`
		FROM wrapped_requests
		WHERE status = 'pending'
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	defer rows.Close()

	var out []*model.WrappedRequest
	for rows.Next() {
		req, scanErr := scanRequest(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan request: %w", scanErr)
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	return out, nil
}

// GetByID retrieves a request by its ID.
func (r *RequestRepo) GetByID(ctx context.Context, id string) (*model.WrappedRequest, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+requestColumns+`
		FROM wrapped_requests
		WHERE id = $1
	`, id)

	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return req, nil
}

// MarkProcessing transitions a pending request to processing. The status
// predicate makes the claim atomic; a false return means another worker got
// there first or the row is gone.
func (r *RequestRepo) MarkProcessing(ctx context.Context, id string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE wrapped_requests
		SET status = 'processing',
		    updated_at = $2
		WHERE id = $1
		  AND status = 'pending'
	`, id, r.timeProvider.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("mark processing: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return ra > 0, nil
}

// Complete transitions a processing request to completed and stores the
// generated summary. Clears any error message left by earlier attempts.
func (r *RequestRepo) Complete(ctx context.Context, id string, stats json.RawMessage) (bool, error) {
	if len(stats) == 0 {
		return false, errors.New("stats payload is required")
	}

	res, err := r.DB.ExecContext(ctx, `
		UPDATE wrapped_requests
		SET status = 'completed',
		    stats_json = $2,
		    error_message = NULL,
		    updated_at = $3
		WHERE id = $1
		  AND status = 'processing'
	`, id, []byte(stats), r.timeProvider.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("complete request: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return ra > 0, nil
}

// Fail transitions a processing request to failed and records the last error.
func (r *RequestRepo) Fail(ctx context.Context, id, errMsg string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE wrapped_requests
		SET status = 'failed',
		    error_message = $2,
		    updated_at = $3
		WHERE id = $1
		  AND status = 'processing'
	`, id, errMsg, r.timeProvider.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("fail request: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return ra > 0, nil
}

// Stats returns row counts per status.
func (r *RequestRepo) Stats(ctx context.Context) (*model.RequestStats, error) {
	var s model.RequestStats
	err := r.DB.QueryRowContext(ctx, `
  SELECT
    count(*) FILTER (WHERE status = 'pending')    AS pending,
    count(*) FILTER (WHERE status = 'processing') AS processing,
    count(*) FILTER (WHERE status = 'completed')  AS completed,
    count(*) FILTER (WHERE status = 'failed')     AS failed
  FROM wrapped_requests
  `).Scan(
		&s.Pending,
		&s.Processing,
		&s.Completed,
		&s.Failed,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get request stats: %w", err)
	}
	return &s, nil
}

// WaitForNotification blocks until a pending request is inserted and returns
// its id. Requires a dedicated session because LISTEN binds to the connection.
func (r *RequestRepo) WaitForNotification(ctx context.Context) (string, error) {
	var payload string
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		quoted := pgx.Identifier{NotifyChannel}.Sanitize()
		if _, execErr := conn.Exec(ctx, "LISTEN "+quoted); execErr != nil {
			return fmt.Errorf("listen %s: %w", NotifyChannel, execErr)
		}
		defer func() {
			// Best effort; the connection returns to the pool either way.
			_, _ = conn.Exec(context.Background(), "UNLISTEN "+quoted)
		}()

		n, notifyErr := conn.WaitForNotification(ctx)
		if notifyErr != nil {
			return notifyErr
		}
		payload = n.Payload
		return nil
	})
	if err != nil {
		return "", err
	}
	return payload, nil
}

// DeleteOldCompleted deletes completed requests created more than maxAge ago.
// Age runs from creation, so delivered summaries expire on a fixed clock.
// Processes up to batchSize rows per call to prevent long locks and I/O
// spikes. Uses advisory locks to prevent concurrent reaper instances from
// conflicting. Returns the number of rows deleted.
func (r *RequestRepo) DeleteOldCompleted(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	if batchSize <= 0 {
		return 0, errors.New("batch size must be greater than zero")
	}
	if maxAge <= 0 {
		return 0, errors.New("max age must be greater than zero")
	}

	var rowsAffected int64
	err := pgxutil.WithSQLTx(ctx, r.DB, func(tx *sql.Tx) error {
		var locked bool
		if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1, $2)",
			advisoryLockReaperMajor, advisoryLockReaperDeleteRequest).Scan(&locked); err != nil {
			return fmt.Errorf("acquire advisory lock: %w", err)
		}
		if !locked {
			rowsAffected = 0
			return nil
		}

		cutoffTime := r.timeProvider.Now().Add(-maxAge)

		res, err := tx.ExecContext(ctx, `
			DELETE FROM wrapped_requests
			WHERE id IN (
				SELECT id FROM wrapped_requests
				WHERE status = 'completed'
				  AND created_at < $1
				ORDER BY created_at
				LIMIT $2
			)
		`, cutoffTime.UTC(), batchSize)
		if err != nil {
			return fmt.Errorf("delete old completed requests: %w", err)
		}

		ra, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		rowsAffected = ra
		return nil
	})
	if err != nil {
		return 0, err
	}
	return rowsAffected, nil
}
