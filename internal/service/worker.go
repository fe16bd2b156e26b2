package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vialytics/wrapped-worker/config"
	"github.com/vialytics/wrapped-worker/internal/core"
	"github.com/vialytics/wrapped-worker/internal/domain/model"
	"github.com/vialytics/wrapped-worker/internal/observability/metrics"
	"github.com/vialytics/wrapped-worker/internal/observability/statsd"
)

// notifyRetryBackoff is the pause after a failed notification wait before
// listening again.
const notifyRetryBackoff = time.Second

// errNotClaimable signals that a request was no longer pending when the
// worker tried to claim it. Not a failure; another worker got there first.
var errNotClaimable = errors.New("request not claimable")

// WorkerServiceOptions groups dependencies for WorkerService.
type WorkerServiceOptions struct {
	Repo     core.RequestRepository // Required: queue store
	Verifier core.PaymentVerifier   // Required: payment verification
	Stats    core.StatsGenerator    // Required: stats pipeline
	Config   config.WorkerConfig    // Required: worker configuration
	Logger   *slog.Logger           // Optional: structured logger
	Metrics  statsd.Sink            // Optional: metrics sink (StatsD-compatible)
}

// WorkerService turns pending wrapped requests into stored summaries.
//
// Admission is dual-path: a notification listener wakes on newly inserted
// rows, and a backup poll sweeps for anything the listener missed. Both paths
// funnel through one in-flight set, which enforces per-request dedup and the
// global concurrency ceiling.
type WorkerService struct {
	repo     core.RequestRepository
	verifier core.PaymentVerifier
	stats    core.StatsGenerator
	cfg      config.WorkerConfig
	logger   *slog.Logger
	metrics  statsd.Sink

	inflight *inflightSet
	jobs     sync.WaitGroup
}

// NewWorkerService constructs a new WorkerService.
func NewWorkerService(opts WorkerServiceOptions) (*WorkerService, error) {
	if opts.Repo == nil {
		return nil, errors.New("RequestRepository is required")
	}
	if opts.Verifier == nil {
		return nil, errors.New("PaymentVerifier is required")
	}
	if opts.Stats == nil {
		return nil, errors.New("StatsGenerator is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &WorkerService{
		repo:     opts.Repo,
		verifier: opts.Verifier,
		stats:    opts.Stats,
		cfg:      opts.Config,
		logger:   logger.With("component", "worker_service"),
		metrics:  opts.Metrics,
		inflight: newInflightSet(opts.Config.MaxConcurrent),
	}, nil
}

// InflightCount returns the number of requests currently being processed.
func (s *WorkerService) InflightCount() int {
	return s.inflight.Len()
}

// Run starts the admission loops and processes requests until the context is
// cancelled. In-flight requests are drained before returning. Returns nil on
// graceful shutdown.
func (s *WorkerService) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "starting worker service",
		"max_concurrent", s.cfg.MaxConcurrent,
		"job_timeout", s.cfg.JobTimeout,
		"max_retries", s.cfg.MaxRetries,
		"poll_interval", s.cfg.PollInterval,
	)

	// Pick up whatever was pending before we started listening.
	s.pollOnce(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.pollLoop(gctx) })
	g.Go(func() error { return s.notifyLoop(gctx) })

	err := g.Wait()
	s.jobs.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	s.logger.InfoContext(ctx, "worker service stopped")
	return nil
}

// pollLoop sweeps for pending requests on a fixed cadence. It is the backup
// path; the notification listener normally wins.
func (s *WorkerService) pollLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.pollOnce(ctx)
		}
	}
}

// pollOnce fetches at most as many pending requests as there are free slots.
func (s *WorkerService) pollOnce(ctx context.Context) {
	free := s.inflight.Free()
	if free == 0 {
		return
	}

	requests, err := s.repo.ListPending(ctx, free)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.ErrorContext(ctx, "list pending requests", "error", err)
		}
		return
	}

	for _, req := range requests {
		s.admit(ctx, req)
	}
}

// notifyLoop blocks on store notifications and admits the announced request
// directly, skipping the poll latency.
func (s *WorkerService) notifyLoop(ctx context.Context) error {
	for ctx.Err() == nil {
		id, err := s.repo.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.WarnContext(ctx, "notification wait failed", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(notifyRetryBackoff):
			}
			continue
		}
		if id == "" {
			continue
		}

		req, err := s.repo.GetByID(ctx, id)
		if err != nil {
			s.logger.WarnContext(ctx, "fetch notified request", "request_id", id, "error", err)
			continue
		}
		if req.Status != model.StatusPending {
			continue
		}
		s.admit(ctx, req)
	}
	return ctx.Err()
}

// admit starts processing req unless it is already in flight or the worker is
// at capacity. At-capacity requests stay pending and are swept up by a later
// poll.
func (s *WorkerService) admit(ctx context.Context, req *model.WrappedRequest) {
	if !s.inflight.TryAcquire(req.ID) {
		s.logger.DebugContext(ctx, "request not admitted",
			"request_id", req.ID,
			"in_flight", s.inflight.Len(),
		)
		return
	}

	s.jobs.Add(1)
	go func() {
		defer s.jobs.Done()
		s.processRequest(ctx, req)
	}()
}

// processRequest drives one request through its attempts and settles it in a
// terminal status. Holds the request's in-flight slot for the whole run,
// except during retry delays when the dedup entry is dropped so the request
// is not stranded if this goroutine dies.
func (s *WorkerService) processRequest(ctx context.Context, req *model.WrappedRequest) {
	held := true
	defer func() {
		if held {
			s.inflight.Release(req.ID)
		}
	}()

	var lastErr error
	for attempt := 0; ; attempt++ {
		start := time.Now()
		err := s.attempt(ctx, req, attempt)
		if err == nil {
			s.emit("completed", metrics.ResultSuccess, attempt, time.Since(start), nil)
			s.logger.InfoContext(ctx, "request completed",
				"request_id", req.ID,
				"wallet", req.WalletAddress,
				"attempt", attempt+1,
			)
			return
		}
		if errors.Is(err, errNotClaimable) {
			s.emit("claim", metrics.ResultNoop, attempt, time.Since(start), nil)
			return
		}

		lastErr = err
		s.logger.WarnContext(ctx, "attempt failed",
			"request_id", req.ID,
			"wallet", req.WalletAddress,
			"attempt", attempt+1,
			"max_attempts", s.cfg.MaxRetries+1,
			"error", err,
		)

		if ctx.Err() != nil || attempt >= s.cfg.MaxRetries {
			break
		}
		s.emit("retry", metrics.ResultError, attempt, time.Since(start), err)

		s.inflight.Release(req.ID)
		held = false
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.cfg.RetryDelay):
		}
		if !s.inflight.Readd(req.ID) {
			// Another path admitted the request meanwhile; let it run there.
			s.logger.DebugContext(ctx, "request re-admitted elsewhere", "request_id", req.ID)
			return
		}
		held = true
	}

	s.fail(ctx, req, lastErr)
}

// attempt runs one pass of the pipeline: verify payment, claim the row,
// generate stats under the per-job timeout, store the summary.
func (s *WorkerService) attempt(ctx context.Context, req *model.WrappedRequest, attempt int) error {
	valid, err := s.verifier.VerifyPayment(ctx, req.TxSignature, req.WalletAddress)
	if err != nil {
		return fmt.Errorf("verify payment: %w", err)
	}
	if !valid {
		return errors.New("invalid payment")
	}

	// The row is claimed once; later attempts run against the already
	// processing row.
	if attempt == 0 {
		claimed, err := s.repo.MarkProcessing(ctx, req.ID)
		if err != nil {
			return fmt.Errorf("mark processing: %w", err)
		}
		if !claimed {
			return errNotClaimable
		}
	}

	jobCtx, cancel := context.WithTimeout(ctx, s.cfg.JobTimeout)
	defer cancel()

	summary, err := s.stats.Generate(jobCtx, req.WalletAddress)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("processing timeout after %s: %w", s.cfg.JobTimeout, err)
		}
		return fmt.Errorf("generate stats: %w", err)
	}

	raw, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}

	stored, err := s.repo.Complete(ctx, req.ID, raw)
	if err != nil {
		return fmt.Errorf("complete request: %w", err)
	}
	if !stored {
		s.logger.WarnContext(ctx, "request no longer processing, summary dropped", "request_id", req.ID)
	}
	return nil
}

// fail settles req as failed with the last attempt's error.
func (s *WorkerService) fail(ctx context.Context, req *model.WrappedRequest, cause error) {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}

	// Settle even when shutting down so the row does not stay processing.
	failCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		failCtx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
	}

	if _, err := s.repo.Fail(failCtx, req.ID, msg); err != nil {
		s.logger.ErrorContext(ctx, "fail request error",
			"request_id", req.ID,
			"error", err,
			"original_error", cause,
		)
	}
	s.emit("failed", metrics.ResultError, s.cfg.MaxRetries, 0, cause)
	s.logger.ErrorContext(ctx, "request failed permanently",
		"request_id", req.ID,
		"wallet", req.WalletAddress,
		"error", cause,
	)
}

func (s *WorkerService) emit(transition, result string, attempt int, d time.Duration, err error) {
	metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
		Transition: transition,
		Result:     result,
		Attempt:    attempt,
		Duration:   d,
		Err:        err,
	})
}
