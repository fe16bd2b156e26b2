// Package indexer launches the external history indexer and manages the
// per-wallet ledger stores it produces.
package indexer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/vialytics/wrapped-worker/internal/core"
)

// FinishedSentinel is the stdout line the indexer emits once history is fully
// fetched. The indexer keeps streaming live updates afterwards, so seeing the
// sentinel means stop it and read the store.
const FinishedSentinel = "Finished fetching history"

// DefaultTimeout bounds one indexer run.
const DefaultTimeout = 15 * time.Minute

// FailureReason classifies why an indexer run did not produce a usable store.
type FailureReason string

const (
	// ReasonSpawn means the indexer process never started.
	ReasonSpawn FailureReason = "spawn"
	// ReasonExit means the process exited nonzero before the sentinel.
	ReasonExit FailureReason = "exit"
	// ReasonTimeout means the run exceeded its deadline.
	ReasonTimeout FailureReason = "timeout"
)

// Error describes a failed indexer run, carrying the retained output tail for
// diagnosis.
type Error struct {
	Reason   FailureReason
	Wallet   string
	ExitCode int
	Tail     string
	Err      error
}

func (e *Error) Error() string {
	switch e.Reason {
	case ReasonSpawn:
		return fmt.Sprintf("indexer failed to start for %s: %v", e.Wallet, e.Err)
	case ReasonTimeout:
		return fmt.Sprintf("indexer timed out for %s", e.Wallet)
	default:
		return fmt.Sprintf("indexer exited with code %d for %s", e.ExitCode, e.Wallet)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Config holds launcher settings.
type Config struct {
	// BinaryPath is the indexer executable.
	BinaryPath string
	// DataDir holds the per-wallet stores and config artifacts.
	DataDir string
	// RPCURL is passed through to the indexer's config.
	RPCURL string
	// Timeout bounds one run; DefaultTimeout when zero.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Launcher builds ledger stores by running the external indexer once per
// request. It implements core.LedgerBuilder.
type Launcher struct {
	cfg    Config
	logger *slog.Logger
}

// NewLauncher creates a Launcher with the given configuration.
func NewLauncher(cfg Config) *Launcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Launcher{cfg: cfg, logger: logger.With("component", "indexer")}
}

// Handle is an on-disk ledger store plus its scoped artifacts.
type Handle struct {
	dbPath     string
	configPath string
}

// DBPath returns the SQLite store path.
func (h *Handle) DBPath() string { return h.dbPath }

// Close removes the store, its WAL sidecars and the config artifact. Safe to
// call on partially built stores.
func (h *Handle) Close() error {
	var errs []error
	for _, p := range []string{h.dbPath, h.dbPath + "-wal", h.dbPath + "-shm", h.configPath} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BuildLedger runs the indexer for walletAddress and returns a handle to the
// populated store. On any failure the partial store is removed before
// returning.
func (l *Launcher) BuildLedger(ctx context.Context, walletAddress string) (core.LedgerHandle, error) {
	if strings.TrimSpace(walletAddress) == "" {
		return nil, errors.New("wallet address is required")
	}
	if err := os.MkdirAll(l.cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	handle := &Handle{
		dbPath:     filepath.Join(l.cfg.DataDir, "wallet_"+walletAddress+".db"),
		configPath: filepath.Join(l.cfg.DataDir, "config_"+walletAddress+".toml"),
	}

	if err := l.writeConfig(handle.configPath, handle.dbPath); err != nil {
		return nil, err
	}

	start := time.Now()
	if err := l.run(ctx, walletAddress, handle.configPath); err != nil {
		if cerr := handle.Close(); cerr != nil {
			l.logger.WarnContext(ctx, "cleanup after failed run", "wallet", walletAddress, "error", cerr)
		}
		return nil, err
	}

	l.logger.InfoContext(ctx, "ledger store built",
		"wallet", walletAddress,
		"db_path", handle.dbPath,
		"duration", time.Since(start),
	)
	return handle, nil
}

// writeConfig renders the indexer's TOML config artifact next to the store.
func (l *Launcher) writeConfig(configPath, dbPath string) error {
	content := fmt.Sprintf(`
[source]
endpoint = %q
x-token = "mock-token"
timeout = 10

[vialytics]
rpc_url = %q
db_url = "sqlite:%s"

[pipeline]
`, l.cfg.RPCURL, l.cfg.RPCURL, dbPath)

	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write indexer config: %w", err)
	}
	return nil
}

func (l *Launcher) run(ctx context.Context, walletAddress, configPath string) error {
	runCtx, cancel := context.WithTimeout(ctx, l.cfg.Timeout)
	defer cancel()

	cmd := exec.Command(l.cfg.BinaryPath, "--config", configPath, "--wallet-address", walletAddress)
	cmd.Env = append(os.Environ(), "RUST_LOG=info")

	tail := newTailBuffer(defaultMaxBytes, defaultRetainBytes)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &Error{Reason: ReasonSpawn, Wallet: walletAddress, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &Error{Reason: ReasonSpawn, Wallet: walletAddress, Err: err}
	}

	if err := cmd.Start(); err != nil {
		return &Error{Reason: ReasonSpawn, Wallet: walletAddress, Err: err}
	}

	l.logger.InfoContext(ctx, "indexer started", "wallet", walletAddress, "pid", cmd.Process.Pid)

	finished := make(chan struct{})
	var once sync.Once

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			_, _ = tail.Write(append([]byte(line), '\n'))
			l.logger.DebugContext(ctx, "indexer output", "wallet", walletAddress, "line", line)
			if strings.Contains(line, FinishedSentinel) {
				once.Do(func() { close(finished) })
			}
		}
	}()
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			_, _ = tail.Write(append([]byte(line), '\n'))
			l.logger.WarnContext(ctx, "indexer stderr", "wallet", walletAddress, "line", line)
		}
	}()

	waitErr := make(chan error, 1)
	go func() {
		wg.Wait()
		waitErr <- cmd.Wait()
	}()

	select {
	case <-finished:
		// History fetched; the indexer would keep streaming, so stop it.
		l.logger.InfoContext(ctx, "history fetch complete, stopping indexer", "wallet", walletAddress)
		_ = cmd.Process.Kill()
		<-waitErr
		return nil

	case err := <-waitErr:
		if err == nil {
			return nil
		}
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return &Error{
			Reason:   ReasonExit,
			Wallet:   walletAddress,
			ExitCode: exitCode,
			Tail:     tail.String(),
			Err:      err,
		}

	case <-runCtx.Done():
		_ = cmd.Process.Kill()
		<-waitErr
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return &Error{Reason: ReasonTimeout, Wallet: walletAddress, Tail: tail.String(), Err: runCtx.Err()}
		}
		return ctx.Err()
	}
}
