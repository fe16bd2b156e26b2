package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeWorker runs the wrapped request worker.
	ServiceModeWorker ServiceMode = "worker"
	// ServiceModeReaper runs the request reaper for cleanup.
	ServiceModeReaper ServiceMode = "reaper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeWorker,
		ServiceModeReaper,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	parts := strings.Split(servicesStr, ",")
	for _, part := range parts {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeWorker, ServiceModeReaper:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: worker, reaper)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// ChainConfig contains chain access configuration shared by the payment
// verifier and the indexer launcher.
type ChainConfig struct {
	// RPCURL is the chain JSON-RPC endpoint.
	RPCURL string `env:"RPC_URL" envDefault:"https://api.mainnet-beta.solana.com"`

	// TreasuryWallet is the expected payment destination address.
	TreasuryWallet string `env:"TREASURY_WALLET"`
}

// WorkerConfig contains wrapped request worker configuration.
type WorkerConfig struct {
	// MaxConcurrent is the maximum number of requests processed in parallel.
	MaxConcurrent int `env:"WORKER_MAX_CONCURRENT" envDefault:"5"`

	// JobTimeout bounds stats generation for one request.
	JobTimeout time.Duration `env:"WORKER_JOB_TIMEOUT" envDefault:"5m"`

	// MaxRetries is the number of additional attempts after the first failure.
	MaxRetries int `env:"WORKER_MAX_RETRIES" envDefault:"2"`

	// RetryDelay is the pause before re-attempting a failed request.
	RetryDelay time.Duration `env:"WORKER_RETRY_DELAY" envDefault:"2s"`

	// PollInterval is the backup polling cadence; notifications normally wake
	// the worker first.
	PollInterval time.Duration `env:"WORKER_POLL_INTERVAL" envDefault:"5s"`
}

// Sanitize applies guardrails to worker configuration values.
func (w *WorkerConfig) Sanitize() {
	if w.MaxConcurrent < 1 {
		w.MaxConcurrent = 1
	}
	if w.JobTimeout < 10*time.Second {
		w.JobTimeout = 10 * time.Second
	}
	if w.MaxRetries < 0 {
		w.MaxRetries = 0
	}
	if w.RetryDelay < 0 {
		w.RetryDelay = 0
	}
	if w.PollInterval < time.Second {
		w.PollInterval = time.Second
	}
}

// IndexerConfig contains indexer launcher configuration.
type IndexerConfig struct {
	// BinaryPath is the indexer executable.
	BinaryPath string `env:"INDEXER_BINARY_PATH" envDefault:"./vialytics-core"`

	// DataDir holds per-wallet ledger stores and config artifacts.
	DataDir string `env:"INDEXER_DATA_DIR" envDefault:"./dbs"`

	// Timeout bounds one indexer run.
	Timeout time.Duration `env:"INDEXER_TIMEOUT" envDefault:"15m"`

	// WindowStart is the unix-seconds lower bound for analysed activity.
	// Defaults to Jan 1, 2025 00:00:00 UTC.
	WindowStart int64 `env:"INDEXER_WINDOW_START" envDefault:"1735689600"`
}

// Sanitize applies guardrails to indexer configuration values.
func (i *IndexerConfig) Sanitize() {
	if i.Timeout < time.Minute {
		i.Timeout = time.Minute
	}
	if i.WindowStart < 0 {
		i.WindowStart = 0
	}
}

// OracleConfig contains price oracle configuration.
type OracleConfig struct {
	// Endpoint overrides the upstream native asset price API.
	Endpoint string `env:"ORACLE_ENDPOINT" envDefault:""`

	// FallbackPrice is used when the upstream price cannot be fetched.
	FallbackPrice float64 `env:"ORACLE_FALLBACK_PRICE" envDefault:"134.27"`
}

// Sanitize applies guardrails to oracle configuration values.
func (o *OracleConfig) Sanitize() {
	if o.FallbackPrice <= 0 {
		o.FallbackPrice = 134.27
	}
}

// ReaperConfig contains request reaper service configuration.
type ReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"5m"`

	// CompletedMaxAge is the maximum age for completed requests before deletion.
	// Delivered summaries are transient; clients are expected to fetch them
	// promptly.
	CompletedMaxAge time.Duration `env:"REAPER_COMPLETED_MAX_AGE" envDefault:"1h"`

	// BatchSize is the maximum number of rows to process per operation.
	// Batching prevents long locks and I/O spikes on large tables.
	BatchSize int `env:"REAPER_BATCH_SIZE" envDefault:"1000"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	// Enforce minimum intervals to prevent excessive database load
	if r.Interval < time.Minute {
		r.Interval = time.Minute
	}
	if r.CompletedMaxAge < 10*time.Minute {
		r.CompletedMaxAge = 10 * time.Minute
	}
	if r.BatchSize < 1 {
		r.BatchSize = 1
	}
	if r.BatchSize > 10000 {
		r.BatchSize = 10000
	}
}
