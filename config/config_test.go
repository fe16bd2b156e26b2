package config

import (
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func TestParseServices(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    map[ServiceMode]bool
		expectError bool
	}{
		{
			name:  "single service - worker",
			input: "worker",
			expected: map[ServiceMode]bool{
				ServiceModeWorker: true,
			},
			expectError: false,
		},
		{
			name:  "single service - reaper",
			input: "reaper",
			expected: map[ServiceMode]bool{
				ServiceModeReaper: true,
			},
			expectError: false,
		},
		{
			name:  "all services",
			input: "worker,reaper",
			expected: map[ServiceMode]bool{
				ServiceModeWorker: true,
				ServiceModeReaper: true,
			},
			expectError: false,
		},
		{
			name:  "services with spaces",
			input: " worker , reaper ",
			expected: map[ServiceMode]bool{
				ServiceModeWorker: true,
				ServiceModeReaper: true,
			},
			expectError: false,
		},
		{
			name:  "duplicate services",
			input: "worker,worker,reaper",
			expected: map[ServiceMode]bool{
				ServiceModeWorker: true,
				ServiceModeReaper: true,
			},
			expectError: false,
		},
		{
			name:        "empty string",
			input:       "",
			expected:    nil,
			expectError: true,
		},
		{
			name:        "only spaces and commas",
			input:       " , , ",
			expected:    nil,
			expectError: true,
		},
		{
			name:        "invalid service name",
			input:       "worker,invalid-service",
			expected:    nil,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseServices(tt.input)

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				}
				return
			}

			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}

			if len(result) != len(tt.expected) {
				t.Errorf("expected %d services, got %d", len(tt.expected), len(result))
				return
			}

			for service, expected := range tt.expected {
				if result[service] != expected {
					t.Errorf("expected service %s to be %v, got %v", service, expected, result[service])
				}
			}
		})
	}
}

func TestAppConfig_ServiceToggles(t *testing.T) {
	cfg := AppConfig{Services: "worker"}
	if !cfg.IsWorkerEnabled() {
		t.Error("worker should be enabled")
	}
	if cfg.IsReaperEnabled() {
		t.Error("reaper should be disabled")
	}

	cfg.Services = "nonsense"
	if cfg.IsWorkerEnabled() || cfg.IsReaperEnabled() {
		t.Error("invalid service list must disable everything")
	}
}

func TestAppConfig_Defaults(t *testing.T) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if cfg.Services != "worker,reaper" {
		t.Errorf("Services = %q, want worker,reaper", cfg.Services)
	}
	if cfg.Worker.MaxConcurrent != 5 {
		t.Errorf("MaxConcurrent = %d, want 5", cfg.Worker.MaxConcurrent)
	}
	if cfg.Worker.JobTimeout != 5*time.Minute {
		t.Errorf("JobTimeout = %v, want 5m", cfg.Worker.JobTimeout)
	}
	if cfg.Worker.MaxRetries != 2 {
		t.Errorf("MaxRetries = %d, want 2", cfg.Worker.MaxRetries)
	}
	if cfg.Worker.RetryDelay != 2*time.Second {
		t.Errorf("RetryDelay = %v, want 2s", cfg.Worker.RetryDelay)
	}
	if cfg.Indexer.Timeout != 15*time.Minute {
		t.Errorf("Indexer.Timeout = %v, want 15m", cfg.Indexer.Timeout)
	}
	if cfg.Indexer.WindowStart != 1735689600 {
		t.Errorf("WindowStart = %d, want 1735689600", cfg.Indexer.WindowStart)
	}
	if cfg.Oracle.FallbackPrice != 134.27 {
		t.Errorf("FallbackPrice = %v, want 134.27", cfg.Oracle.FallbackPrice)
	}
	if cfg.Reaper.CompletedMaxAge != time.Hour {
		t.Errorf("CompletedMaxAge = %v, want 1h", cfg.Reaper.CompletedMaxAge)
	}
}

func TestAppConfig_ParseWorkerEnv(t *testing.T) {
	t.Setenv("WORKER_MAX_CONCURRENT", "10")
	t.Setenv("WORKER_JOB_TIMEOUT", "2m")
	t.Setenv("WORKER_MAX_RETRIES", "4")
	t.Setenv("SERVICES", "worker")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("REAPER_BATCH_SIZE", "500")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}

	if cfg.Worker.MaxConcurrent != 10 {
		t.Errorf("MaxConcurrent = %d, want 10", cfg.Worker.MaxConcurrent)
	}
	if cfg.Worker.JobTimeout != 2*time.Minute {
		t.Errorf("JobTimeout = %v, want 2m", cfg.Worker.JobTimeout)
	}
	if cfg.Worker.MaxRetries != 4 {
		t.Errorf("MaxRetries = %d, want 4", cfg.Worker.MaxRetries)
	}
	if cfg.Services != "worker" {
		t.Errorf("Services = %q, want worker", cfg.Services)
	}
	if cfg.Postgres.Host != "db.internal" {
		t.Errorf("Postgres.Host = %q, want db.internal", cfg.Postgres.Host)
	}
	if cfg.Reaper.BatchSize != 500 {
		t.Errorf("Reaper.BatchSize = %d, want 500", cfg.Reaper.BatchSize)
	}
}

func TestSanitizeGuardrails(t *testing.T) {
	cfg := AppConfig{
		Worker: WorkerConfig{
			MaxConcurrent: -1,
			JobTimeout:    time.Second,
			MaxRetries:    -3,
			RetryDelay:    -time.Second,
			PollInterval:  0,
		},
		Reaper: ReaperConfig{
			Interval:        time.Second,
			CompletedMaxAge: time.Minute,
			BatchSize:       0,
		},
	}
	cfg.Sanitize()

	if cfg.Worker.MaxConcurrent < 1 {
		t.Errorf("MaxConcurrent = %d, want >= 1", cfg.Worker.MaxConcurrent)
	}
	if cfg.Worker.JobTimeout < 10*time.Second {
		t.Errorf("JobTimeout = %v, want >= 10s", cfg.Worker.JobTimeout)
	}
	if cfg.Worker.MaxRetries < 0 {
		t.Errorf("MaxRetries = %d, want >= 0", cfg.Worker.MaxRetries)
	}
	if cfg.Worker.RetryDelay < 0 {
		t.Errorf("RetryDelay = %v, want >= 0", cfg.Worker.RetryDelay)
	}
	if cfg.Reaper.Interval < time.Minute {
		t.Errorf("Reaper.Interval = %v, want >= 1m", cfg.Reaper.Interval)
	}
	if cfg.Reaper.CompletedMaxAge < 10*time.Minute {
		t.Errorf("CompletedMaxAge = %v, want >= 10m", cfg.Reaper.CompletedMaxAge)
	}
	if cfg.Reaper.BatchSize < 1 {
		t.Errorf("BatchSize = %d, want >= 1", cfg.Reaper.BatchSize)
	}
}

func TestDetectDevModeFromNodeEnv(t *testing.T) {
	t.Setenv("NODE_ENV", "development")

	cfg := AppConfig{}
	cfg.Sanitize()
	if !cfg.IsDev {
		t.Error("NODE_ENV=development should enable dev mode")
	}
}
