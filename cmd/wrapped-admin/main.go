// Command wrapped-admin provides operational helpers for the wrapped request
// store: connectivity checks, migrations and dev seeding.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/vialytics/wrapped-worker/config"
	"github.com/vialytics/wrapped-worker/internal/bootstrap"
	"github.com/vialytics/wrapped-worker/internal/data"
	"github.com/vialytics/wrapped-worker/internal/domain/model"
	apperrors "github.com/vialytics/wrapped-worker/internal/errors"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
}

const defaultCommandTimeout = 5 * time.Minute

func main() {
	logger := bootstrap.InitLogger()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmdName)
		printUsage()
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}

	cmdCtx := &commandContext{
		Ctx:    context.Background(),
		Logger: logger,
		Config: cfg,
	}
	if runErr := cmd.run(cmdCtx, os.Args[2:]); runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"check": {
			name:        "check",
			description: "Verify database connectivity and report request counts",
			run:         runCheck,
		},
		"migrate": {
			name:        "migrate",
			description: "Run database migrations",
			run:         runMigrate,
		},
		"seed": {
			name:        "seed",
			description: "Insert a pending request for a wallet (development helper)",
			run:         runSeed,
		},
	}
}

func printUsage() {
	fmt.Fprintf(os.Stdout, "Usage: wrapped-admin <command> [flags]\n\n")
	fmt.Fprintf(os.Stdout, "Available commands:\n")
	for _, c := range commands() {
		fmt.Fprintf(os.Stdout, "  %-10s %s\n", c.name, c.description)
	}
}

func connect(cmdCtx *commandContext) (*data.RequestRepo, func(), error) {
	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
		DBConfig:    cmdCtx.Config.Postgres,
		RedisConfig: cmdCtx.Config.Redis,
		Logger:      cmdCtx.Logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect db: %w", err)
	}

	cleanup := func() {
		if cerr := db.Close(); cerr != nil {
			cmdCtx.Logger.Error("close database failed", "error", cerr)
		}
	}
	return data.NewRequestRepo(db, data.RepoConfig{Logger: cmdCtx.Logger}), cleanup, nil
}

func runCheck(cmdCtx *commandContext, _ []string) error {
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	repo, cleanup, err := connect(cmdCtx)
	if err != nil {
		return err
	}
	defer cleanup()

	stats, err := repo.Stats(ctx)
	if err != nil {
		if data.IsUndefinedTable(err) {
			return errors.New("wrapped_requests table missing; run 'wrapped-admin migrate' first")
		}
		return fmt.Errorf("query request stats: %w", err)
	}

	cmdCtx.Logger.InfoContext(ctx, "connection successful",
		"pending", stats.Pending,
		"processing", stats.Processing,
		"completed", stats.Completed,
		"failed", stats.Failed,
	)
	return nil
}

func runMigrate(cmdCtx *commandContext, _ []string) error {
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
		DBConfig:    cmdCtx.Config.Postgres,
		RedisConfig: cmdCtx.Config.Redis,
		Logger:      cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			cmdCtx.Logger.Error("close database failed", "error", cerr)
		}
	}()

	return bootstrap.RunMigrations(ctx, db, cmdCtx.Logger)
}

func runSeed(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	wallet := fs.String("wallet", "", "wallet address to seed a request for (required)")
	txSig := fs.String("tx", "", "payment transaction signature (defaults to a generated dev value)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *wallet == "" {
		return errors.New("-wallet is required")
	}

	sig := *txSig
	if sig == "" {
		sig = "dev-" + uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	repo, cleanup, err := connect(cmdCtx)
	if err != nil {
		return err
	}
	defer cleanup()

	req, err := repo.Create(ctx, &model.CreateRequestParams{
		WalletAddress: *wallet,
		TxSignature:   sig,
	})
	if err != nil {
		if apperrors.IsConflict(err) {
			return fmt.Errorf("a request with tx signature %q already exists", sig)
		}
		return fmt.Errorf("create request: %w", err)
	}

	cmdCtx.Logger.InfoContext(ctx, "request seeded",
		"request_id", req.ID,
		"wallet", req.WalletAddress,
		"tx_signature", req.TxSignature,
	)
	return nil
}
