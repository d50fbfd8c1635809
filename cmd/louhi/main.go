// Louhi - Municipal Open Data Event Hub
// Copyright 2026 Louhi contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/louhi-city/louhi

// Command louhi is the event hub binary. It aggregates events, places and
// keywords from municipal open data providers into a single DuckDB catalog
// and serves them over a read-only HTTP API.
//
// Usage:
//
//	louhi import <provider> [--events] [--places] [--keywords] [--all]
//	                        [--force] [--disable-indexing] [--config path]
//	louhi serve  [--config path]
//
// "import" executes one synchronous import run for the named provider and
// exits non-zero when the run fails. "serve" starts the daemon: the HTTP
// API plus cron-scheduled imports, supervised until SIGINT or SIGTERM.
//
// Configuration is loaded via koanf from built-in defaults, an optional
// YAML config file and LOUHI_* environment variables, highest last.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/louhi-city/louhi/internal/api"
	"github.com/louhi-city/louhi/internal/config"
	"github.com/louhi-city/louhi/internal/database"
	"github.com/louhi-city/louhi/internal/importer"
	"github.com/louhi-city/louhi/internal/logging"
	"github.com/louhi-city/louhi/internal/models"
	"github.com/louhi-city/louhi/internal/notify"
	"github.com/louhi-city/louhi/internal/providers"
	"github.com/louhi-city/louhi/internal/scheduler"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "import":
		err = runImport(os.Args[2:])
	case "serve":
		err = runServe(os.Args[2:])
	case "help", "-h", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}

	if err != nil {
		logging.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `Louhi - municipal open data event hub

Usage:
  louhi import <provider> [flags]   run one import synchronously
  louhi serve [flags]               run the daemon (API + scheduled imports)

Import flags:
  --events / --places / --keywords  restrict the run to listed kinds
  --all                             import every kind (default when no kind flag given)
  --force                           bypass the mass-delete sweep guard
  --disable-indexing                suppress search index notifications
  --config path                     config file (default: search order)
`)
}

// loadConfig loads configuration and initializes logging from it.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, err
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	return cfg, nil
}

func runImport(args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	var (
		events     = fs.Bool("events", false, "import events")
		places     = fs.Bool("places", false, "import places")
		keywords   = fs.Bool("keywords", false, "import keywords")
		all        = fs.Bool("all", false, "import every kind the provider supports")
		force      = fs.Bool("force", false, "bypass the mass-delete sweep guard")
		noIndexing = fs.Bool("disable-indexing", false, "suppress search index notifications")
		configPath = fs.String("config", "", "config file path")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("import needs exactly one provider name")
	}
	provider := fs.Arg(0)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	opts := importer.Options{Force: *force, DisableIndexing: *noIndexing}
	if !*all {
		if *events {
			opts.Kinds = append(opts.Kinds, models.KindEvent)
		}
		if *places {
			opts.Kinds = append(opts.Kinds, models.KindPlace)
		}
		if *keywords {
			opts.Kinds = append(opts.Kinds, models.KindKeyword)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, cleanup, err := buildRunner(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := runner.Run(ctx, provider, opts)
	if err != nil {
		return fmt.Errorf("import %s: %w", provider, err)
	}

	for _, kr := range report.Kinds {
		logging.Info().
			Str("provider", provider).
			Str("kind", string(kr.Kind)).
			Int("fetched", kr.Fetched).
			Int("created", kr.Created).
			Int("merged", kr.Merged).
			Int("unchanged", kr.Unchanged).
			Int("skipped", kr.Skipped).
			Int("errors", kr.Errors).
			Int64("deleted", kr.Deleted).
			Msg("Import kind finished")
	}
	logging.Info().
		Str("provider", provider).
		Str("run_id", report.RunID).
		Dur("duration", report.EndTime.Sub(report.StartTime)).
		Msg("Import run finished")
	return nil
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	logging.Info().
		Str("db_path", cfg.Database.Path).
		Int("providers", len(cfg.Providers)).
		Msg("Starting Louhi daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer closeQuietly("database", db.Close)

	ledger, err := importer.OpenLedger(cfg.Ledger.Path)
	if err != nil {
		return fmt.Errorf("open run ledger: %w", err)
	}
	defer closeQuietly("ledger", ledger.Close)

	notifySvc, err := notify.Open(ctx, &cfg.NATS)
	if err != nil {
		return fmt.Errorf("start notifications: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := notifySvc.Close(shutdownCtx); err != nil {
			logging.Error().Err(err).Msg("Error closing notification service")
		}
	}()

	registry, err := providers.BuildRegistry(cfg)
	if err != nil {
		return fmt.Errorf("build provider registry: %w", err)
	}

	runner := importer.NewRunner(cfg, db, registry, notifySvc.Notifier(), ledger)

	cronSvc, err := scheduler.NewCronService(cfg, runner)
	if err != nil {
		return fmt.Errorf("build cron schedule: %w", err)
	}
	httpSvc := scheduler.NewHTTPService(&cfg.Server, api.NewRouter(cfg, db, ledger))

	tree := scheduler.NewTree(logging.NewSlogLogger(), scheduler.DefaultTreeConfig())
	tree.AddIngestService(cronSvc)
	tree.AddAPIService(httpSvc)

	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logging.Info().Msg("Daemon stopped")
	return nil
}

// buildRunner assembles the import pipeline for one-shot CLI runs.
func buildRunner(ctx context.Context, cfg *config.Config) (*importer.Runner, func(), error) {
	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	ledger, err := importer.OpenLedger(cfg.Ledger.Path)
	if err != nil {
		closeQuietly("database", db.Close)
		return nil, nil, fmt.Errorf("open run ledger: %w", err)
	}

	notifySvc, err := notify.Open(ctx, &cfg.NATS)
	if err != nil {
		closeQuietly("ledger", ledger.Close)
		closeQuietly("database", db.Close)
		return nil, nil, fmt.Errorf("start notifications: %w", err)
	}

	registry, err := providers.BuildRegistry(cfg)
	if err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = notifySvc.Close(shutdownCtx)
		closeQuietly("ledger", ledger.Close)
		closeQuietly("database", db.Close)
		return nil, nil, fmt.Errorf("build provider registry: %w", err)
	}

	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := notifySvc.Close(shutdownCtx); err != nil {
			logging.Error().Err(err).Msg("Error closing notification service")
		}
		closeQuietly("ledger", ledger.Close)
		closeQuietly("database", db.Close)
	}
	return importer.NewRunner(cfg, db, registry, notifySvc.Notifier(), ledger), cleanup, nil
}

func closeQuietly(name string, close func() error) {
	if err := close(); err != nil {
		logging.Error().Err(err).Str("component", name).Msg("Error on close")
	}
}
