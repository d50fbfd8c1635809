// Louhi - Municipal Open Data Event Hub
// Copyright 2026 Louhi contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/louhi-city/louhi

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/louhi-city/louhi/internal/config"
	"github.com/louhi-city/louhi/internal/importer"
	"github.com/louhi-city/louhi/internal/logging"
)

// RunStarter triggers one import run. Satisfied by *importer.Runner.
type RunStarter interface {
	Run(ctx context.Context, provider string, opts importer.Options) (*importer.RunReport, error)
}

// CronService schedules import runs from the providers' cron expressions.
// It is a suture.Service: Serve blocks until the context is cancelled and
// stops the cron cleanly, waiting for in-flight jobs.
type CronService struct {
	runner   RunStarter
	cron     *cron.Cron
	entries  map[string]cron.EntryID
	runCtx   context.Context
	cancelFn context.CancelFunc
}

// NewCronService registers every enabled provider that carries a schedule.
// Providers without a schedule only run via the one-shot CLI. Invalid cron
// expressions are a configuration error.
func NewCronService(cfg *config.Config, runner RunStarter) (*CronService, error) {
	s := &CronService{
		runner:  runner,
		cron:    cron.New(),
		entries: make(map[string]cron.EntryID),
	}

	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		pcfg := cfg.Providers[name]
		if !pcfg.Enabled || pcfg.Schedule == "" {
			continue
		}
		provider := name
		id, err := s.cron.AddFunc(pcfg.Schedule, func() { s.runProvider(provider) })
		if err != nil {
			return nil, fmt.Errorf("provider %s: invalid schedule %q: %w", name, pcfg.Schedule, err)
		}
		s.entries[name] = id
		logging.Info().
			Str("provider", name).
			Str("schedule", pcfg.Schedule).
			Msg("Import scheduled")
	}

	return s, nil
}

// Scheduled returns the providers with an active cron entry, sorted.
func (s *CronService) Scheduled() []string {
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Serve implements suture.Service.
func (s *CronService) Serve(ctx context.Context) error {
	// Jobs inherit this context so cancelling the service aborts a
	// mid-flight import at the next reconciliation step.
	s.runCtx, s.cancelFn = context.WithCancel(ctx)
	s.cron.Start()

	<-ctx.Done()

	s.cancelFn()
	stopped := s.cron.Stop()
	<-stopped.Done()
	return ctx.Err()
}

func (s *CronService) runProvider(name string) {
	start := time.Now()
	report, err := s.runner.Run(s.runCtx, name, importer.Options{})

	switch {
	case errors.Is(err, importer.ErrRunInProgress):
		logging.Warn().
			Str("provider", name).
			Msg("Scheduled import skipped, previous run still holds the lock")
	case err != nil:
		logging.Error().Err(err).
			Str("provider", name).
			Dur("duration", time.Since(start)).
			Msg("Scheduled import failed")
	default:
		logging.Info().
			Str("provider", name).
			Str("run_id", report.RunID).
			Dur("duration", time.Since(start)).
			Msg("Scheduled import finished")
	}
}
