// Louhi - Municipal Open Data Event Hub
// Copyright 2026 Louhi contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/louhi-city/louhi

package importer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/louhi-city/louhi/internal/config"
	"github.com/louhi-city/louhi/internal/logging"
	"github.com/louhi-city/louhi/internal/metrics"
	"github.com/louhi-city/louhi/internal/models"
)

// Options selects what one import run covers.
type Options struct {
	// Kinds restricts the run to the listed resource kinds. Empty means all
	// kinds the provider supports.
	Kinds []models.ResourceKind

	// Force bypasses the mass-delete sweep guard.
	Force bool

	// DisableIndexing suppresses record-touched notifications for this run.
	DisableIndexing bool
}

// Runner drives complete import runs: lock, fetch, map, reconcile, sweep,
// notify, report. One Runner is shared by the CLI and the scheduler.
type Runner struct {
	cfg      *config.Config
	gw       Gateway
	registry *Registry
	notifier Notifier
	ledger   *Ledger
}

// NewRunner wires a runner over the shared infrastructure.
func NewRunner(cfg *config.Config, gw Gateway, registry *Registry, notifier Notifier, ledger *Ledger) *Runner {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &Runner{cfg: cfg, gw: gw, registry: registry, notifier: notifier, ledger: ledger}
}

// Run executes one full import run for the named provider. The returned
// report is also persisted to the ledger; a non-nil error always has a
// matching report.Error.
func (r *Runner) Run(ctx context.Context, providerName string, opts Options) (*RunReport, error) {
	provider, err := r.registry.Get(providerName)
	if err != nil {
		return nil, err
	}
	pcfg, ok := r.cfg.Providers[providerName]
	if !ok {
		return nil, fmt.Errorf("provider %q has no configuration", providerName)
	}
	if !pcfg.Enabled {
		return nil, fmt.Errorf("provider %q is disabled", providerName)
	}

	report := &RunReport{
		RunID:     uuid.New().String(),
		Provider:  providerName,
		StartTime: time.Now(),
		Forced:    opts.Force,
	}

	if err := r.ledger.AcquireLock(providerName, report.RunID, r.cfg.Ledger.LockTTL); err != nil {
		return nil, err
	}
	defer r.ledger.ReleaseLock(providerName)

	logging.Info().
		Str("run_id", report.RunID).
		Str("provider", providerName).
		Bool("force", opts.Force).
		Msg("Import run started")

	notifier := r.notifier
	if opts.DisableIndexing {
		notifier = NoopNotifier{}
	}

	kinds, err := selectKinds(provider, opts.Kinds)
	if err != nil {
		return nil, err
	}

	if err := r.ensurePlaceholder(ctx); err != nil {
		return nil, fmt.Errorf("placeholder location: %w", err)
	}

	snapshot, err := NewRefSnapshot(ctx, r.gw, r.cfg.Import.PlaceholderLocation)
	if err != nil {
		return nil, fmt.Errorf("reference snapshot: %w", err)
	}

	var runErrs []error
	for _, kind := range kinds {
		kr := r.runKind(ctx, provider, pcfg, snapshot, notifier, kind, opts)
		report.Kinds = append(report.Kinds, kr)
		if kr.Error != "" {
			runErrs = append(runErrs, errors.New(kr.Error))
		}
		// Cancellation aborts the remaining kinds outright.
		if ctx.Err() != nil {
			break
		}
	}

	report.EndTime = time.Now()
	runErr := errors.Join(runErrs...)
	if runErr != nil {
		report.Error = runErr.Error()
	}

	if err := r.ledger.SaveReport(report); err != nil {
		logging.Error().Err(err).Str("run_id", report.RunID).Msg("Failed to persist run report")
	}

	result := "success"
	if runErr != nil {
		result = "failure"
	}
	metrics.RunsTotal.WithLabelValues(providerName, result).Inc()
	metrics.RunDuration.WithLabelValues(providerName).Observe(report.EndTime.Sub(report.StartTime).Seconds())

	logging.Info().
		Str("run_id", report.RunID).
		Str("provider", providerName).
		Str("result", result).
		Dur("duration", report.EndTime.Sub(report.StartTime)).
		Msg("Import run finished")

	return report, runErr
}

// runKind imports one resource kind end to end. All failure modes are folded
// into the KindReport; a non-empty Error marks the kind failed.
func (r *Runner) runKind(ctx context.Context, provider Provider, pcfg config.ProviderConfig,
	snapshot *RefSnapshot, notifier Notifier, kind models.ResourceKind, opts Options) KindReport {

	kr := KindReport{Kind: kind}
	dataSource := provider.DataSource()

	raws, err := provider.Fetch(ctx, kind)
	if err != nil {
		ferr := &FetchError{Provider: provider.Name(), Kind: kind, Err: err}
		logging.Error().Err(ferr).Msg("Fetch failed, kind aborted without sweep")
		kr.Error = ferr.Error()
		return kr
	}
	kr.Fetched = len(raws)

	drafts := r.mapBatch(provider, snapshot, kind, raws, &kr)
	drafts = dedupeDrafts(drafts, &kr)

	if kind == models.KindEvent {
		if linker, ok := provider.(RecurringLinker); ok {
			drafts = recordsFromEvents(linker.LinkRecurring(eventsFromRecords(drafts)))
		}
	}

	allowHeuristic := false
	if u, ok := provider.(UnstableIdentity); ok {
		allowHeuristic = u.UnstableOriginIDs()
	}
	resolver := NewResolver(r.gw, snapshot, allowHeuristic, r.cfg.Import.MatchMaxDistance)
	engine := NewEngine(r.gw, resolver, pcfg.AuthoritativeFields)

	for _, draft := range drafts {
		if ctx.Err() != nil {
			kr.Error = fmt.Errorf("%w: sweep skipped for %s/%s", ErrCancelled, dataSource, kind).Error()
			return kr
		}

		status, err := engine.Reconcile(ctx, draft)
		if err != nil {
			kr.Errors++
			metrics.RecordsTotal.WithLabelValues(provider.Name(), string(kind), "error").Inc()
			logging.Error().Err(err).Str("kind", string(kind)).Msg("Record reconciliation failed")
			continue
		}

		switch status {
		case StatusCreated:
			kr.Created++
		case StatusMerged:
			kr.Merged++
		case StatusPartiallyMerged:
			kr.Partial++
		case StatusUnchanged:
			kr.Unchanged++
		}
		metrics.RecordsTotal.WithLabelValues(provider.Name(), string(kind), status.String()).Inc()

		if status != StatusUnchanged {
			if err := notifier.RecordTouched(ctx, kind, draft.Meta().ID); err != nil {
				logging.Warn().Err(err).Str("id", draft.Meta().ID).Msg("Touch notification failed")
			}
		}
	}

	if ratio := r.cfg.Import.FailureRatio; ratio > 0 && kr.processed() > 0 {
		if share := float64(kr.Errors) / float64(kr.processed()); share > ratio {
			ferr := &FailureRatioError{
				Provider:  provider.Name(),
				Kind:      kind,
				Failed:    kr.Errors,
				Processed: kr.processed(),
				Threshold: ratio,
			}
			logging.Error().Err(ferr).Msg("Failure ratio exceeded, sweep skipped")
			kr.Error = ferr.Error()
			return kr
		}
	}

	if kind == models.KindEvent {
		if err := engine.RebuildHierarchies(ctx); err != nil {
			kr.Error = err.Error()
			return kr
		}
	}

	return r.sweep(ctx, provider, notifier, kind, dataSource, engine.Touched(), opts, kr)
}

// ensurePlaceholder seeds the configured fallback location so events mapped
// onto it never reference a place the store cannot serve.
func (r *Runner) ensurePlaceholder(ctx context.Context) error {
	id := r.cfg.Import.PlaceholderLocation
	if id == "" {
		return nil
	}
	ds, origin, ok := strings.Cut(id, ":")
	if !ok || ds == "" || origin == "" {
		return fmt.Errorf("malformed placeholder location id %q", id)
	}

	_, err := r.gw.FindRecord(ctx, models.KindPlace, ds, origin)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}

	now := time.Now()
	return r.gw.UpsertRecord(ctx, &models.Place{
		RecordMeta: models.RecordMeta{
			ID:               id,
			DataSource:       ds,
			OriginID:         origin,
			CreatedTime:      now,
			LastModifiedTime: now,
		},
		Name: "Unknown location",
	})
}

// mapBatch converts raw records into drafts, counting skips and mapping
// errors. The draft's data source and publisher are stamped here so mappers
// stay free of run configuration.
func (r *Runner) mapBatch(provider Provider, snapshot *RefSnapshot,
	kind models.ResourceKind, raws []RawRecord, kr *KindReport) []models.Record {

	pcfg := r.cfg.Providers[provider.Name()]
	drafts := make([]models.Record, 0, len(raws))
	for _, raw := range raws {
		draft, err := provider.Map(kind, raw, snapshot)
		switch {
		case IsSkip(err):
			kr.Skipped++
			metrics.RecordsTotal.WithLabelValues(provider.Name(), string(kind), "skipped").Inc()
			logging.Debug().Str("origin", raw.OriginID()).Err(err).Msg("Record skipped by mapper")
			continue
		case err != nil:
			kr.Errors++
			metrics.RecordsTotal.WithLabelValues(provider.Name(), string(kind), "error").Inc()
			logging.Error().Str("origin", raw.OriginID()).Err(err).Msg("Record mapping failed")
			continue
		}

		meta := draft.Meta()
		if meta.DataSource == "" {
			meta.DataSource = provider.DataSource()
		}
		stampPublisher(draft, pcfg.Publisher)
		drafts = append(drafts, draft)
	}
	return drafts
}

// sweep soft-deletes records of the data source absent from the batch, with
// the mass-delete guard protecting against truncated feeds.
func (r *Runner) sweep(ctx context.Context, provider Provider, notifier Notifier,
	kind models.ResourceKind, dataSource string, touched []string, opts Options, kr KindReport) KindReport {

	// The seeded placeholder location is owned by the runner, not the feed,
	// so it always counts as touched.
	if kind == models.KindPlace {
		if ph := r.cfg.Import.PlaceholderLocation; strings.HasPrefix(ph, dataSource+":") {
			touched = append(touched, ph)
		}
	}

	untouched, err := r.gw.CountUntouched(ctx, kind, dataSource, touched)
	if err != nil {
		kr.Error = (&SweepError{Provider: provider.Name(), Kind: kind, Err: err}).Error()
		return kr
	}

	if !opts.Force && untouched > int64(r.cfg.Import.SweepGuardMinCount) {
		active, err := r.gw.CountActive(ctx, kind, dataSource)
		if err != nil {
			kr.Error = (&SweepError{Provider: provider.Name(), Kind: kind, Err: err}).Error()
			return kr
		}
		if active > 0 && float64(untouched) > r.cfg.Import.SweepGuardRatio*float64(active) {
			serr := &SweepError{
				Provider: provider.Name(),
				Kind:     kind,
				Err: fmt.Errorf("mass-delete guard: %d of %d live records would be deleted, re-run with --force to override",
					untouched, active),
			}
			logging.Error().Err(serr).Msg("Sweep aborted by mass-delete guard")
			kr.Error = serr.Error()
			return kr
		}
	}

	deleted, err := r.gw.BulkSoftDeleteUntouched(ctx, kind, dataSource, touched)
	if err != nil {
		kr.Error = (&SweepError{Provider: provider.Name(), Kind: kind, Err: err}).Error()
		return kr
	}

	kr.Deleted = deleted
	kr.SweepCompleted = true
	if deleted > 0 {
		metrics.SweepDeleted.WithLabelValues(provider.Name(), string(kind)).Add(float64(deleted))
		logging.Info().
			Str("data_source", dataSource).
			Str("kind", string(kind)).
			Int64("deleted", deleted).
			Msg("Stale records soft-deleted")
		if err := notifier.RecordsDeleted(ctx, kind, dataSource, deleted); err != nil {
			logging.Warn().Err(err).Msg("Delete notification failed")
		}
	}
	return kr
}

// selectKinds intersects the requested kinds with what the provider
// supports and orders them so referenced resources import before events.
func selectKinds(provider Provider, requested []models.ResourceKind) ([]models.ResourceKind, error) {
	supported := provider.Kinds()
	if len(requested) == 0 {
		requested = supported
	}

	supportedSet := make(map[models.ResourceKind]struct{}, len(supported))
	for _, k := range supported {
		supportedSet[k] = struct{}{}
	}

	var kinds []models.ResourceKind
	for _, k := range requested {
		if !k.Valid() {
			return nil, fmt.Errorf("unknown resource kind %q", k)
		}
		if _, ok := supportedSet[k]; !ok {
			return nil, fmt.Errorf("provider %q does not import %s", provider.Name(), k)
		}
		kinds = append(kinds, k)
	}

	sort.SliceStable(kinds, func(i, j int) bool {
		return kindOrder(kinds[i]) < kindOrder(kinds[j])
	})
	return kinds, nil
}

// kindOrder imports vocabularies first, venues second, events last, so event
// drafts can resolve their references within one run.
func kindOrder(k models.ResourceKind) int {
	switch k {
	case models.KindKeyword:
		return 0
	case models.KindPlace:
		return 1
	default:
		return 2
	}
}

// dedupeDrafts resolves duplicate origin ids within one batch: the last
// occurrence wins, earlier ones are dropped with a warning.
func dedupeDrafts(drafts []models.Record, kr *KindReport) []models.Record {
	last := make(map[string]int, len(drafts))
	dupes := 0
	for i, d := range drafts {
		key := d.Meta().OriginID
		if _, ok := last[key]; ok {
			dupes++
			logging.Warn().Str("origin", key).Msg("Duplicate origin id in batch, keeping last occurrence")
		}
		last[key] = i
	}
	if dupes == 0 {
		return drafts
	}

	kr.Skipped += dupes
	out := make([]models.Record, 0, len(drafts)-dupes)
	for i, d := range drafts {
		if last[d.Meta().OriginID] == i {
			out = append(out, d)
		}
	}
	return out
}

func stampPublisher(rec models.Record, publisher string) {
	if publisher == "" {
		return
	}
	switch r := rec.(type) {
	case *models.Event:
		if r.Publisher == "" {
			r.Publisher = publisher
		}
	case *models.Place:
		if r.Publisher == "" {
			r.Publisher = publisher
		}
	case *models.Keyword:
		if r.Publisher == "" {
			r.Publisher = publisher
		}
	}
}

func eventsFromRecords(recs []models.Record) []*models.Event {
	events := make([]*models.Event, 0, len(recs))
	for _, r := range recs {
		if ev, ok := r.(*models.Event); ok {
			events = append(events, ev)
		}
	}
	return events
}

func recordsFromEvents(events []*models.Event) []models.Record {
	recs := make([]models.Record, 0, len(events))
	for _, ev := range events {
		recs = append(recs, ev)
	}
	return recs
}
