// Louhi - Municipal Open Data Event Hub
// Copyright 2026 Louhi contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/louhi-city/louhi

package importer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/louhi-city/louhi/internal/config"
	"github.com/louhi-city/louhi/internal/models"
)

// rawStub is a RawRecord carrying a pre-mapped draft.
type rawStub struct {
	origin string
	rec    models.Record
	mapErr error
}

func (r rawStub) OriginID() string { return r.origin }

type fakeProvider struct {
	name     string
	kinds    []models.ResourceKind
	raws     map[models.ResourceKind][]RawRecord
	fetchErr error
}

func (p *fakeProvider) Name() string                { return p.name }
func (p *fakeProvider) DataSource() string          { return p.name }
func (p *fakeProvider) Kinds() []models.ResourceKind { return p.kinds }

func (p *fakeProvider) Fetch(_ context.Context, kind models.ResourceKind) ([]RawRecord, error) {
	if p.fetchErr != nil {
		return nil, p.fetchErr
	}
	return p.raws[kind], nil
}

func (p *fakeProvider) Map(_ models.ResourceKind, raw RawRecord, _ *RefSnapshot) (models.Record, error) {
	stub := raw.(rawStub)
	if stub.mapErr != nil {
		return nil, stub.mapErr
	}
	return stub.rec, nil
}

func rawEvent(origin, name string) rawStub {
	return rawStub{
		origin: origin,
		rec: &models.Event{
			RecordMeta: models.RecordMeta{OriginID: origin},
			Name:       name,
			StartTime:  time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC),
		},
	}
}

func testRunConfig(providerName string) *config.Config {
	return &config.Config{
		Ledger: config.LedgerConfig{LockTTL: time.Hour},
		Import: config.ImportConfig{
			FailureRatio:        0.5,
			MatchMaxDistance:    3,
			PlaceholderLocation: "unitreg:unknown",
			SweepGuardMinCount:  5,
			SweepGuardRatio:     0.2,
		},
		Providers: map[string]config.ProviderConfig{
			providerName: {Enabled: true, Publisher: "city:test"},
		},
	}
}

func newTestRunner(t *testing.T, gw *memGateway, provider Provider, notifier Notifier) *Runner {
	t.Helper()
	registry := NewRegistry()
	if err := registry.Register(provider); err != nil {
		t.Fatalf("register: %v", err)
	}
	return NewRunner(testRunConfig(provider.Name()), gw, registry, notifier, openTestLedger(t))
}

func TestRunnerFullRun(t *testing.T) {
	gw := newMemGateway()

	// A record from a previous run the new feed no longer contains.
	stale := &models.Event{RecordMeta: models.RecordMeta{DataSource: "libcal", OriginID: "gone"}, Name: "Gone"}
	gw.seed(stale)

	provider := &fakeProvider{
		name:  "libcal",
		kinds: []models.ResourceKind{models.KindEvent},
		raws: map[models.ResourceKind][]RawRecord{
			models.KindEvent: {rawEvent("1", "Concert"), rawEvent("2", "Reading")},
		},
	}
	notifier := &recordingNotifier{}
	runner := newTestRunner(t, gw, provider, notifier)

	report, err := runner.Run(context.Background(), "libcal", Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(report.Kinds) != 1 {
		t.Fatalf("kinds = %d", len(report.Kinds))
	}
	kr := report.Kinds[0]
	if kr.Fetched != 2 || kr.Created != 2 || kr.Deleted != 1 || !kr.SweepCompleted {
		t.Errorf("kind report = %+v", kr)
	}

	if gw.stored(models.KindEvent, "libcal:1") == nil {
		t.Error("fetched record not persisted")
	}
	if !gw.stored(models.KindEvent, "libcal:gone").Meta().Deleted {
		t.Error("stale record not swept")
	}
	if len(notifier.touched) != 2 || len(notifier.deleted) != 1 {
		t.Errorf("notifications: touched=%v deleted=%v", notifier.touched, notifier.deleted)
	}

	// Publisher stamped from provider config.
	if got := gw.stored(models.KindEvent, "libcal:1").(*models.Event).Publisher; got != "city:test" {
		t.Errorf("publisher = %q", got)
	}
}

func TestRunnerIdempotentRerun(t *testing.T) {
	gw := newMemGateway()
	provider := &fakeProvider{
		name:  "libcal",
		kinds: []models.ResourceKind{models.KindEvent},
		raws: map[models.ResourceKind][]RawRecord{
			models.KindEvent: {rawEvent("1", "Concert")},
		},
	}
	runner := newTestRunner(t, gw, provider, nil)

	if _, err := runner.Run(context.Background(), "libcal", Options{}); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// The mapper output is reused across runs, so rebuild fresh drafts.
	provider.raws[models.KindEvent] = []RawRecord{rawEvent("1", "Concert")}
	report, err := runner.Run(context.Background(), "libcal", Options{})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	kr := report.Kinds[0]
	if kr.Created != 0 || kr.Unchanged != 1 || kr.Deleted != 0 {
		t.Errorf("second run not idempotent: %+v", kr)
	}
}

func TestRunnerFetchFailureSkipsSweep(t *testing.T) {
	gw := newMemGateway()
	stale := &models.Event{RecordMeta: models.RecordMeta{DataSource: "libcal", OriginID: "gone"}, Name: "Gone"}
	gw.seed(stale)

	provider := &fakeProvider{
		name:     "libcal",
		kinds:    []models.ResourceKind{models.KindEvent},
		fetchErr: errors.New("connection refused"),
	}
	runner := newTestRunner(t, gw, provider, nil)

	report, err := runner.Run(context.Background(), "libcal", Options{})
	if err == nil {
		t.Fatal("expected run error")
	}
	if report.Kinds[0].SweepCompleted {
		t.Error("sweep ran after fetch failure")
	}
	if gw.stored(models.KindEvent, "libcal:gone").Meta().Deleted {
		t.Error("record swept after fetch failure")
	}
}

func TestRunnerMassDeleteGuard(t *testing.T) {
	gw := newMemGateway()
	for _, origin := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"} {
		gw.seed(&models.Event{RecordMeta: models.RecordMeta{DataSource: "libcal", OriginID: origin}, Name: "Old " + origin})
	}

	provider := &fakeProvider{
		name:  "libcal",
		kinds: []models.ResourceKind{models.KindEvent},
		raws: map[models.ResourceKind][]RawRecord{
			models.KindEvent: {rawEvent("a", "Old a")},
		},
	}
	runner := newTestRunner(t, gw, provider, nil)

	report, err := runner.Run(context.Background(), "libcal", Options{})
	if err == nil {
		t.Fatal("expected guard error")
	}
	if !strings.Contains(report.Error, "mass-delete guard") {
		t.Errorf("report error = %q", report.Error)
	}
	if gw.stored(models.KindEvent, "libcal:b").Meta().Deleted {
		t.Error("guard did not prevent sweep")
	}

	// Forced re-run overrides the guard.
	provider.raws[models.KindEvent] = []RawRecord{rawEvent("a", "Old a")}
	report, err = runner.Run(context.Background(), "libcal", Options{Force: true})
	if err != nil {
		t.Fatalf("forced run: %v", err)
	}
	if report.Kinds[0].Deleted != 9 {
		t.Errorf("forced sweep deleted = %d, want 9", report.Kinds[0].Deleted)
	}
}

func TestRunnerFailureRatioAbortsSweep(t *testing.T) {
	gw := newMemGateway()
	stale := &models.Event{RecordMeta: models.RecordMeta{DataSource: "libcal", OriginID: "gone"}, Name: "Gone"}
	gw.seed(stale)

	provider := &fakeProvider{
		name:  "libcal",
		kinds: []models.ResourceKind{models.KindEvent},
		raws: map[models.ResourceKind][]RawRecord{
			models.KindEvent: {
				rawEvent("1", "OK"),
				rawStub{origin: "2", mapErr: errors.New("bad payload")},
				rawStub{origin: "3", mapErr: errors.New("bad payload")},
			},
		},
	}
	runner := newTestRunner(t, gw, provider, nil)

	report, err := runner.Run(context.Background(), "libcal", Options{})
	if err == nil {
		t.Fatal("expected failure-ratio error")
	}
	kr := report.Kinds[0]
	if kr.SweepCompleted {
		t.Error("sweep ran despite failure ratio")
	}
	if kr.Errors != 2 {
		t.Errorf("errors = %d, want 2", kr.Errors)
	}
	if gw.stored(models.KindEvent, "libcal:gone").Meta().Deleted {
		t.Error("record swept despite aborted run")
	}
}

func TestRunnerSkipsCounted(t *testing.T) {
	gw := newMemGateway()
	provider := &fakeProvider{
		name:  "libcal",
		kinds: []models.ResourceKind{models.KindEvent},
		raws: map[models.ResourceKind][]RawRecord{
			models.KindEvent: {
				rawEvent("1", "OK"),
				rawStub{origin: "2", mapErr: Skip("no name")},
			},
		},
	}
	runner := newTestRunner(t, gw, provider, nil)

	report, err := runner.Run(context.Background(), "libcal", Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	kr := report.Kinds[0]
	if kr.Skipped != 1 || kr.Created != 1 || kr.Errors != 0 {
		t.Errorf("kind report = %+v", kr)
	}
}

func TestRunnerDuplicateOriginLastWins(t *testing.T) {
	gw := newMemGateway()
	provider := &fakeProvider{
		name:  "libcal",
		kinds: []models.ResourceKind{models.KindEvent},
		raws: map[models.ResourceKind][]RawRecord{
			models.KindEvent: {
				rawEvent("1", "First version"),
				rawEvent("1", "Second version"),
			},
		},
	}
	runner := newTestRunner(t, gw, provider, nil)

	report, err := runner.Run(context.Background(), "libcal", Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Kinds[0].Created != 1 {
		t.Errorf("created = %d, want 1", report.Kinds[0].Created)
	}
	if got := gw.stored(models.KindEvent, "libcal:1").(*models.Event).Name; got != "Second version" {
		t.Errorf("stored name = %q, want last occurrence", got)
	}
}

func TestRunnerDisabledProvider(t *testing.T) {
	gw := newMemGateway()
	provider := &fakeProvider{name: "libcal", kinds: []models.ResourceKind{models.KindEvent}}
	registry := NewRegistry()
	if err := registry.Register(provider); err != nil {
		t.Fatal(err)
	}
	cfg := testRunConfig("libcal")
	cfg.Providers["libcal"] = config.ProviderConfig{Enabled: false}
	runner := NewRunner(cfg, gw, registry, nil, openTestLedger(t))

	if _, err := runner.Run(context.Background(), "libcal", Options{}); err == nil {
		t.Fatal("expected error for disabled provider")
	}
}

func TestRunnerUnknownKind(t *testing.T) {
	gw := newMemGateway()
	provider := &fakeProvider{name: "libcal", kinds: []models.ResourceKind{models.KindEvent}}
	runner := newTestRunner(t, gw, provider, nil)

	_, err := runner.Run(context.Background(), "libcal", Options{Kinds: []models.ResourceKind{models.KindPlace}})
	if err == nil {
		t.Fatal("expected error for unsupported kind")
	}
}

func TestRunnerRunLockHeld(t *testing.T) {
	gw := newMemGateway()
	provider := &fakeProvider{name: "libcal", kinds: []models.ResourceKind{models.KindEvent}}
	registry := NewRegistry()
	if err := registry.Register(provider); err != nil {
		t.Fatal(err)
	}
	ledger := openTestLedger(t)
	runner := NewRunner(testRunConfig("libcal"), gw, registry, nil, ledger)

	if err := ledger.AcquireLock("libcal", "other-run", time.Hour); err != nil {
		t.Fatal(err)
	}

	_, err := runner.Run(context.Background(), "libcal", Options{})
	if !errors.Is(err, ErrRunInProgress) {
		t.Errorf("err = %v, want ErrRunInProgress", err)
	}
}

func TestRunnerSaveReportToLedger(t *testing.T) {
	gw := newMemGateway()
	provider := &fakeProvider{
		name:  "libcal",
		kinds: []models.ResourceKind{models.KindEvent},
		raws: map[models.ResourceKind][]RawRecord{
			models.KindEvent: {rawEvent("1", "Concert")},
		},
	}
	registry := NewRegistry()
	if err := registry.Register(provider); err != nil {
		t.Fatal(err)
	}
	ledger := openTestLedger(t)
	runner := NewRunner(testRunConfig("libcal"), gw, registry, nil, ledger)

	report, err := runner.Run(context.Background(), "libcal", Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	saved, err := ledger.LastReport("libcal")
	if err != nil {
		t.Fatalf("LastReport: %v", err)
	}
	if saved.RunID != report.RunID {
		t.Errorf("ledger run id = %q, want %q", saved.RunID, report.RunID)
	}
}

// Three consecutive runs against an evolving feed: a record disappears and
// comes back, another is renamed, a third is added along the way.
func TestRunnerFeedEvolution(t *testing.T) {
	gw := newMemGateway()
	provider := &fakeProvider{
		name:  "acme",
		kinds: []models.ResourceKind{models.KindEvent},
	}
	runner := newTestRunner(t, gw, provider, nil)

	run := func(raws ...RawRecord) *KindReport {
		t.Helper()
		provider.raws = map[models.ResourceKind][]RawRecord{models.KindEvent: raws}
		report, err := runner.Run(context.Background(), "acme", Options{})
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		return &report.Kinds[0]
	}

	run(rawEvent("1", "Concert A"), rawEvent("2", "Concert B"))
	first := gw.stored(models.KindEvent, "acme:1")
	if first == nil {
		t.Fatal("acme:1 not created")
	}

	// Run 2: acme:1 dropped from the feed, acme:2 renamed, acme:3 new.
	kr := run(rawEvent("2", "Concert B2"), rawEvent("3", "Concert C"))
	if kr.Created != 1 || kr.Merged != 1 || kr.Deleted != 1 {
		t.Errorf("run 2 report = %+v", kr)
	}
	if !gw.stored(models.KindEvent, "acme:1").Meta().Deleted {
		t.Error("acme:1 not soft-deleted")
	}
	if got := gw.stored(models.KindEvent, "acme:2").(*models.Event).Name; got != "Concert B2" {
		t.Errorf("acme:2 name = %q", got)
	}
	if gw.stored(models.KindEvent, "acme:3") == nil {
		t.Error("acme:3 not created")
	}

	// Run 3: acme:1 reappears and must resurrect under its original id.
	run(rawEvent("1", "Concert A"), rawEvent("2", "Concert B2"), rawEvent("3", "Concert C"))
	back := gw.stored(models.KindEvent, "acme:1")
	if back.Meta().Deleted {
		t.Error("acme:1 still deleted after resurrection")
	}
	firstID := models.ExternalID(first.Meta().DataSource, first.Meta().OriginID)
	backID := models.ExternalID(back.Meta().DataSource, back.Meta().OriginID)
	if backID != firstID {
		t.Errorf("external id changed across resurrection: %q -> %q", firstID, backID)
	}
}

func TestRunnerSeedsPlaceholderLocation(t *testing.T) {
	gw := newMemGateway()
	provider := &fakeProvider{
		name:  "libcal",
		kinds: []models.ResourceKind{models.KindEvent},
		raws: map[models.ResourceKind][]RawRecord{
			models.KindEvent: {rawEvent("1", "Concert")},
		},
	}
	runner := newTestRunner(t, gw, provider, nil)

	if _, err := runner.Run(context.Background(), "libcal", Options{}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	ph := gw.stored(models.KindPlace, "unitreg:unknown")
	if ph == nil {
		t.Fatal("placeholder place not seeded")
	}
	if name := ph.(*models.Place).Name; name != "Unknown location" {
		t.Errorf("placeholder name = %q", name)
	}
}

func TestRunnerSweepSparesPlaceholder(t *testing.T) {
	gw := newMemGateway()
	place := &models.Place{
		RecordMeta: models.RecordMeta{DataSource: "unitreg", OriginID: "u1"},
		Name:       "Main Library",
	}
	provider := &fakeProvider{
		name:  "unitreg",
		kinds: []models.ResourceKind{models.KindPlace},
		raws: map[models.ResourceKind][]RawRecord{
			models.KindPlace: {rawStub{origin: "u1", rec: place}},
		},
	}
	runner := newTestRunner(t, gw, provider, nil)

	// The placeholder shares the registry's data source yet is never part of
	// the feed; the sweep must not soft-delete it.
	if _, err := runner.Run(context.Background(), "unitreg", Options{}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	ph := gw.stored(models.KindPlace, "unitreg:unknown")
	if ph == nil {
		t.Fatal("placeholder place not seeded")
	}
	if ph.Meta().Deleted {
		t.Error("placeholder soft-deleted by sweep")
	}
}
