// Louhi - Municipal Open Data Event Hub
// Copyright 2026 Louhi contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/louhi-city/louhi

package importer

import (
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"

	"github.com/louhi-city/louhi/internal/logging"
)

// Ledger key layout.
const (
	ledgerLockPrefix   = "run:lock:"
	ledgerReportPrefix = "run:last:"
)

// Ledger stores per-provider run locks and last-run reports in an embedded
// BadgerDB. The Badger directory lock additionally serializes runs across
// processes sharing the same ledger path.
type Ledger struct {
	db *badger.DB
}

// OpenLedger opens (or creates) the run ledger at path.
func OpenLedger(path string) (*Ledger, error) {
	opts := badger.DefaultOptions(path).
		WithLogger(nil).
		WithMetricsEnabled(false)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open run ledger %s: %w", path, err)
	}
	return &Ledger{db: db}, nil
}

// Close releases the ledger and its directory lock.
func (l *Ledger) Close() error { return l.db.Close() }

// runLock is the lock record stored while a provider run is in flight.
type runLock struct {
	RunID    string    `json:"run_id"`
	Acquired time.Time `json:"acquired"`
}

// AcquireLock takes the provider's run lock, or returns ErrRunInProgress if
// another run holds it. The TTL bounds how long a crashed run can block the
// provider.
func (l *Ledger) AcquireLock(provider, runID string, ttl time.Duration) error {
	key := []byte(ledgerLockPrefix + provider)

	return l.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == nil {
			var held runLock
			_ = item.Value(func(val []byte) error {
				return json.Unmarshal(val, &held)
			})
			return fmt.Errorf("%w (run %s since %s)",
				ErrRunInProgress, held.RunID, held.Acquired.Format(time.RFC3339))
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("read run lock: %w", err)
		}

		val, err := json.Marshal(runLock{RunID: runID, Acquired: time.Now()})
		if err != nil {
			return err
		}
		entry := badger.NewEntry(key, val)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
}

// ReleaseLock drops the provider's run lock. Safe to call when not held.
func (l *Ledger) ReleaseLock(provider string) {
	err := l.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(ledgerLockPrefix + provider))
	})
	if err != nil {
		logging.Warn().Err(err).Str("provider", provider).Msg("Failed to release run lock")
	}
}

// SaveReport persists the run report as the provider's latest.
func (l *Ledger) SaveReport(report *RunReport) error {
	val, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal run report: %w", err)
	}
	return l.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(ledgerReportPrefix+report.Provider), val)
	})
}

// LastReport returns the provider's most recent run report, or ErrNotFound
// if the provider never completed a run.
func (l *Ledger) LastReport(provider string) (*RunReport, error) {
	var report RunReport
	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(ledgerReportPrefix + provider))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &report)
		})
	})
	if err != nil {
		return nil, err
	}
	return &report, nil
}
