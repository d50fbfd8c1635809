// Louhi - Municipal Open Data Event Hub
// Copyright 2026 Louhi contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/louhi-city/louhi

package importer

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/louhi-city/louhi/internal/models"
)

// RawRecord is one provider-native record as fetched, before mapping.
// Providers define their own concrete types; the core only needs the
// provider-native identifier for logging and duplicate detection.
type RawRecord interface {
	OriginID() string
}

// Provider is the capability set one external data source implements.
// Fetch and Map are kept separate so that mapping stays a deterministic
// pure function over a fetched batch and a read-only reference snapshot.
type Provider interface {
	// Name is the registry key and CLI argument naming this provider.
	Name() string

	// DataSource is the data source recorded on imported records. It
	// usually equals Name.
	DataSource() string

	// Kinds lists the resource kinds this provider can import.
	Kinds() []models.ResourceKind

	// Fetch retrieves the full current batch of raw records for one kind.
	// A failure here is total: the runner wraps it in FetchError and
	// performs no reconciliation and no sweep.
	Fetch(ctx context.Context, kind models.ResourceKind) ([]RawRecord, error)

	// Map converts one raw record into a canonical draft. Mandatory-field
	// and filtering rejections are returned as SkipError. Map must not
	// mutate refs.
	Map(kind models.ResourceKind, raw RawRecord, refs *RefSnapshot) (models.Record, error)
}

// RecurringLinker is an optional Provider capability. Providers whose feeds
// report individual occurrences of recurring events implement it to group
// occurrence drafts under generated super-event drafts before
// reconciliation. LinkRecurringEvents is the stock implementation.
type RecurringLinker interface {
	LinkRecurring(drafts []*models.Event) []*models.Event
}

// UnstableIdentity is an optional Provider capability. Providers whose
// origin ids are derived (address-based and similar) rather than stable
// implement it to opt in to the Resolver's fuzzy fallback match.
type UnstableIdentity interface {
	UnstableOriginIDs() bool
}

// Registry maps provider names to constructed providers. The job driver
// selects one by name per invocation.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry returns an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider. Registering the same name twice is a
// programming error.
func (r *Registry) Register(p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	if _, ok := r.providers[name]; ok {
		return fmt.Errorf("provider %q already registered", name)
	}
	r.providers[name] = p
	return nil
}

// Get returns the named provider.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (registered: %v)", name, r.names())
	}
	return p, nil
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.names()
}

func (r *Registry) names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
