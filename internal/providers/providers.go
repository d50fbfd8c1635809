// Louhi - Municipal Open Data Event Hub
// Copyright 2026 Louhi contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/louhi-city/louhi

package providers

import (
	"fmt"
	"time"

	"github.com/louhi-city/louhi/internal/config"
	"github.com/louhi-city/louhi/internal/importer"
	"github.com/louhi-city/louhi/internal/logging"
)

// defaultEventEnd supplies the end time for events whose feed omits one: a
// date-only event runs through its day, a timed event ends at its start.
func defaultEventEnd(start time.Time, hasStartTime bool) time.Time {
	if !hasStartTime {
		return start.Add(24 * time.Hour)
	}
	return start
}

// BuildRegistry constructs all configured providers and registers the
// enabled ones. Unknown provider names in the configuration are an error so
// typos surface at startup, not at the first scheduled run.
func BuildRegistry(cfg *config.Config) (*importer.Registry, error) {
	registry := importer.NewRegistry()

	for name, pcfg := range cfg.Providers {
		if !pcfg.Enabled {
			logging.Debug().Str("provider", name).Msg("Provider disabled, skipping registration")
			continue
		}

		client := NewClient(name, pcfg, cfg.Import)
		var provider importer.Provider
		switch name {
		case "unitreg":
			provider = NewUnitreg(client)
		case "onto":
			provider = NewOnto(client)
		case "libcal":
			provider = NewLibcal(client)
		case "tiketti":
			provider = NewTiketti(client)
		default:
			return nil, fmt.Errorf("unknown provider %q in configuration", name)
		}

		if err := registry.Register(provider); err != nil {
			return nil, err
		}
		logging.Info().Str("provider", name).Str("url", pcfg.URL).Msg("Provider registered")
	}

	return registry, nil
}
