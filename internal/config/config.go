// Louhi - Municipal Open Data Event Hub
// Copyright 2026 Louhi contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/louhi-city/louhi

// Package config loads and validates the Louhi configuration.
//
// Configuration is loaded via Koanf v2 with layered sources, highest
// priority last:
//
//  1. Built-in defaults
//  2. Optional YAML config file (config.yaml, /etc/louhi/config.yaml, or
//     the path in LOUHI_CONFIG)
//  3. Environment variables with the LOUHI_ prefix
//     (LOUHI_DATABASE_PATH -> database.path)
//
// Struct-tag validation runs through go-playground/validator; cross-field
// rules that the tag language cannot express are checked explicitly in
// Validate.
package config

import "time"

// Config is the root configuration for both the one-shot import CLI and the
// daemon.
type Config struct {
	Database  DatabaseConfig            `koanf:"database"`
	Ledger    LedgerConfig              `koanf:"ledger"`
	NATS      NATSConfig                `koanf:"nats"`
	Import    ImportConfig              `koanf:"import"`
	Providers map[string]ProviderConfig `koanf:"providers"`
	Server    ServerConfig              `koanf:"server"`
	API       APIConfig                 `koanf:"api"`
	Logging   LoggingConfig             `koanf:"logging"`
}

// DatabaseConfig configures the embedded DuckDB record store.
type DatabaseConfig struct {
	Path                   string `koanf:"path" validate:"required"`
	MaxMemory              string `koanf:"max_memory"`
	Threads                int    `koanf:"threads"` // 0 = runtime.NumCPU()
	PreserveInsertionOrder bool   `koanf:"preserve_insertion_order"`
}

// LedgerConfig configures the BadgerDB run ledger that stores per-provider
// run locks and last-run reports.
type LedgerConfig struct {
	Path string `koanf:"path" validate:"required"`
	// LockTTL bounds how long a crashed run can hold the provider lock.
	LockTTL time.Duration `koanf:"lock_ttl" validate:"min=0"`
}

// NATSConfig configures the record-touched notification publisher consumed
// by the external search indexer.
type NATSConfig struct {
	Enabled        bool   `koanf:"enabled"`
	URL            string `koanf:"url"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`
	StreamName     string `koanf:"stream_name"`
	TouchedTopic   string `koanf:"touched_topic"`
	DeletedTopic   string `koanf:"deleted_topic"`

	MaxReconnects   int           `koanf:"max_reconnects"`
	ReconnectWait   time.Duration `koanf:"reconnect_wait"`
	ReconnectBuffer int           `koanf:"reconnect_buffer"`
}

// ImportConfig holds knobs shared by all import runs.
type ImportConfig struct {
	// FailureRatio aborts a run when more than this share of processed
	// records fail reconciliation. 0 disables the check.
	FailureRatio float64 `koanf:"failure_ratio" validate:"min=0,max=1"`

	// MatchMaxDistance is the maximum Levenshtein distance accepted by the
	// fallback identity matcher for providers without stable origin ids.
	MatchMaxDistance int `koanf:"match_max_distance" validate:"min=0"`

	// PlaceholderLocation is the external id of the "unknown location"
	// place that drafts fall back to when a venue reference does not
	// resolve.
	PlaceholderLocation string `koanf:"placeholder_location"`

	// SweepGuardMinCount / SweepGuardRatio define the mass-delete guard:
	// a sweep soft-deleting more than MinCount records and more than
	// Ratio of the provider's live records aborts unless forced.
	SweepGuardMinCount int     `koanf:"sweep_guard_min_count" validate:"min=0"`
	SweepGuardRatio    float64 `koanf:"sweep_guard_ratio" validate:"min=0,max=1"`

	// HTTPTimeout applies to each provider fetch request.
	HTTPTimeout time.Duration `koanf:"http_timeout" validate:"min=0"`

	// RateLimit / RateBurst throttle outbound provider requests.
	RateLimit float64 `koanf:"rate_limit" validate:"min=0"`
	RateBurst int     `koanf:"rate_burst" validate:"min=0"`
}

// ProviderConfig configures one external data provider.
type ProviderConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url"`
	APIKey  string `koanf:"api_key"`

	// Publisher is the organization recorded on imported records.
	Publisher string `koanf:"publisher"`

	// Schedule is a cron expression used by the daemon scheduler. Empty
	// means the provider only runs via the one-shot CLI.
	Schedule string `koanf:"schedule"`

	// AuthoritativeFields lists fields this provider force-overwrites even
	// when a user edited them (the provider reclaims the field).
	AuthoritativeFields []string `koanf:"authoritative_fields"`
}

// ServerConfig configures the daemon HTTP server.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout time.Duration `koanf:"timeout" validate:"min=0"`
}

// APIConfig configures the read API surface.
type APIConfig struct {
	DefaultPageSize int           `koanf:"default_page_size" validate:"min=1"`
	MaxPageSize     int           `koanf:"max_page_size" validate:"min=1"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"min=0"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window" validate:"min=0"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error fatal disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all defaults applied. These are loaded
// first and then overridden by the config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:                   "/data/louhi.duckdb",
			MaxMemory:              "1GB",
			Threads:                0,
			PreserveInsertionOrder: true,
		},
		Ledger: LedgerConfig{
			Path:    "/data/ledger",
			LockTTL: 4 * time.Hour,
		},
		NATS: NATSConfig{
			Enabled:         false,
			URL:             "nats://127.0.0.1:4222",
			EmbeddedServer:  false,
			StoreDir:        "/data/nats/jetstream",
			StreamName:      "LOUHI_RECORDS",
			TouchedTopic:    "records.touched",
			DeletedTopic:    "records.deleted",
			MaxReconnects:   10,
			ReconnectWait:   2 * time.Second,
			ReconnectBuffer: 8 * 1024 * 1024,
		},
		Import: ImportConfig{
			FailureRatio:        0.5,
			MatchMaxDistance:    3,
			PlaceholderLocation: "unitreg:unknown",
			SweepGuardMinCount:  5,
			SweepGuardRatio:     0.2,
			HTTPTimeout:         30 * time.Second,
			RateLimit:           5,
			RateBurst:           10,
		},
		Providers: map[string]ProviderConfig{
			"unitreg": {
				Enabled:   true,
				URL:       "https://api.louhi.fi/unitregistry/v4",
				Publisher: "city:registry-office",
				Schedule:  "@daily",
			},
			"onto": {
				Enabled:   true,
				URL:       "https://vocab.louhi.fi/onto/rest/v1",
				Publisher: "city:vocabulary",
				Schedule:  "@weekly",
			},
			"libcal": {
				Enabled:   true,
				URL:       "https://calendar.libraries.fi/api/v1",
				Publisher: "city:libraries",
				Schedule:  "@hourly",
			},
			"tiketti": {
				Enabled:   false,
				URL:       "https://api.tiketti.example.com/v2",
				Publisher: "tiketti:oy",
				Schedule:  "0 */2 * * *",
			},
		},
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8040,
			Timeout: 30 * time.Second,
		},
		API: APIConfig{
			DefaultPageSize: 20,
			MaxPageSize:     100,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}
