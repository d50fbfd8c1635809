// Louhi - Municipal Open Data Event Hub
// Copyright 2026 Louhi contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/louhi-city/louhi

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default configuration should validate: %v", err)
	}
	if cfg.Import.SweepGuardRatio != 0.2 {
		t.Errorf("sweep guard ratio default = %v, want 0.2", cfg.Import.SweepGuardRatio)
	}
	if _, ok := cfg.Providers["unitreg"]; !ok {
		t.Error("unitreg provider missing from defaults")
	}
}

func TestEnvTransform(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"LOUHI_DATABASE_PATH", "database.path"},
		{"LOUHI_IMPORT_FAILURE_RATIO", "import.failure_ratio"},
		{"LOUHI_LOGGING_LEVEL", "logging.level"},
		{"LOUHI_PROVIDERS_UNITREG_URL", "providers.unitreg.url"},
		{"LOUHI_PROVIDERS_TIKETTI_API_KEY", "providers.tiketti.api_key"},
		{"LOUHI_SERVER_PORT", "server.port"},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			if got := envTransform(tt.env); got != tt.want {
				t.Errorf("envTransform(%q) = %q, want %q", tt.env, got, tt.want)
			}
		})
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
database:
  path: /tmp/test.duckdb
import:
  failure_ratio: 0.25
providers:
  tiketti:
    enabled: true
    url: https://api.tiketti.example.com/v2
    api_key: secret
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Database.Path != "/tmp/test.duckdb" {
		t.Errorf("database.path = %q", cfg.Database.Path)
	}
	if cfg.Import.FailureRatio != 0.25 {
		t.Errorf("import.failure_ratio = %v", cfg.Import.FailureRatio)
	}
	if !cfg.Providers["tiketti"].Enabled {
		t.Error("tiketti should be enabled")
	}
	// Untouched defaults survive the merge.
	if cfg.Server.Timeout != 30*time.Second {
		t.Errorf("server.timeout = %v", cfg.Server.Timeout)
	}
}

func TestValidateRejectsBadProviderURL(t *testing.T) {
	cfg := defaultConfig()
	p := cfg.Providers["unitreg"]
	p.URL = "not a url"
	cfg.Providers["unitreg"] = p

	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for malformed provider url")
	}
}

func TestValidateRejectsFTPScheme(t *testing.T) {
	cfg := defaultConfig()
	p := cfg.Providers["unitreg"]
	p.URL = "ftp://example.com/feed"
	cfg.Providers["unitreg"] = p

	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for ftp scheme")
	}
}

func TestValidateRejectsBadPlaceholder(t *testing.T) {
	cfg := defaultConfig()
	cfg.Import.PlaceholderLocation = "no-separator"

	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for placeholder without data source")
	}
}

func TestValidateRejectsPageSizeInversion(t *testing.T) {
	cfg := defaultConfig()
	cfg.API.DefaultPageSize = 500
	cfg.API.MaxPageSize = 100

	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for default page size above max")
	}
}

func TestValidateNATSRequiresTopics(t *testing.T) {
	cfg := defaultConfig()
	cfg.NATS.Enabled = true
	cfg.NATS.TouchedTopic = ""

	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for missing touched topic")
	}
}
