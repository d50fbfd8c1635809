// Louhi - Municipal Open Data Event Hub
// Copyright 2026 Louhi contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/louhi-city/louhi

package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is shared; validator instances cache struct metadata.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration. Struct tags cover scalar ranges; the
// explicit checks below cover rules the tag language cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if ok := isValidationErrors(err, &verrs); ok && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("field %s failed rule %q", first.Namespace(), first.Tag())
		}
		return err
	}

	for name, p := range c.Providers {
		if !p.Enabled {
			continue
		}
		if p.URL == "" {
			return fmt.Errorf("provider %s: url is required when enabled", name)
		}
		u, err := url.Parse(p.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("provider %s: invalid url %q", name, p.URL)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("provider %s: unsupported url scheme %q", name, u.Scheme)
		}
	}

	if c.API.DefaultPageSize > c.API.MaxPageSize {
		return fmt.Errorf("api: default_page_size %d exceeds max_page_size %d",
			c.API.DefaultPageSize, c.API.MaxPageSize)
	}

	if c.NATS.Enabled {
		if c.NATS.URL == "" && !c.NATS.EmbeddedServer {
			return fmt.Errorf("nats: url is required unless embedded_server is set")
		}
		if c.NATS.TouchedTopic == "" || c.NATS.DeletedTopic == "" {
			return fmt.Errorf("nats: touched_topic and deleted_topic are required")
		}
	}

	if c.Import.PlaceholderLocation != "" && !strings.Contains(c.Import.PlaceholderLocation, ":") {
		return fmt.Errorf("import: placeholder_location %q is not a data_source:origin_id pair",
			c.Import.PlaceholderLocation)
	}

	return nil
}

// Provider returns the configuration for the named provider.
func (c *Config) Provider(name string) (ProviderConfig, bool) {
	p, ok := c.Providers[name]
	return p, ok
}

// isValidationErrors unwraps err into validator.ValidationErrors.
func isValidationErrors(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors) //nolint:errorlint // validator returns the concrete type
	if ok {
		*target = verrs
	}
	return ok
}
