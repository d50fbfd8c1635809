// Louhi - Municipal Open Data Event Hub
// Copyright 2026 Louhi contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/louhi-city/louhi

package notify

import (
	"context"
	"errors"
	"fmt"

	natsgo "github.com/nats-io/nats.go"

	"github.com/louhi-city/louhi/internal/config"
	"github.com/louhi-city/louhi/internal/importer"
	"github.com/louhi-city/louhi/internal/logging"
)

var _ importer.Notifier = (*Publisher)(nil)

// Service bundles the notification publisher with its optional embedded
// NATS server so callers have a single lifecycle to manage.
type Service struct {
	pub    *Publisher
	server *EmbeddedServer
}

// Open builds the notification service from configuration.
//
// With nats.enabled false it returns a service whose Notifier discards
// everything and whose Close is a no-op. Otherwise it optionally starts an
// embedded JetStream server, provisions the notification stream, and
// connects the publisher.
func Open(ctx context.Context, cfg *config.NATSConfig) (*Service, error) {
	if !cfg.Enabled {
		return &Service{}, nil
	}

	svc := &Service{}

	url := cfg.URL
	if cfg.EmbeddedServer {
		server, err := NewEmbeddedServer(cfg.StoreDir, 0)
		if err != nil {
			return nil, fmt.Errorf("start embedded nats: %w", err)
		}
		svc.server = server
		url = server.ClientURL()
		logging.Info().Str("url", url).Msg("Embedded NATS server started")
	}

	if err := provisionStream(ctx, url, cfg); err != nil {
		_ = svc.Close(ctx)
		return nil, err
	}

	pub, err := NewPublisher(url, cfg)
	if err != nil {
		_ = svc.Close(ctx)
		return nil, err
	}
	svc.pub = pub

	logging.Info().
		Str("stream", cfg.StreamName).
		Str("touched_topic", cfg.TouchedTopic).
		Str("deleted_topic", cfg.DeletedTopic).
		Msg("Record notifications enabled")
	return svc, nil
}

// provisionStream dials a short-lived connection to create or update the
// notification stream before the publisher starts.
func provisionStream(ctx context.Context, url string, cfg *config.NATSConfig) error {
	nc, err := natsgo.Connect(url,
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
	)
	if err != nil {
		return fmt.Errorf("connect nats: %w", err)
	}
	defer nc.Close()

	subjects := []string{cfg.TouchedTopic, cfg.DeletedTopic}
	if err := EnsureStream(ctx, nc, cfg.StreamName, subjects); err != nil {
		return err
	}
	return nil
}

// Notifier returns the active notifier, or a no-op one when notifications
// are disabled.
func (s *Service) Notifier() importer.Notifier {
	if s.pub == nil {
		return importer.NoopNotifier{}
	}
	return s.pub
}

// Close shuts down the publisher and, when embedded, the NATS server.
func (s *Service) Close(ctx context.Context) error {
	var errs []error
	if s.pub != nil {
		if err := s.pub.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
