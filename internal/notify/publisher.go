// Louhi - Municipal Open Data Event Hub
// Copyright 2026 Louhi contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/louhi-city/louhi

package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/louhi-city/louhi/internal/config"
	"github.com/louhi-city/louhi/internal/logging"
	"github.com/louhi-city/louhi/internal/metrics"
	"github.com/louhi-city/louhi/internal/models"
)

// TouchedNotice is the payload published for every record an import run
// created or updated.
type TouchedNotice struct {
	Kind       models.ResourceKind `json:"kind"`
	ExternalID string              `json:"external_id"`
	OccurredAt time.Time           `json:"occurred_at"`
}

// SweepNotice is the payload published after a soft-delete sweep.
type SweepNotice struct {
	Kind       models.ResourceKind `json:"kind"`
	DataSource string              `json:"data_source"`
	Deleted    int64               `json:"deleted"`
	OccurredAt time.Time           `json:"occurred_at"`
}

// Publisher publishes record notifications to NATS JetStream. It implements
// importer.Notifier with circuit breaker protection so a down broker fails
// fast instead of stalling every reconciled record on a connect timeout.
type Publisher struct {
	pub     message.Publisher
	breaker *gobreaker.CircuitBreaker[any]

	touchedTopic string
	deletedTopic string

	mu     sync.RWMutex
	closed bool

	now func() time.Time
}

// NewPublisher connects to NATS at url and returns a ready publisher. The
// notification stream must already exist (see EnsureStream); the publisher
// never auto-provisions it.
func NewPublisher(url string, cfg *config.NATSConfig) (*Publisher, error) {
	logger := newWatermillLogger()

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.ReconnectBufSize(cfg.ReconnectBuffer),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logging.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logging.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	wmConfig := wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: false,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}

	pub, err := wmNats.NewPublisher(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create publisher: %w", err)
	}

	const breakerName = "nats-publish"
	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && counts.TotalFailures*10 >= counts.Requests*6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state transition")
			metrics.SetBreakerState(name, breakerStateValue(to))
		},
	})

	return &Publisher{
		pub:          pub,
		breaker:      breaker,
		touchedTopic: cfg.TouchedTopic,
		deletedTopic: cfg.DeletedTopic,
		now:          time.Now,
	}, nil
}

// RecordTouched implements importer.Notifier. The message id is derived
// from the record identity, so a crashed run that re-touches the same
// record inside the deduplication window publishes once.
func (p *Publisher) RecordTouched(ctx context.Context, kind models.ResourceKind, externalID string) error {
	notice := TouchedNotice{
		Kind:       kind,
		ExternalID: externalID,
		OccurredAt: p.now().UTC(),
	}
	msgID := string(kind) + ":" + externalID
	return p.publish(ctx, p.touchedTopic, msgID, notice)
}

// RecordsDeleted implements importer.Notifier.
func (p *Publisher) RecordsDeleted(ctx context.Context, kind models.ResourceKind, dataSource string, count int64) error {
	notice := SweepNotice{
		Kind:       kind,
		DataSource: dataSource,
		Deleted:    count,
		OccurredAt: p.now().UTC(),
	}
	return p.publish(ctx, p.deletedTopic, uuid.NewString(), notice)
}

func (p *Publisher) publish(ctx context.Context, topic, msgID string, payload any) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return fmt.Errorf("publisher is closed")
	}
	p.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode notice: %w", err)
	}

	// With TrackMsgId the marshaler stamps the message UUID as Nats-Msg-Id,
	// so the UUID itself must carry the deduplication id.
	msg := message.NewMessage(msgID, data)

	_, err = p.breaker.Execute(func() (any, error) {
		return nil, p.pub.Publish(topic, msg)
	})
	if err != nil {
		metrics.NotificationErrors.WithLabelValues(topic).Inc()
		return fmt.Errorf("publish %s: %w", topic, err)
	}

	metrics.NotificationsPublished.WithLabelValues(topic).Inc()
	return nil
}

// Close shuts down the publisher. Safe to call more than once.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.pub.Close()
}

func breakerStateValue(s gobreaker.State) int {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}
