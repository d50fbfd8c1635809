// Louhi - Municipal Open Data Event Hub
// Copyright 2026 Louhi contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/louhi-city/louhi

package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	// streamMaxAge bounds how long unconsumed notifications are retained.
	// An indexer offline for longer than this must do a full resync anyway.
	streamMaxAge = 7 * 24 * time.Hour

	// dedupWindow is the JetStream duplicate-detection window. Re-publishes
	// of the same message id inside this window are dropped by the server.
	dedupWindow = 2 * time.Minute
)

// EnsureStream creates or updates the notification stream. Idempotent: a
// stream that already exists is updated to the current configuration so
// retention changes apply on restart.
func EnsureStream(ctx context.Context, nc *natsgo.Conn, name string, subjects []string) error {
	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("jetstream context: %w", err)
	}

	cfg := jetstream.StreamConfig{
		Name:       name,
		Subjects:   subjects,
		Retention:  jetstream.LimitsPolicy,
		MaxAge:     streamMaxAge,
		Duplicates: dedupWindow,
		Storage:    jetstream.FileStorage,
		Discard:    jetstream.DiscardOld,
	}

	if _, err := js.Stream(ctx, name); err == nil {
		if _, err := js.UpdateStream(ctx, cfg); err != nil {
			return fmt.Errorf("update stream %s: %w", name, err)
		}
		return nil
	} else if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("check stream %s: %w", name, err)
	}

	if _, err := js.CreateStream(ctx, cfg); err != nil {
		return fmt.Errorf("create stream %s: %w", name, err)
	}
	return nil
}
