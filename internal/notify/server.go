// Louhi - Municipal Open Data Event Hub
// Copyright 2026 Louhi contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/louhi-city/louhi

package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

const serverReadyTimeout = 30 * time.Second

// EmbeddedServer runs an in-process NATS JetStream server for
// single-instance deployments that should not depend on an external broker.
type EmbeddedServer struct {
	srv       *server.Server
	clientURL string
}

// NewEmbeddedServer starts an embedded NATS server with JetStream enabled,
// persisting stream data under storeDir. Port 0 binds an ephemeral port;
// the actual client URL is available from ClientURL.
func NewEmbeddedServer(storeDir string, port int) (*EmbeddedServer, error) {
	opts := &server.Options{
		ServerName: "louhi-records",
		Host:       "127.0.0.1",
		Port:       port,
		JetStream:  true,
		StoreDir:   storeDir,
		NoLog:      true,
		NoSigs:     true,
	}

	srv, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create nats server: %w", err)
	}

	go srv.Start()
	if !srv.ReadyForConnections(serverReadyTimeout) {
		srv.Shutdown()
		return nil, fmt.Errorf("nats server not ready within %s", serverReadyTimeout)
	}

	return &EmbeddedServer{srv: srv, clientURL: srv.ClientURL()}, nil
}

// ClientURL returns the connection URL for clients.
func (s *EmbeddedServer) ClientURL() string {
	return s.clientURL
}

// Running reports whether the server accepts connections.
func (s *EmbeddedServer) Running() bool {
	return s.srv.Running()
}

// Shutdown stops the server and waits for it to terminate or for the
// context to be cancelled.
func (s *EmbeddedServer) Shutdown(ctx context.Context) error {
	s.srv.Shutdown()

	done := make(chan struct{})
	go func() {
		s.srv.WaitForShutdown()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
