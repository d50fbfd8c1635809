// Louhi - Municipal Open Data Event Hub
// Copyright 2026 Louhi contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/louhi-city/louhi

package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/louhi-city/louhi/internal/config"
	"github.com/louhi-city/louhi/internal/logging"
	"github.com/louhi-city/louhi/internal/metrics"
)

// maxErrorBodySize limits how much of an error response body is read for
// diagnostics.
const maxErrorBodySize = 64 * 1024

// Client is the shared outbound HTTP client for provider APIs. Every
// provider fetch goes through the same resilience stack: a token-bucket rate
// limiter ahead of a circuit breaker ahead of the HTTP call.
type Client struct {
	name    string
	baseURL string
	apiKey  string

	http    *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[[]byte]
}

// NewClient builds a resilient client for one provider.
func NewClient(name string, pcfg config.ProviderConfig, icfg config.ImportConfig) *Client {
	cbName := "provider-" + name
	metrics.SetBreakerState(cbName, 0)

	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},
		OnStateChange: func(cbName string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", cbName).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state transition")
			metrics.SetBreakerState(cbName, breakerStateValue(to))
		},
	})

	limit := rate.Limit(icfg.RateLimit)
	if icfg.RateLimit <= 0 {
		limit = rate.Inf
	}
	burst := icfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		name:    name,
		baseURL: pcfg.URL,
		apiKey:  pcfg.APIKey,
		http:    &http.Client{Timeout: icfg.HTTPTimeout},
		limiter: rate.NewLimiter(limit, burst),
		cb:      cb,
	}
}

// GetJSON fetches baseURL+path with the query parameters and decodes the
// JSON response into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	body, err := c.get(ctx, path, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode %s: %w", c.name, path, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s: rate limiter: %w", c.name, err)
	}

	return c.cb.Execute(func() ([]byte, error) {
		reqURL := c.baseURL + path
		if len(query) > 0 {
			reqURL += "?" + query.Encode()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("%s: build request: %w", c.name, err)
		}
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		start := time.Now()
		resp, err := c.http.Do(req)
		if err != nil {
			metrics.RecordProviderRequest(c.name, 0, time.Since(start))
			return nil, fmt.Errorf("%s: GET %s: %w", c.name, path, err)
		}
		defer func() { _ = resp.Body.Close() }()
		metrics.RecordProviderRequest(c.name, resp.StatusCode, time.Since(start))

		if resp.StatusCode != http.StatusOK {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
			return nil, fmt.Errorf("%s: GET %s: status %d: %s", c.name, path, resp.StatusCode, snippet)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%s: read response: %w", c.name, err)
		}
		return body, nil
	})
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
