// Package util provides fixtures and helpers shared across package tests.
//
// Site returns a small but complete route network: a four-node corridor
// loop, a dock/wait/undock station, a wait-only charger, two parking spots,
// a queue spot and a third-party station offering a tempting shortcut that
// station blocking must refuse.
package util

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// MetricTimeout bounds the wait for a test HTTP server to answer.
const MetricTimeout = 5 * time.Second

const pollInterval = 50 * time.Millisecond

// WaitForBody polls url until a 200 response contains substr or ctx ends.
func WaitForBody(ctx context.Context, url, substr string) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	last := "no response"
	for {
		body, status, err := get(ctx, url)
		switch {
		case err != nil:
			last = err.Error()
		case status != http.StatusOK:
			last = fmt.Sprintf("status %d", status)
		case strings.Contains(body, substr):
			return nil
		default:
			last = "substring missing"
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %q not found (%s): %w", url, substr, last, ctx.Err())
		case <-ticker.C:
		}
	}
}

// WaitForMetric waits for a Prometheus exposition line on metricsURL.
func WaitForMetric(ctx context.Context, metricsURL, line string) error {
	return WaitForBody(ctx, metricsURL, line)
}

func get(ctx context.Context, url string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(resp.Body)
	return string(b), resp.StatusCode, err
}
