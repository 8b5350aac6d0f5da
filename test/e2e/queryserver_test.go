//go:build e2e

// Package e2e runs queries against a queryserver started separately, for
// example with
//
//	queryserver ./data 1500
//
// and then
//
//	E2E_QUERY_ADDR=127.0.0.1:1500 go test -v -tags=e2e ./test/e2e/...
package e2e

import (
	"context"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/PippiShao/IMDB/internal/client"
	"github.com/PippiShao/IMDB/internal/protocol"
)

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newClient(t *testing.T) *client.Client {
	t.Helper()
	framing := protocol.ParseFraming(envOrDefault("E2E_FRAMING", "raw"))
	return client.New(envOrDefault("E2E_QUERY_ADDR", "127.0.0.1:1500"), protocol.Options{Framing: framing}, 10*time.Second)
}

// TestAdminEndpoints verifies the health and metrics routes when the
// metrics server is enabled.
func TestAdminEndpoints(t *testing.T) {
	base := envOrDefault("E2E_ADMIN_URL", "http://127.0.0.1:9090")
	hc := &http.Client{Timeout: 5 * time.Second}
	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		t.Run(path, func(t *testing.T) {
			resp, err := hc.Get(base + path)
			if err != nil {
				t.Skipf("admin server unavailable: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Errorf("expected 200, got %d", resp.StatusCode)
			}
		})
	}
}

// TestQueryIsRepeatable checks that identical queries return identical
// records and that every record contains every query term.
func TestQueryIsRepeatable(t *testing.T) {
	c := newClient(t)
	query := envOrDefault("E2E_QUERY", "the")

	first, err := c.Query(context.Background(), query)
	if err != nil {
		t.Skipf("query server unavailable: %v", err)
	}
	second, err := c.Query(context.Background(), query)
	if err != nil {
		t.Fatalf("second query: %v", err)
	}
	if strings.Join(first, "\n") != strings.Join(second, "\n") {
		t.Fatalf("results differ between runs: %d vs %d records", len(first), len(second))
	}
	for _, rec := range first {
		for _, term := range strings.Fields(strings.ToLower(query)) {
			if !strings.Contains(strings.ToLower(rec), term) {
				t.Errorf("record %q does not contain %q", rec, term)
			}
		}
	}
	t.Logf("query %q returned %d records", query, len(first))
}

func TestConcurrentQueries(t *testing.T) {
	c := newClient(t)
	if _, err := c.Query(context.Background(), "matrix"); err != nil {
		t.Skipf("query server unavailable: %v", err)
	}

	var g errgroup.Group
	for i := 0; i < 50; i++ {
		g.Go(func() error {
			_, err := c.Query(context.Background(), "the")
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent query failed: %v", err)
	}
}
