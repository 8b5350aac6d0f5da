package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InstancesDoNotCollide(t *testing.T) {
	a := New()
	b := New()
	a.ConnectionsTotal.Inc()

	assert.Contains(t, scrape(t, a), "query_connections_total 1")
	assert.Contains(t, scrape(t, b), "query_connections_total 0")
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestHandler_ExposesCollectors(t *testing.T) {
	m := New()
	m.QueriesTotal.WithLabelValues("ok").Add(3)
	m.IndexedDocuments.Set(42)

	text := scrape(t, m)
	assert.Contains(t, text, `query_requests_total{outcome="ok"} 3`)
	assert.Contains(t, text, "index_documents 42")
}

func TestObserveCache_ReadsAtScrape(t *testing.T) {
	m := New()
	var hits, misses int64 = 0, 2
	m.ObserveCache(func() (int64, int64) { return hits, misses })
	assert.Contains(t, scrape(t, m), "query_cache_misses_total 2")

	hits = 5
	text := scrape(t, m)
	assert.Contains(t, text, "query_cache_hits_total 5")
	assert.Contains(t, text, "query_cache_misses_total 2")
}
