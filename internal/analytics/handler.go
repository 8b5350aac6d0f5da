package analytics

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// CacheStatsFunc reports result cache lookups since startup.
type CacheStatsFunc func() (hits, misses int64)

type CacheStats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// Report is the /analytics response body. Cache is absent when the server
// runs without a result cache.
type Report struct {
	AggregatedStats
	Cache *CacheStats `json:"cache,omitempty"`
}

// Handler serves the aggregator's statistics, and the result cache's when
// one is attached, as JSON.
type Handler struct {
	aggregator *Aggregator
	cacheStats CacheStatsFunc
	logger     *slog.Logger
}

type HandlerOption func(*Handler)

func WithCacheStats(fn CacheStatsFunc) HandlerOption {
	return func(h *Handler) { h.cacheStats = fn }
}

func NewHandler(aggregator *Aggregator, opts ...HandlerOption) *Handler {
	h := &Handler{
		aggregator: aggregator,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Report() Report {
	report := Report{AggregatedStats: h.aggregator.Stats()}
	if h.cacheStats != nil {
		hits, misses := h.cacheStats()
		cs := &CacheStats{Hits: hits, Misses: misses}
		if lookups := hits + misses; lookups > 0 {
			cs.HitRate = float64(hits) / float64(lookups)
		}
		report.Cache = cs
	}
	return report
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(h.Report()); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}
