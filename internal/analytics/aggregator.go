package analytics

import (
	"sort"
	"sync"
	"time"
)

const (
	latencyWindow = 10000

	// DefaultTrackedQueries bounds the distinct queries counted per table.
	DefaultTrackedQueries = 10000
)

type AggregatedStats struct {
	TotalQueries      int64            `json:"total_queries"`
	ZeroResultCount   int64            `json:"zero_result_count"`
	FailedCount       int64            `json:"failed_count"`
	ItemsSent         int64            `json:"items_sent"`
	AvgLatencyMs      float64          `json:"avg_latency_ms"`
	P50LatencyMs      int64            `json:"p50_latency_ms"`
	P95LatencyMs      int64            `json:"p95_latency_ms"`
	P99LatencyMs      int64            `json:"p99_latency_ms"`
	TopQueries        []QueryCount     `json:"top_queries"`
	ZeroResultQueries []QueryCount     `json:"zero_result_queries"`
	QueriesPerMinute  float64          `json:"queries_per_minute"`
	FailuresByOutcome map[string]int64 `json:"failures_by_outcome"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator keeps in-process query statistics. Latency percentiles cover the
// most recent events only. Per-query tables hold at most queryLimit entries;
// past that the least frequent are forgotten.
type Aggregator struct {
	mu                sync.Mutex
	queryLimit        int
	total             int64
	zeroResults       int64
	failed            int64
	itemsSent         int64
	latencies         []int64
	next              int
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	failures          map[string]int64
	startTime         time.Time
}

type AggregatorOption func(*Aggregator)

// WithQueryLimit caps the distinct queries tracked in the top and
// zero-result tables. Values below 1 keep the default.
func WithQueryLimit(n int) AggregatorOption {
	return func(a *Aggregator) {
		if n > 0 {
			a.queryLimit = n
		}
	}
}

func NewAggregator(opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		queryLimit:        DefaultTrackedQueries,
		latencies:         make([]int64, 0, 256),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		failures:          make(map[string]int64),
		startTime:         time.Now(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Aggregator) Record(event QueryEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.total++
	a.itemsSent += int64(event.ItemsSent)
	switch event.Outcome {
	case OutcomeOK:
	case OutcomeZeroResult:
		a.zeroResults++
		a.zeroResultQueries[event.Query]++
		a.zeroResultQueries = a.bound(a.zeroResultQueries)
	default:
		a.failed++
		a.failures[string(event.Outcome)]++
	}
	if event.Query != "" {
		a.queryCounts[event.Query]++
		a.queryCounts = a.bound(a.queryCounts)
	}
	if len(a.latencies) < latencyWindow {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.next] = event.LatencyMs
		a.next = (a.next + 1) % latencyWindow
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := AggregatedStats{
		TotalQueries:      a.total,
		ZeroResultCount:   a.zeroResults,
		FailedCount:       a.failed,
		ItemsSent:         a.itemsSent,
		FailuresByOutcome: make(map[string]int64, len(a.failures)),
	}
	for k, v := range a.failures {
		stats.FailuresByOutcome[k] = v
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, 10)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, 10)
	if elapsed := time.Since(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalQueries) / elapsed
	}
	return stats
}

// bound returns counts unchanged while it fits the limit. Once it overflows
// it keeps the most frequent three quarters of the limit, so pruning runs
// once per limit/4 new queries rather than on every insert.
func (a *Aggregator) bound(counts map[string]int64) map[string]int64 {
	if len(counts) <= a.queryLimit {
		return counts
	}
	keep := a.queryLimit * 3 / 4
	if keep < 1 {
		keep = 1
	}
	kept := make(map[string]int64, a.queryLimit)
	for _, qc := range topN(counts, keep) {
		kept[qc.Query] = qc.Count
	}
	return kept
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN returns the n most frequent queries; ties break alphabetically.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
