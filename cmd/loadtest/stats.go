package main

import (
	"fmt"
	"io"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/PippiShao/IMDB/pkg/errors"
)

type Stats struct {
	totalQueries atomic.Int64
	successCount atomic.Int64
	errorCount   atomic.Int64
	zeroResults  atomic.Int64
	itemsFetched atomic.Int64

	latenciesMu sync.Mutex
	latencies   []time.Duration

	kindsMu sync.Mutex
	kinds   map[string]int64
}

func NewStats() *Stats {
	return &Stats{
		latencies: make([]time.Duration, 0, 100000),
		kinds:     make(map[string]int64),
	}
}

// RecordQuery counts one finished query. Failures are bucketed by error kind
// and left out of the latency distribution.
func (s *Stats) RecordQuery(duration time.Duration, items int, err error) {
	s.totalQueries.Add(1)

	s.kindsMu.Lock()
	s.kinds[apperrors.Kind(err)]++
	s.kindsMu.Unlock()

	if err != nil {
		s.errorCount.Add(1)
		return
	}
	s.successCount.Add(1)
	s.itemsFetched.Add(int64(items))
	if items == 0 {
		s.zeroResults.Add(1)
	}

	s.latenciesMu.Lock()
	s.latencies = append(s.latencies, duration)
	s.latenciesMu.Unlock()
}

func printReport(w io.Writer, stats *Stats, duration time.Duration) error {
	total := stats.totalQueries.Load()
	success := stats.successCount.Load()
	errors := stats.errorCount.Load()

	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Total Queries:   %d\n", total)
	fmt.Fprintf(w, "Successful:      %d\n", success)
	fmt.Fprintf(w, "Zero Results:    %d\n", stats.zeroResults.Load())
	fmt.Fprintf(w, "Errors:          %d\n", errors)
	fmt.Fprintf(w, "Items Fetched:   %d\n", stats.itemsFetched.Load())

	if total > 0 {
		fmt.Fprintf(w, "Error Rate:      %.2f%%\n", float64(errors)/float64(total)*100)
		fmt.Fprintf(w, "Queries/sec:     %.2f\n", float64(total)/duration.Seconds())
	}

	stats.latenciesMu.Lock()
	latencies := make([]time.Duration, len(stats.latencies))
	copy(latencies, stats.latencies)
	stats.latenciesMu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool {
			return latencies[i] < latencies[j]
		})

		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))

		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Latency ===")
		fmt.Fprintf(w, "Min:    %s\n", latencies[0])
		fmt.Fprintf(w, "Avg:    %s\n", avg)
		fmt.Fprintf(w, "P50:    %s\n", percentile(latencies, 50))
		fmt.Fprintf(w, "P90:    %s\n", percentile(latencies, 90))
		fmt.Fprintf(w, "P95:    %s\n", percentile(latencies, 95))
		fmt.Fprintf(w, "P99:    %s\n", percentile(latencies, 99))
		fmt.Fprintf(w, "Max:    %s\n", latencies[len(latencies)-1])
		fmt.Fprintf(w, "StdDev: %s\n", stddev(latencies, avg))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Outcomes ===")
	stats.kindsMu.Lock()
	kinds := make([]string, 0, len(stats.kinds))
	for kind := range stats.kinds {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		fmt.Fprintf(w, "  %s: %d\n", kind, stats.kinds[kind])
	}
	stats.kindsMu.Unlock()

	if total == 0 {
		return fmt.Errorf("no queries completed, is the server running?")
	}
	return nil
}

func stddev(latencies []time.Duration, avg time.Duration) time.Duration {
	var sumSquared float64
	for _, l := range latencies {
		diff := float64(l - avg)
		sumSquared += diff * diff
	}
	return time.Duration(math.Sqrt(sumSquared / float64(len(latencies))))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
