package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/PippiShao/IMDB/internal/client"
	"github.com/PippiShao/IMDB/internal/protocol"
	"github.com/PippiShao/IMDB/pkg/config"
)

var defaultQueries = []string{
	"matrix",
	"the matrix",
	"2003",
	"alien",
	"star wars",
	"comedy",
	"drama 1994",
	"heat crime",
	"lord rings",
	"godfather",
	"horror 1979",
	"scifi",
	"toy story",
	"nonexistentterm",
	"return king",
}

type Config struct {
	Addr        string
	Framing     protocol.Framing
	Concurrency int
	Duration    time.Duration
	Timeout     time.Duration
	Queries     []string
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "loadtest: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	defaults := config.Default()
	var (
		addr        string
		framing     string
		concurrency int
		duration    time.Duration
		timeout     time.Duration
		queries     string
	)
	cmd := &cobra.Command{
		Use:           "loadtest",
		Short:         "Drive a queryserver with concurrent protocol clients",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if concurrency <= 0 {
				return fmt.Errorf("concurrency must be positive, got %d", concurrency)
			}
			cfg := Config{
				Addr:        addr,
				Framing:     protocol.ParseFraming(framing),
				Concurrency: concurrency,
				Duration:    duration,
				Timeout:     timeout,
				Queries:     defaultQueries,
			}
			if queries != "" {
				cfg.Queries = strings.Split(queries, ",")
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "=== Query Server Load Test ===")
			fmt.Fprintf(out, "Target:      %s (%s)\n", cfg.Addr, cfg.Framing)
			fmt.Fprintf(out, "Concurrency: %d\n", cfg.Concurrency)
			fmt.Fprintf(out, "Duration:    %s\n", cfg.Duration)
			fmt.Fprintf(out, "Queries:     %d unique\n", len(cfg.Queries))
			fmt.Fprintln(out)

			stats := runLoadTest(cmd.Context(), cfg, out)
			return printReport(out, stats, cfg.Duration)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", defaults.Server.Addr(), "query server address")
	cmd.Flags().StringVar(&framing, "framing", defaults.Protocol.Framing, "wire framing: raw or length-prefixed")
	cmd.Flags().IntVar(&concurrency, "concurrency", 10, "number of concurrent clients")
	cmd.Flags().DurationVar(&duration, "duration", 30*time.Second, "test duration")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "per-query timeout")
	cmd.Flags().StringVar(&queries, "queries", "", "comma separated queries, replacing the built-in set")
	return cmd
}

func runLoadTest(ctx context.Context, cfg Config, progress io.Writer) *Stats {
	stats := NewStats()
	c := client.New(cfg.Addr, protocol.Options{Framing: cfg.Framing}, cfg.Timeout)

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	fmt.Fprint(progress, "Running")
	done := make(chan struct{})
	for w := 0; w < cfg.Concurrency; w++ {
		go func(workerID int) {
			defer func() { done <- struct{}{} }()
			queryIdx := workerID
			for ctx.Err() == nil {
				query := cfg.Queries[queryIdx%len(cfg.Queries)]
				queryIdx++

				start := time.Now()
				records, err := c.Query(ctx, query)
				if ctx.Err() != nil {
					return
				}
				stats.RecordQuery(time.Since(start), len(records), err)
			}
		}(w)
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for remaining := cfg.Concurrency; remaining > 0; {
		select {
		case <-done:
			remaining--
		case <-ticker.C:
			fmt.Fprint(progress, ".")
		}
	}
	fmt.Fprintln(progress, " done!")
	fmt.Fprintln(progress)
	return stats
}
