package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/PippiShao/IMDB/internal/analytics"
	"github.com/PippiShao/IMDB/internal/indexer"
	"github.com/PippiShao/IMDB/internal/protocol"
	"github.com/PippiShao/IMDB/internal/searcher/cache"
	"github.com/PippiShao/IMDB/internal/searcher/executor"
	"github.com/PippiShao/IMDB/internal/searcher/parser"
	"github.com/PippiShao/IMDB/internal/server"
	"github.com/PippiShao/IMDB/pkg/config"
	apperrors "github.com/PippiShao/IMDB/pkg/errors"
	"github.com/PippiShao/IMDB/pkg/health"
	"github.com/PippiShao/IMDB/pkg/kafka"
	"github.com/PippiShao/IMDB/pkg/logger"
	"github.com/PippiShao/IMDB/pkg/metrics"
	"github.com/PippiShao/IMDB/pkg/middleware"
	pkgredis "github.com/PippiShao/IMDB/pkg/redis"
	"github.com/PippiShao/IMDB/pkg/resilience"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "queryserver: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "queryserver [datadir] [port]",
		Short: "Index a directory of movie rows and answer term queries over TCP",
		Long: `queryserver crawls datadir, indexes every row of every file and then
serves queries on port. Each connection gets its own worker; SIGINT or
SIGTERM stops accepting, drains in-flight connections and exits.`,
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath, args)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	return cmd
}

// loadConfig layers positional arguments over the file and environment.
func loadConfig(path string, args []string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if len(args) > 0 {
		cfg.Corpus.Dir = args[0]
	}
	if len(args) > 1 {
		port, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, "args", "port %q is not a number", args[1])
		}
		cfg.Server.Port = port
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config) (err error) {
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format, os.Stdout)
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting query server",
		"corpus", cfg.Corpus.Dir,
		"addr", cfg.Server.Addr(),
		"mode", cfg.Search.Mode,
		"framing", cfg.Protocol.Framing,
	)
	snap, err := indexer.Build(ctx, cfg.Corpus, indexer.PolicyFromConfig(cfg.Tokenizer),
		indexer.WithMaxRowBytes(cfg.Protocol.MaxFrameSize))
	if err != nil {
		return err
	}

	var teardown []func() error
	defer func() {
		var result *multierror.Error
		if err != nil {
			result = multierror.Append(result, err)
		}
		for i := len(teardown) - 1; i >= 0; i-- {
			if cerr := teardown[i](); cerr != nil {
				result = multierror.Append(result, cerr)
			}
		}
		err = result.ErrorOrNil()
		slog.Info("query server stopped")
	}()
	teardown = append(teardown, snap.Close)

	m := metrics.New()
	stats := snap.Stats()
	m.IndexedDocuments.Set(float64(stats.Docs))
	m.IndexedTerms.Set(float64(stats.Terms))

	execOpts := []executor.Option{
		executor.WithMode(parser.ParseMode(cfg.Search.Mode)),
		executor.WithMaxResults(cfg.Search.MaxResults),
	}
	var analyticsOpts []analytics.HandlerOption
	adminRoutes := map[string]http.Handler{}

	checker := health.NewChecker()
	checker.Register("index", health.ReadyCheck(snap.Ready))

	if cfg.Redis.Enabled {
		redisClient, rerr := pkgredis.NewClient(cfg.Redis)
		if rerr != nil {
			slog.Warn("redis unavailable, result caching disabled", "error", rerr)
		} else {
			teardown = append(teardown, redisClient.Close)
			breaker := resilience.NewCircuitBreaker("query-cache", resilience.CircuitBreakerConfig{
				FailureThreshold: cfg.Redis.BreakerThreshold,
				ResetTimeout:     cfg.Redis.BreakerReset,
			})
			qc := cache.New(redisClient, cfg.Redis.CacheTTL, snap.Fingerprint(), cache.WithBreaker(breaker))
			execOpts = append(execOpts, executor.WithCache(qc))
			m.ObserveCache(qc.Stats)
			analyticsOpts = append(analyticsOpts, analytics.WithCacheStats(qc.Stats))
			adminRoutes["/cache/invalidate"] = cache.NewInvalidateHandler(qc)
			checker.Register("redis", health.PingCheck(redisClient.Ping))
			slog.Info("result cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	aggregator := analytics.NewAggregator(analytics.WithQueryLimit(cfg.Metrics.TrackedQueries))
	recorders := []analytics.Recorder{aggregator}
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka)
		collector := analytics.NewCollector(producer, cfg.Kafka.BufferSize,
			analytics.WithDropHook(m.AnalyticsDroppedTotal.Inc))
		collector.Start(context.Background())
		teardown = append(teardown, producer.Close, func() error {
			collector.Close()
			return nil
		})
		recorders = append(recorders, collector)
	}

	if cfg.Metrics.Enabled {
		routes := checker.Routes()
		routes["/analytics"] = analytics.NewHandler(aggregator, analyticsOpts...)
		for pattern, h := range adminRoutes {
			routes[pattern] = h
		}
		instrument := middleware.Metrics(m)
		for pattern, h := range routes {
			routes[pattern] = instrument(h)
		}
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, m, routes)
		teardown = append(teardown, func() error {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := shutdownMetrics(shutdownCtx); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("stopping metrics server: %w", err)
			}
			return nil
		})
	}

	exec := executor.New(snap.Index(), snap.Policy(), execOpts...)
	srv := server.New(exec, snap.Registry(),
		server.WithProtocol(protocol.OptionsFromConfig(cfg.Protocol, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)),
		server.WithMaxConnections(cfg.Server.MaxConnections),
		server.WithMetrics(m),
		server.WithRecorder(analytics.Tee(recorders...)),
		server.WithFingerprint(snap.Fingerprint()),
	)

	ln, err := net.Listen("tcp", cfg.Server.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.Server.Addr(), err)
	}
	slog.Info("query server listening", "addr", ln.Addr().String())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(gctx, ln)
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received", "timeout", cfg.Server.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
