// Package server accepts query connections and runs one worker goroutine per
// connection against the shared read-only index.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/PippiShao/IMDB/internal/analytics"
	"github.com/PippiShao/IMDB/internal/indexer/registry"
	"github.com/PippiShao/IMDB/internal/protocol"
	"github.com/PippiShao/IMDB/internal/searcher/iterator"
	"github.com/PippiShao/IMDB/internal/searcher/parser"
	"github.com/PippiShao/IMDB/pkg/metrics"
)

// Searcher plans and evaluates queries.
type Searcher interface {
	Plan(query string) *parser.QueryPlan
	FindPlan(ctx context.Context, plan *parser.QueryPlan) (*iterator.Iterator, error)
}

// Resolver turns a document id back into its record text.
type Resolver interface {
	Resolve(id registry.DocID) (string, error)
}

type Server struct {
	searcher    Searcher
	resolver    Resolver
	protocol    protocol.Options
	maxConns    int
	fingerprint string
	metrics     *metrics.Metrics
	recorder    analytics.Recorder
	logger      *slog.Logger

	workerCtx     context.Context
	cancelWorkers context.CancelFunc
	workers       sync.WaitGroup

	mu        sync.Mutex
	listeners map[net.Listener]struct{}
	shutdown  bool
}

type Option func(*Server)

func WithProtocol(opts protocol.Options) Option {
	return func(s *Server) { s.protocol = opts }
}

// WithMaxConnections bounds concurrent workers. Zero means unbounded.
func WithMaxConnections(n int) Option {
	return func(s *Server) { s.maxConns = n }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithRecorder receives one event per finished connection.
func WithRecorder(r analytics.Recorder) Option {
	return func(s *Server) { s.recorder = r }
}

// WithFingerprint tags query events with the index they were answered from.
func WithFingerprint(fp string) Option {
	return func(s *Server) { s.fingerprint = fp }
}

func New(searcher Searcher, resolver Resolver, opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		searcher:      searcher,
		resolver:      resolver,
		logger:        slog.Default().With("component", "query-server"),
		workerCtx:     ctx,
		cancelWorkers: cancel,
		listeners:     make(map[net.Listener]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListenAndServe binds addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled or Shutdown is
// called, then returns nil. In-flight workers keep running; Shutdown drains
// them. Serve closes ln.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if !s.track(ln) {
		ln.Close()
		return nil
	}
	defer s.untrack(ln)

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	var sem chan struct{}
	if s.maxConns > 0 {
		sem = make(chan struct{}, s.maxConns)
	}
	s.logger.Info("accepting connections",
		"addr", ln.Addr().String(),
		"framing", s.protocol.Framing.String(),
		"max_connections", s.maxConns,
	)

	var backoff time.Duration
	for {
		if sem != nil {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return nil
			case <-s.workerCtx.Done():
				return nil
			}
		}
		nc, err := ln.Accept()
		if err != nil {
			if sem != nil {
				<-sem
			}
			if ctx.Err() != nil || s.isShutdown() || errors.Is(err, net.ErrClosed) {
				s.logger.Info("stopped accepting connections", "addr", ln.Addr().String())
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			backoff = nextBackoff(backoff)
			s.logger.Error("accept failed, retrying", "error", err, "backoff", backoff)
			select {
			case <-time.After(backoff):
				continue
			case <-ctx.Done():
				return nil
			}
		}
		backoff = 0

		if !s.startWorker() {
			nc.Close()
			if sem != nil {
				<-sem
			}
			return nil
		}
		go func() {
			defer s.workers.Done()
			if sem != nil {
				defer func() { <-sem }()
			}
			s.handle(s.workerCtx, nc)
		}()
	}
}

// Shutdown stops every listener and waits for in-flight workers. When ctx
// expires first the remaining workers are cancelled, which unblocks their
// pending I/O, and Shutdown returns ctx's error once they have exited.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.shutdown = true
	for ln := range s.listeners {
		ln.Close()
	}
	s.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		s.workers.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		s.cancelWorkers()
		s.logger.Info("all connections drained")
		return nil
	case <-ctx.Done():
		s.logger.Warn("shutdown timeout reached, cancelling in-flight connections")
		s.cancelWorkers()
		<-drained
		return fmt.Errorf("shutting down query server: %w", ctx.Err())
	}
}

func (s *Server) track(ln net.Listener) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown {
		return false
	}
	s.listeners[ln] = struct{}{}
	return true
}

func (s *Server) untrack(ln net.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners, ln)
}

// startWorker registers a worker unless shutdown has begun.
func (s *Server) startWorker() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown {
		return false
	}
	s.workers.Add(1)
	return true
}

func (s *Server) isShutdown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	if d *= 2; d > time.Second {
		d = time.Second
	}
	return d
}
