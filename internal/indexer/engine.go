package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/PippiShao/IMDB/internal/indexer/crawler"
	"github.com/PippiShao/IMDB/internal/indexer/index"
	"github.com/PippiShao/IMDB/internal/indexer/registry"
	"github.com/PippiShao/IMDB/internal/indexer/tokenizer"
	"github.com/PippiShao/IMDB/pkg/config"
)

// Snapshot is the immutable state built at startup: the inverted index, the
// document registry and the policy both were built with. Connection workers
// take their own references to Index and Registry, so Close only drops the
// snapshot's hold on them.
type Snapshot struct {
	mu          sync.Mutex
	index       *index.Index
	registry    *registry.Registry
	policy      tokenizer.Policy
	fingerprint string
	stats       BuildStats
	logger      *slog.Logger
}

// BuildStats reports what a build saw. OversizedRows counts rows longer
// than the configured record limit; they are indexed, but a query matching
// one fails when the record is written.
type BuildStats struct {
	Files         int
	Docs          int
	Terms         int
	OversizedRows int
	Duration      time.Duration
}

// oversizedRowWarnings caps the per-row warnings logged by one build.
const oversizedRowWarnings = 10

type buildOptions struct {
	maxRowBytes int
}

type BuildOption func(*buildOptions)

// WithMaxRowBytes flags rows longer than n bytes, normally the protocol's
// maximum frame size. Zero disables the check.
func WithMaxRowBytes(n int) BuildOption {
	return func(o *buildOptions) { o.maxRowBytes = n }
}

// PolicyFromConfig turns tokenizer settings into a Policy.
func PolicyFromConfig(cfg config.TokenizerConfig) tokenizer.Policy {
	p := tokenizer.Policy{
		Split:     tokenizer.SplitAlnum,
		StopWords: cfg.StopWords,
		Stem:      cfg.Stem,
		MinLength: cfg.MinLength,
	}
	if cfg.Split == config.SplitWhitespace {
		p.Split = tokenizer.SplitWhitespace
	}
	if p.MinLength < 1 {
		p.MinLength = 1
	}
	return p
}

// Build crawls cfg.Dir, registers every row and indexes its terms. It runs
// single-threaded; ids follow crawl order.
func Build(ctx context.Context, cfg config.CorpusConfig, policy tokenizer.Policy, opts ...BuildOption) (*Snapshot, error) {
	var bo buildOptions
	for _, opt := range opts {
		opt(&bo)
	}
	logger := slog.Default().With("component", "indexer")
	oversized := 0
	start := time.Now()
	reg := registry.New()
	builder := index.NewBuilder()
	hash := sha256.New()

	logger.Info("crawling directory tree", "dir", cfg.Dir)
	crawlStats, err := crawler.New(cfg.Extensions).Crawl(ctx, cfg.Dir, func(row crawler.Row) error {
		id := reg.RegisterAt(row.Path, row.Row, row.Offset)
		if bo.maxRowBytes > 0 && len(row.Text) > bo.maxRowBytes {
			oversized++
			if oversized <= oversizedRowWarnings {
				logger.Warn("row exceeds record limit",
					"path", row.Path,
					"row", row.Row,
					"bytes", len(row.Text),
					"limit", bo.maxRowBytes,
				)
			}
		}
		builder.Add(id, policy.Distinct(row.Text))
		fmt.Fprintf(hash, "%s\x00%d\x00%s\n", row.Path, row.Row, row.Text)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("building index: %w", err)
	}
	fmt.Fprintf(hash, "%+v", policy)
	ix := builder.Build()

	s := &Snapshot{
		index:       ix,
		registry:    reg,
		policy:      policy,
		fingerprint: hex.EncodeToString(hash.Sum(nil))[:16],
		stats: BuildStats{
			Files:         crawlStats.Files,
			Docs:          reg.Count(),
			Terms:         ix.TermCount(),
			OversizedRows: oversized,
			Duration:      time.Since(start),
		},
		logger: logger,
	}
	if oversized > 0 {
		logger.Warn("corpus has rows that cannot be sent",
			"rows", oversized,
			"limit", bo.maxRowBytes,
		)
	}
	logger.Info("index built",
		"files", s.stats.Files,
		"docs", s.stats.Docs,
		"terms", s.stats.Terms,
		"fingerprint", s.fingerprint,
		"duration", s.stats.Duration.Round(time.Millisecond),
	)
	return s, nil
}

// Index returns the inverted index, or nil after Close.
func (s *Snapshot) Index() *index.Index {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// Registry returns the document registry, or nil after Close.
func (s *Snapshot) Registry() *registry.Registry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry
}

func (s *Snapshot) Policy() tokenizer.Policy {
	return s.policy
}

// Fingerprint identifies the corpus contents and policy; two snapshots with
// the same fingerprint answer every query identically.
func (s *Snapshot) Fingerprint() string {
	return s.fingerprint
}

func (s *Snapshot) Stats() BuildStats {
	return s.stats
}

// Ready reports whether the snapshot still holds its index.
func (s *Snapshot) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index != nil && s.registry != nil
}

// Close releases the snapshot's references to the index and registry.
func (s *Snapshot) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil {
		return nil
	}
	s.index = nil
	s.registry = nil
	s.logger.Info("index released", "docs", s.stats.Docs, "terms", s.stats.Terms)
	return nil
}
