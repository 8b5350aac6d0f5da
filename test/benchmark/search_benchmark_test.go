package benchmark

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PippiShao/IMDB/internal/indexer"
	"github.com/PippiShao/IMDB/internal/indexer/tokenizer"
	"github.com/PippiShao/IMDB/internal/searcher/executor"
	"github.com/PippiShao/IMDB/internal/searcher/parser"
	"github.com/PippiShao/IMDB/pkg/config"
)

// BenchmarkQueryParse measures query normalisation latency for queries of
// varying length.
func BenchmarkQueryParse(b *testing.B) {
	queries := []struct {
		name  string
		query string
	}{
		{"single", "matrix"},
		{"pair", "matrix 1999"},
		{"punctuated", "Star-Wars: Episode IV (1977)"},
		{"duplicates", "matrix matrix MATRIX reloaded"},
		{"long", "the lord of the rings the return of the king extended edition 2003 fantasy"},
	}
	policy := tokenizer.DefaultPolicy()
	for _, q := range queries {
		b.Run(q.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = parser.Parse(q.query, policy, parser.ModeAND)
			}
		})
	}
}

func BenchmarkExecutorEvaluate(b *testing.B) {
	ix := buildIndex(50000)
	policy := tokenizer.DefaultPolicy()
	ctx := context.Background()

	for _, mode := range []string{config.ModeAND, config.ModeOR} {
		exec := executor.New(ix, policy, executor.WithMode(parser.ParseMode(mode)))
		for _, query := range []string{"scifi", "movie scifi 1999", "part 3 western"} {
			b.Run(fmt.Sprintf("%s/%s", mode, strings.ReplaceAll(query, " ", "_")), func(b *testing.B) {
				b.ReportAllocs()
				for i := 0; i < b.N; i++ {
					if _, err := exec.Evaluate(ctx, query); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}

// BenchmarkExecutorParallel measures concurrent evaluation against one
// shared index.
func BenchmarkExecutorParallel(b *testing.B) {
	exec := executor.New(buildIndex(50000), tokenizer.DefaultPolicy())
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			it, err := exec.Find(ctx, "movie drama")
			if err != nil {
				b.Fatal(err)
			}
			if it != nil {
				it.Close()
			}
		}
	})
}

// BenchmarkCorpusBuild measures crawling, tokenising and indexing a corpus
// spread over several files.
func BenchmarkCorpusBuild(b *testing.B) {
	dir := b.TempDir()
	for f := 0; f < 4; f++ {
		var sb strings.Builder
		for i := 0; i < 2500; i++ {
			sb.WriteString(movieRow(f*2500 + i))
			sb.WriteByte('\n')
		}
		path := filepath.Join(dir, fmt.Sprintf("movies-%d.txt", f))
		if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
			b.Fatal(err)
		}
	}
	cfg := config.CorpusConfig{Dir: dir}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		snap, err := indexer.Build(context.Background(), cfg, tokenizer.DefaultPolicy())
		if err != nil {
			b.Fatal(err)
		}
		snap.Close()
	}
}
