// Package crawler walks a corpus directory and yields every non-empty row of
// every matching file, in lexical path order, together with its zero-based
// row number and byte offset.
package crawler

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Row is one line of a corpus file without its line terminator.
type Row struct {
	Path   string
	Row    int
	Offset int64
	Text   string
}

// Stats summarises a crawl.
type Stats struct {
	Files int
	Rows  int
}

type Crawler struct {
	extensions map[string]struct{}
	logger     *slog.Logger
}

// New returns a Crawler accepting files whose extension is in extensions
// (e.g. ".txt"). An empty list accepts every regular file.
func New(extensions []string) *Crawler {
	exts := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(ext)
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts[ext] = struct{}{}
	}
	return &Crawler{
		extensions: exts,
		logger:     slog.Default().With("component", "crawler"),
	}
}

// Crawl calls fn for every row under dir. Discovery order is deterministic,
// so callers that number rows as they arrive get stable ids across runs.
func (c *Crawler) Crawl(ctx context.Context, dir string, fn func(Row) error) (Stats, error) {
	var stats Stats
	info, err := os.Stat(dir)
	if err != nil {
		return stats, fmt.Errorf("opening corpus directory: %w", err)
	}
	if !info.IsDir() {
		return stats, fmt.Errorf("corpus path %s is not a directory", dir)
	}
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !c.accepts(path) {
			return nil
		}
		rows, err := c.crawlFile(path, fn)
		if err != nil {
			return err
		}
		stats.Files++
		stats.Rows += rows
		c.logger.Debug("file crawled", "path", path, "rows", rows)
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("crawling %s: %w", dir, err)
	}
	return stats, nil
}

func (c *Crawler) accepts(path string) bool {
	if len(c.extensions) == 0 {
		return true
	}
	_, ok := c.extensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

func (c *Crawler) crawlFile(path string, fn func(Row) error) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	rd := bufio.NewReader(f)
	var (
		offset int64
		rowNum int
		rows   int
	)
	for {
		line, err := rd.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return rows, fmt.Errorf("reading %s: %w", path, err)
		}
		if line == "" && errors.Is(err, io.EOF) {
			return rows, nil
		}
		text := strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
		if strings.TrimSpace(text) != "" {
			if cbErr := fn(Row{Path: path, Row: rowNum, Offset: offset, Text: text}); cbErr != nil {
				return rows, cbErr
			}
			rows++
		}
		offset += int64(len(line))
		rowNum++
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
	}
}
