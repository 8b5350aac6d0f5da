package crawler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestCrawl_OrderAndOffsets(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.txt"), "Heat, 1995, Crime\n")
	writeFile(t, filepath.Join(dir, "a.txt"), "Alien, 1979, Horror\n\nThe Matrix, 1999, SciFi\r\n")
	writeFile(t, filepath.Join(dir, "sub", "c.txt"), "Up, 2009, Animation")

	var rows []Row
	stats, err := New(nil).Crawl(context.Background(), dir, func(r Row) error {
		rows = append(rows, r)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, Stats{Files: 3, Rows: 4}, stats)

	require.Len(t, rows, 4)
	assert.Equal(t, Row{Path: filepath.Join(dir, "a.txt"), Row: 0, Offset: 0, Text: "Alien, 1979, Horror"}, rows[0])
	assert.Equal(t, Row{Path: filepath.Join(dir, "a.txt"), Row: 2, Offset: 21, Text: "The Matrix, 1999, SciFi"}, rows[1])
	assert.Equal(t, filepath.Join(dir, "b.txt"), rows[2].Path)
	assert.Equal(t, filepath.Join(dir, "sub", "c.txt"), rows[3].Path)
	assert.Equal(t, "Up, 2009, Animation", rows[3].Text)
}

func TestCrawl_ExtensionFilterAndHiddenDirs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "keep.txt"), "Alien, 1979, Horror\n")
	writeFile(t, filepath.Join(dir, "skip.csv"), "Heat, 1995, Crime\n")
	writeFile(t, filepath.Join(dir, ".git", "x.txt"), "nope\n")

	stats, err := New([]string{"txt"}).Crawl(context.Background(), dir, func(Row) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, Stats{Files: 1, Rows: 1}, stats)
}

func TestCrawl_MissingDir(t *testing.T) {
	_, err := New(nil).Crawl(context.Background(), filepath.Join(t.TempDir(), "nope"), func(Row) error { return nil })
	assert.Error(t, err)
}

func TestCrawl_CallbackErrorStops(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "one\ntwo\n")
	boom := errors.New("boom")

	calls := 0
	_, err := New(nil).Crawl(context.Background(), dir, func(Row) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestCrawl_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "one\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(nil).Crawl(ctx, dir, func(Row) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
