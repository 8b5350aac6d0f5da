package indexer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PippiShao/IMDB/internal/indexer/registry"
	"github.com/PippiShao/IMDB/internal/indexer/tokenizer"
	"github.com/PippiShao/IMDB/pkg/config"
)

func writeCorpus(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestBuild(t *testing.T) {
	dir := writeCorpus(t, map[string]string{
		"a.txt": "Alien, 1979, Horror\nThe Matrix, 1999, SciFi\n",
		"b.txt": "The Matrix Reloaded, 2003, SciFi\n",
	})
	snap, err := Build(context.Background(), config.CorpusConfig{Dir: dir}, tokenizer.DefaultPolicy())
	require.NoError(t, err)

	stats := snap.Stats()
	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, 3, stats.Docs)
	assert.True(t, snap.Ready())

	p, ok := snap.Index().Postings("matrix")
	require.True(t, ok)
	assert.Equal(t, []registry.DocID{1, 2}, p.IDs())

	text, err := snap.Registry().Resolve(1)
	require.NoError(t, err)
	assert.Equal(t, "The Matrix, 1999, SciFi", text)
}

func TestBuild_FingerprintIsStable(t *testing.T) {
	files := map[string]string{"a.txt": "Alien, 1979, Horror\n"}
	dir := writeCorpus(t, files)

	s1, err := Build(context.Background(), config.CorpusConfig{Dir: dir}, tokenizer.DefaultPolicy())
	require.NoError(t, err)
	s2, err := Build(context.Background(), config.CorpusConfig{Dir: dir}, tokenizer.DefaultPolicy())
	require.NoError(t, err)
	assert.Equal(t, s1.Fingerprint(), s2.Fingerprint())

	s3, err := Build(context.Background(), config.CorpusConfig{Dir: dir}, tokenizer.Policy{Split: tokenizer.SplitWhitespace, MinLength: 1})
	require.NoError(t, err)
	assert.NotEqual(t, s1.Fingerprint(), s3.Fingerprint())
}

func TestBuild_MissingDir(t *testing.T) {
	_, err := Build(context.Background(), config.CorpusConfig{Dir: filepath.Join(t.TempDir(), "missing")}, tokenizer.DefaultPolicy())
	assert.Error(t, err)
}

func TestSnapshot_CloseKeepsHeldReferences(t *testing.T) {
	dir := writeCorpus(t, map[string]string{"a.txt": "Alien, 1979, Horror\n"})
	snap, err := Build(context.Background(), config.CorpusConfig{Dir: dir}, tokenizer.DefaultPolicy())
	require.NoError(t, err)

	ix := snap.Index()
	require.NoError(t, snap.Close())
	require.NoError(t, snap.Close())

	assert.False(t, snap.Ready())
	assert.Nil(t, snap.Index())
	_, ok := ix.Postings("alien")
	assert.True(t, ok)
}

func TestPolicyFromConfig(t *testing.T) {
	p := PolicyFromConfig(config.TokenizerConfig{Split: config.SplitWhitespace, Stem: true})
	assert.Equal(t, tokenizer.Policy{Split: tokenizer.SplitWhitespace, Stem: true, MinLength: 1}, p)
}

func TestBuild_CountsOversizedRows(t *testing.T) {
	long := strings.Repeat("x", 40)
	dir := writeCorpus(t, map[string]string{
		"a.txt": "Alien, 1979, Horror\n" + long + "\n" + long + "y\n",
	})

	snap, err := Build(context.Background(), config.CorpusConfig{Dir: dir}, tokenizer.DefaultPolicy(), WithMaxRowBytes(len(long)))
	require.NoError(t, err)
	stats := snap.Stats()
	assert.Equal(t, 3, stats.Docs)
	assert.Equal(t, 1, stats.OversizedRows)

	snap, err = Build(context.Background(), config.CorpusConfig{Dir: dir}, tokenizer.DefaultPolicy())
	require.NoError(t, err)
	assert.Zero(t, snap.Stats().OversizedRows)
}
