package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/PippiShao/IMDB/pkg/errors"
)

func writeCorpusFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "movies.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRegister_AssignsSequentialIDs(t *testing.T) {
	r := New()
	assert.Equal(t, DocID(0), r.Register("a.txt", 0))
	assert.Equal(t, DocID(1), r.Register("a.txt", 1))
	assert.Equal(t, DocID(2), r.Register("b.txt", 0))
	assert.Equal(t, 3, r.Count())

	loc, err := r.Lookup(1)
	require.NoError(t, err)
	assert.Equal(t, Location{Path: "a.txt", Row: 1, Offset: -1}, loc)
}

func TestResolve_ByRow(t *testing.T) {
	path := writeCorpusFile(t, "Alien, 1979, Horror\nThe Matrix, 1999, SciFi\r\nHeat, 1995, Crime")
	r := New()
	ids := []DocID{r.Register(path, 0), r.Register(path, 1), r.Register(path, 2)}

	want := []string{"Alien, 1979, Horror", "The Matrix, 1999, SciFi", "Heat, 1995, Crime"}
	for i, id := range ids {
		got, err := r.Resolve(id)
		require.NoError(t, err)
		assert.Equal(t, want[i], got)
	}
}

func TestResolve_ByOffset(t *testing.T) {
	path := writeCorpusFile(t, "Alien, 1979, Horror\nThe Matrix, 1999, SciFi\n")
	r := New()
	id := r.RegisterAt(path, 1, int64(len("Alien, 1979, Horror\n")))

	got, err := r.Resolve(id)
	require.NoError(t, err)
	assert.Equal(t, "The Matrix, 1999, SciFi", got)
}

func TestResolve_UnknownID(t *testing.T) {
	r := New()
	_, err := r.Resolve(42)
	assert.ErrorIs(t, err, apperrors.ErrDocumentNotFound)
}

func TestResolve_RemovedFile(t *testing.T) {
	path := writeCorpusFile(t, "Alien, 1979, Horror\n")
	r := New()
	id := r.Register(path, 0)
	require.NoError(t, os.Remove(path))

	_, err := r.Resolve(id)
	assert.ErrorIs(t, err, apperrors.ErrIO)
}

func TestResolve_RowPastEnd(t *testing.T) {
	path := writeCorpusFile(t, "Alien, 1979, Horror\n")
	r := New()
	id := r.Register(path, 5)

	_, err := r.Resolve(id)
	assert.ErrorIs(t, err, apperrors.ErrIO)
}

func TestRange_VisitsInIDOrder(t *testing.T) {
	r := New()
	for i := 0; i < 5; i++ {
		r.Register("f.txt", i)
	}
	var got []DocID
	r.Range(func(id DocID, loc Location) bool {
		got = append(got, id)
		assert.Equal(t, int(id), loc.Row)
		return true
	})
	assert.Equal(t, []DocID{0, 1, 2, 3, 4}, got)
}
