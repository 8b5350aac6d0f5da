package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PippiShao/IMDB/internal/movie"
	apperrors "github.com/PippiShao/IMDB/pkg/errors"
)

var records = []string{
	"The Matrix Reloaded, 2003, SciFi",
	"Alien, 1979, Horror",
	"The Matrix, 1999, SciFi",
	"Heat, 1995",
	", 2000, Drama",
}

func titles(g Group) []string {
	out := make([]string, len(g.Movies))
	for i, m := range g.Movies {
		out[i] = m.Title
	}
	return out
}

func TestBuild_ByGenre(t *testing.T) {
	r, err := Build(records, movie.CSVLayout, "genre")
	require.NoError(t, err)
	assert.Equal(t, 5, r.Total)
	require.Len(t, r.Groups, 3)

	assert.Equal(t, "(none)", r.Groups[0].Key)
	assert.Equal(t, []string{"Heat"}, titles(r.Groups[0]))
	assert.Equal(t, "Horror", r.Groups[1].Key)
	assert.Equal(t, "SciFi", r.Groups[2].Key)
	assert.Equal(t, []string{"The Matrix", "The Matrix Reloaded"}, titles(r.Groups[2]))
	assert.Equal(t, []string{", 2000, Drama"}, r.Unparsed)
}

func TestBuild_ByYearMultiGenre(t *testing.T) {
	rows := []string{
		"tt0133093|movie|The Matrix|0|1999|136|Action,Sci-Fi",
		"tt0078748|movie|Alien|0|1979|117|Horror,Sci-Fi",
	}
	r, err := Build(rows, movie.IMDBLayout, "genre")
	require.NoError(t, err)
	require.Len(t, r.Groups, 3)
	assert.Equal(t, "Sci-Fi", r.Groups[2].Key)
	assert.Equal(t, []string{"Alien", "The Matrix"}, titles(r.Groups[2]))

	r, err = Build(rows, movie.IMDBLayout, "year")
	require.NoError(t, err)
	require.Len(t, r.Groups, 2)
	assert.Equal(t, "1979", r.Groups[0].Key)
}

func TestBuild_UnknownField(t *testing.T) {
	_, err := Build(records, movie.CSVLayout, "director")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestRender(t *testing.T) {
	r, err := Build(records, movie.CSVLayout, "genre")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf))
	out := buf.String()
	assert.Contains(t, out, "genre: SciFi (2)")
	assert.Contains(t, out, "The Matrix Reloaded")
	assert.Contains(t, out, "unparsed rows (1)")
	assert.Contains(t, out, ", 2000, Drama")
}
