package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PippiShao/IMDB/internal/movie"
	apperrors "github.com/PippiShao/IMDB/pkg/errors"
)

type fakeQuerier struct {
	results map[string][]string
	err     error
	queries []string
}

func (f *fakeQuerier) Query(_ context.Context, query string) ([]string, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.results[query], nil
}

func newPrompt(q querier, input string, out *bytes.Buffer) *prompt {
	return &prompt{
		querier: q,
		layout:  movie.CSVLayout,
		groupBy: "genre",
		in:      strings.NewReader(input),
		out:     out,
	}
}

func TestPrompt(t *testing.T) {
	q := &fakeQuerier{results: map[string][]string{
		"matrix": {"The Matrix, 1999, SciFi", "The Matrix Reloaded, 2003, SciFi"},
	}}
	var out bytes.Buffer
	input := "matrix\n\n" + strings.Repeat("x", 101) + "\nnothing\nq\nnever\n"

	require.NoError(t, newPrompt(q, input, &out).run(context.Background()))
	assert.Equal(t, []string{"matrix", "nothing"}, q.queries)

	text := out.String()
	assert.Contains(t, text, "found 2 movies.")
	assert.Contains(t, text, "genre: SciFi (2)")
	assert.Contains(t, text, "query too long: 101 characters, at most 100")
	assert.Contains(t, text, "found 0 movies.")
}

func TestPrompt_EndOfInput(t *testing.T) {
	var out bytes.Buffer
	q := &fakeQuerier{}
	require.NoError(t, newPrompt(q, "", &out).run(context.Background()))
	assert.Empty(t, q.queries)
}

func TestPrompt_QueryFailureEndsSession(t *testing.T) {
	var out bytes.Buffer
	q := &fakeQuerier{err: errors.New("connection refused")}
	err := newPrompt(q, "matrix\nalien\n", &out).run(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"matrix"}, q.queries)
}

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig("", []string{"10.0.0.5", "2000"})
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5:2000", cfg.Server.Addr())

	cfg, err = loadConfig("", []string{"localhost:1600"})
	require.NoError(t, err)
	assert.Equal(t, "localhost:1600", cfg.Server.Addr())

	_, err = loadConfig("", []string{"localhost", "port"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
