package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultPolicy_Terms(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"record row", "The Matrix, 1999, SciFi", []string{"the", "matrix", "1999", "scifi"}},
		{"empty", "", []string{}},
		{"only punctuation", " ,;| ", []string{}},
		{"pipe delimited", "tt0133093|movie|The Matrix|0|1999", []string{"tt0133093", "movie", "the", "matrix", "0", "1999"}},
		{"keeps duplicates", "run Run RUN", []string{"run", "run", "run"}},
	}
	p := DefaultPolicy()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Terms(tt.text))
		})
	}
}

func TestPolicy_Whitespace(t *testing.T) {
	p := Policy{Split: SplitWhitespace, MinLength: 1}
	assert.Equal(t, []string{"matrix,", "1999"}, p.Terms("Matrix, 1999"))
}

func TestPolicy_StopWordsAndMinLength(t *testing.T) {
	p := Policy{Split: SplitAlnum, StopWords: true, MinLength: 2}
	assert.Equal(t, []string{"matrix", "reloaded"}, p.Terms("The Matrix x Reloaded"))
}

func TestPolicy_Stem(t *testing.T) {
	p := Policy{Split: SplitAlnum, Stem: true, MinLength: 1}
	assert.Equal(t, []string{"runn", "movy"}, p.Terms("running movies"))
}

func TestPolicy_Distinct(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, []string{"b", "a"}, p.Distinct("b A a B b"))
}
