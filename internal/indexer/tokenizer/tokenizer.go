// Package tokenizer provides term normalisation for the query server.
// A Policy lower-cases input, splits it into words, and optionally removes
// stop-words and applies a simple suffix-based stemmer. Indexing and query
// parsing must share one Policy.
package tokenizer

import (
	"strings"
	"unicode"
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "their": {}, "if": {}, "each": {},
	"do": {}, "not": {}, "no": {}, "so": {}, "can": {},
}

// SplitMode selects how text is broken into words.
type SplitMode int

const (
	// SplitAlnum splits on every rune that is neither a letter nor a digit,
	// so punctuation never ends up inside a term.
	SplitAlnum SplitMode = iota
	// SplitWhitespace splits on whitespace only.
	SplitWhitespace
)

// Policy is a normalisation rule set.
type Policy struct {
	Split     SplitMode
	StopWords bool
	Stem      bool
	MinLength int
}

// DefaultPolicy case-folds and splits on non-alphanumeric boundaries,
// keeping every word.
func DefaultPolicy() Policy {
	return Policy{Split: SplitAlnum, MinLength: 1}
}

// Terms returns the normalised terms of text in order of appearance,
// duplicates included.
func (p Policy) Terms(text string) []string {
	text = strings.ToLower(text)
	var words []string
	switch p.Split {
	case SplitWhitespace:
		words = strings.Fields(text)
	default:
		words = strings.FieldsFunc(text, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
	}
	terms := make([]string, 0, len(words))
	for _, word := range words {
		if len(word) < p.MinLength {
			continue
		}
		if p.StopWords {
			if _, isStop := stopWords[word]; isStop {
				continue
			}
		}
		if p.Stem {
			word = stem(word)
		}
		if word == "" {
			continue
		}
		terms = append(terms, word)
	}
	return terms
}

// Distinct returns the terms of text with duplicates removed, keeping the
// first occurrence order.
func (p Policy) Distinct(text string) []string {
	terms := p.Terms(text)
	seen := make(map[string]struct{}, len(terms))
	out := terms[:0]
	for _, term := range terms {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}
	return out
}

// stem applies a simple suffix-stripping stemmer to the given word.
func stem(word string) string {
	suffixes := []struct {
		suffix      string
		replacement string
		minLen      int
	}{
		{"ational", "ate", 2},
		{"tional", "tion", 2},
		{"encies", "ence", 2},
		{"ances", "ance", 2},
		{"ments", "ment", 2},
		{"izing", "ize", 2},
		{"ating", "ate", 2},
		{"iness", "y", 2},
		{"ously", "ous", 2},
		{"ively", "ive", 2},
		{"eness", "ene", 2},
		{"tion", "t", 3},
		{"sion", "s", 3},
		{"ying", "y", 2},
		{"ling", "l", 3},
		{"ies", "y", 2},
		{"ing", "", 3},
		{"ers", "er", 2},
		{"est", "", 3},
		{"ful", "", 3},
		{"ous", "", 3},
		{"ess", "", 3},
		{"ble", "", 3},
		{"ed", "", 3},
		{"er", "", 3},
		{"ly", "", 3},
		{"es", "", 3},
		{"ss", "ss", 2},
		{"s", "", 3},
	}
	for _, rule := range suffixes {
		if strings.HasSuffix(word, rule.suffix) {
			newWord := word[:len(word)-len(rule.suffix)] + rule.replacement
			if len(newWord) >= rule.minLen {
				return newWord
			}
		}
	}
	return word
}
