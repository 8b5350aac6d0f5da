package parser

import (
	"sort"
	"strings"

	"github.com/PippiShao/IMDB/internal/indexer/tokenizer"
)

// Mode decides how the terms of a query combine.
type Mode int

const (
	// ModeAND matches documents containing every term.
	ModeAND Mode = iota
	// ModeOR matches documents containing any term.
	ModeOR
)

func (m Mode) String() string {
	if m == ModeOR {
		return "or"
	}
	return "and"
}

// ParseMode maps a config value to a Mode; anything but "or" is AND.
func ParseMode(s string) Mode {
	if strings.EqualFold(s, "or") {
		return ModeOR
	}
	return ModeAND
}

type QueryPlan struct {
	Terms    []string
	Mode     Mode
	RawQuery string
}

// Parse normalises query with the same policy the index was built with.
// Terms are distinct and keep their query order.
func Parse(query string, policy tokenizer.Policy, mode Mode) *QueryPlan {
	return &QueryPlan{
		Terms:    policy.Distinct(query),
		Mode:     mode,
		RawQuery: query,
	}
}

// Empty reports whether the query produced no terms.
func (p *QueryPlan) Empty() bool {
	return len(p.Terms) == 0
}

// Key is a canonical form of the plan: equal keys always evaluate to the
// same result against one index.
func (p *QueryPlan) Key() string {
	terms := make([]string, len(p.Terms))
	copy(terms, p.Terms)
	sort.Strings(terms)
	return p.Mode.String() + "|" + strings.Join(terms, ",")
}
