package executor

import (
	"context"
	"log/slog"

	"github.com/PippiShao/IMDB/internal/indexer/index"
	"github.com/PippiShao/IMDB/internal/indexer/registry"
	"github.com/PippiShao/IMDB/internal/indexer/tokenizer"
	"github.com/PippiShao/IMDB/internal/searcher/iterator"
	"github.com/PippiShao/IMDB/internal/searcher/parser"
	apperrors "github.com/PippiShao/IMDB/pkg/errors"
)

// ResultCache stores evaluated results by plan key.
type ResultCache interface {
	GetOrCompute(ctx context.Context, key string, compute func() ([]registry.DocID, error)) ([]registry.DocID, bool, error)
}

type Executor struct {
	index      *index.Index
	policy     tokenizer.Policy
	mode       parser.Mode
	maxResults int
	cache      ResultCache
	logger     *slog.Logger
}

type Option func(*Executor)

// WithMode sets how query terms combine. The default is AND.
func WithMode(mode parser.Mode) Option {
	return func(e *Executor) { e.mode = mode }
}

// WithMaxResults makes results longer than n fail with ErrResourceExhausted.
// Zero means unlimited.
func WithMaxResults(n int) Option {
	return func(e *Executor) { e.maxResults = n }
}

// WithCache routes evaluation through c.
func WithCache(c ResultCache) Option {
	return func(e *Executor) { e.cache = c }
}

// New returns an Executor over ix. policy must be the one ix was built with.
func New(ix *index.Index, policy tokenizer.Policy, opts ...Option) *Executor {
	e := &Executor{
		index:  ix,
		policy: policy,
		mode:   parser.ModeAND,
		logger: slog.Default().With("component", "query-executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Plan parses query under the executor's policy and mode.
func (e *Executor) Plan(query string) *parser.QueryPlan {
	return parser.Parse(query, e.policy, e.mode)
}

// Evaluate returns the ids matching query in ascending order. No match is an
// empty result, not an error.
func (e *Executor) Evaluate(ctx context.Context, query string) ([]registry.DocID, error) {
	return e.EvaluatePlan(ctx, e.Plan(query))
}

// EvaluatePlan is Evaluate for an already parsed plan.
func (e *Executor) EvaluatePlan(ctx context.Context, plan *parser.QueryPlan) ([]registry.DocID, error) {
	if plan.Empty() {
		return nil, nil
	}
	var (
		ids []registry.DocID
		hit bool
	)
	if e.cache != nil {
		var err error
		ids, hit, err = e.cache.GetOrCompute(ctx, plan.Key(), func() ([]registry.DocID, error) {
			return e.evaluate(plan), nil
		})
		if err != nil {
			e.logger.Warn("cached evaluation failed, evaluating directly", "query", plan.RawQuery, "error", err)
			ids = e.evaluate(plan)
		}
	} else {
		ids = e.evaluate(plan)
	}
	if e.maxResults > 0 && len(ids) > e.maxResults {
		return nil, apperrors.Newf(apperrors.ErrResourceExhausted, "evaluate",
			"query %q matched %d documents, limit is %d", plan.RawQuery, len(ids), e.maxResults)
	}
	e.logger.Debug("query evaluated",
		"query", plan.RawQuery,
		"terms", plan.Terms,
		"mode", plan.Mode.String(),
		"results", len(ids),
		"cache_hit", hit,
	)
	return ids, nil
}

// Find evaluates query and wraps the result in an iterator. A query with no
// matches yields a nil iterator and a nil error.
func (e *Executor) Find(ctx context.Context, query string) (*iterator.Iterator, error) {
	return e.FindPlan(ctx, e.Plan(query))
}

// FindPlan is Find for an already parsed plan.
func (e *Executor) FindPlan(ctx context.Context, plan *parser.QueryPlan) (*iterator.Iterator, error) {
	ids, err := e.EvaluatePlan(ctx, plan)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return iterator.New(ids)
}

func (e *Executor) evaluate(plan *parser.QueryPlan) []registry.DocID {
	sets := make([]index.PostingSet, 0, len(plan.Terms))
	for _, term := range plan.Terms {
		postings, ok := e.index.Postings(term)
		if !ok {
			if plan.Mode == parser.ModeAND {
				return nil
			}
			continue
		}
		sets = append(sets, postings)
	}
	if plan.Mode == parser.ModeOR {
		return index.Union(sets...)
	}
	return index.Intersect(sets...)
}
