// Package index holds the inverted index: term to posting set. A Builder
// collects postings during the single-threaded startup crawl and Build turns
// it into an Index, which exposes lookups only and is safe for unsynchronised
// concurrent reads.
package index

import (
	"github.com/RoaringBitmap/roaring"

	"github.com/PippiShao/IMDB/internal/hashtable"
	"github.com/PippiShao/IMDB/internal/indexer/registry"
)

type Builder struct {
	terms *hashtable.Table[string, *roaring.Bitmap]
	docs  *roaring.Bitmap
}

func NewBuilder() *Builder {
	return &Builder{
		terms: hashtable.New[string, *roaring.Bitmap](4096),
		docs:  roaring.New(),
	}
}

// Add inserts id into the posting set of every term. Repeated terms, and
// repeated calls for the same id, leave a single membership.
func (b *Builder) Add(id registry.DocID, terms []string) {
	b.docs.Add(uint32(id))
	for _, term := range terms {
		bm, ok := b.terms.Get(term)
		if !ok {
			bm = roaring.New()
			b.terms.Put(term, bm)
		}
		bm.Add(uint32(id))
	}
}

// Build compacts the postings and hands them to a read-only Index. The
// Builder must not be used afterwards.
func (b *Builder) Build() *Index {
	b.terms.Range(func(_ string, bm *roaring.Bitmap) bool {
		bm.RunOptimize()
		return true
	})
	ix := &Index{
		terms:    b.terms,
		docCount: int(b.docs.GetCardinality()),
	}
	b.terms = nil
	b.docs = nil
	return ix
}

type Index struct {
	terms    *hashtable.Table[string, *roaring.Bitmap]
	docCount int
}

// Postings returns the posting set for an already-normalised term.
func (ix *Index) Postings(term string) (PostingSet, bool) {
	bm, ok := ix.terms.Get(term)
	if !ok {
		return PostingSet{}, false
	}
	return PostingSet{bm: bm}, true
}

func (ix *Index) TermCount() int {
	return ix.terms.Count()
}

func (ix *Index) DocCount() int {
	return ix.docCount
}

// Range visits every term in first-indexed order.
func (ix *Index) Range(fn func(term string, postings PostingSet) bool) {
	ix.terms.Range(func(term string, bm *roaring.Bitmap) bool {
		return fn(term, PostingSet{bm: bm})
	})
}
