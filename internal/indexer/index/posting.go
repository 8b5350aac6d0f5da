package index

import (
	"sort"

	"github.com/RoaringBitmap/roaring"

	"github.com/PippiShao/IMDB/internal/indexer/registry"
)

// PostingSet is a read-only view of the documents containing one term.
type PostingSet struct {
	bm *roaring.Bitmap
}

func (p PostingSet) Len() int {
	if p.bm == nil {
		return 0
	}
	return int(p.bm.GetCardinality())
}

func (p PostingSet) Contains(id registry.DocID) bool {
	return p.bm != nil && p.bm.Contains(uint32(id))
}

// IDs returns the member ids in ascending order.
func (p PostingSet) IDs() []registry.DocID {
	if p.bm == nil {
		return nil
	}
	return toDocIDs(p.bm.ToArray())
}

// Intersect returns the ids present in every set, ascending. Sets are
// reduced smallest first.
func Intersect(sets ...PostingSet) []registry.DocID {
	if len(sets) == 0 {
		return nil
	}
	ordered := make([]PostingSet, len(sets))
	copy(ordered, sets)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Len() < ordered[j].Len()
	})
	if ordered[0].Len() == 0 {
		return nil
	}
	acc := ordered[0].bm.Clone()
	for _, s := range ordered[1:] {
		if s.bm == nil {
			return nil
		}
		acc.And(s.bm)
		if acc.IsEmpty() {
			return nil
		}
	}
	return toDocIDs(acc.ToArray())
}

// Union returns the ids present in any set, ascending.
func Union(sets ...PostingSet) []registry.DocID {
	bms := make([]*roaring.Bitmap, 0, len(sets))
	for _, s := range sets {
		if s.bm != nil {
			bms = append(bms, s.bm)
		}
	}
	if len(bms) == 0 {
		return nil
	}
	out := roaring.FastOr(bms...)
	if out.IsEmpty() {
		return nil
	}
	return toDocIDs(out.ToArray())
}

func toDocIDs(raw []uint32) []registry.DocID {
	ids := make([]registry.DocID, len(raw))
	for i, v := range raw {
		ids[i] = registry.DocID(v)
	}
	return ids
}
