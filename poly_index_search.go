package pivotal

import (
	"github.com/RoaringBitmap/roaring"
)

// candidateReview confirms the objects that survive the partial filters.
type candidateReview[T any] struct {
	idx    *PolyIndex[T]
	q      T
	res    *Result
	ctx    QueryContext
	radius func() float64
}

// onIntersection gates item with the confirmation index, then pushes it when
// its exact distance is within the current radius.
func (cr *candidateReview[T]) onIntersection(item int) {
	radius := cr.radius()
	if cr.idx.single != nil && !cr.idx.single.MustReviewItem(item, radius, cr.ctx) {
		return
	}
	cr.idx.cost.external.Add(1)
	if d := cr.idx.db.Dist(cr.q, cr.idx.db.At(item)); d <= radius {
		cr.res.Push(item, d)
	}
}

// newReview prepares the shared confirmation context for q.
func (idx *PolyIndex[T]) newReview(q T, res *Result, radius func() float64) *candidateReview[T] {
	cr := &candidateReview[T]{idx: idx, q: q, res: res, radius: radius}
	if idx.single != nil {
		cr.ctx = idx.single.CreateQueryContext(q)
	}
	return cr
}

func (idx *PolyIndex[T]) partialQueries(q T) []PartialQuery {
	queries := make([]PartialQuery, len(idx.partials))
	for i, p := range idx.partials {
		queries[i] = p.PartialQuery(q)
	}
	return queries
}

// admittedByAll reports whether every query admits item within radius.
func admittedByAll(queries []PartialQuery, item int, radius float64) bool {
	for _, pq := range queries {
		if !pq.Admits(item, radius) {
			return false
		}
	}
	return true
}

// partialSearchRange intersects the candidate sets of every partial query
// and hands each surviving object to onIntersection.
func partialSearchRange(queries []PartialQuery, radius float64, onIntersection func(item int)) {
	var candidates *roaring.Bitmap
	for _, pq := range queries {
		set := pq.Candidates(radius)
		if candidates == nil {
			candidates = set
		} else {
			candidates.And(set)
		}
		if candidates.IsEmpty() {
			return
		}
	}
	it := candidates.Iterator()
	for it.HasNext() {
		item := int(it.Next())
		if admittedByAll(queries, item, radius) {
			onIntersection(item)
		}
	}
}

// partialSearchKNN lets the first partial query drive traversal and filters
// each visited object through the others with the current bound.
func partialSearchKNN(queries []PartialQuery, bound func() float64, onIntersection func(item int)) {
	rest := queries[1:]
	queries[0].Traverse(bound, func(item int) {
		if admittedByAll(rest, item, bound()) {
			onIntersection(item)
		}
	})
}

// SearchRange returns every object within radius of q.
func (idx *PolyIndex[T]) SearchRange(q T, radius float64) *Result {
	res := NewResult(0)
	review := idx.newReview(q, res, func() float64 { return radius })
	partialSearchRange(idx.partialQueries(q), radius, review.onIntersection)
	return res
}

// SearchKNN pushes the k nearest objects to q into res. The bound used by
// every filter is the covering radius of res, so filtering tightens as the
// result fills.
func (idx *PolyIndex[T]) SearchKNN(q T, k int, res *Result) *Result {
	if res == nil {
		res = NewResult(k)
	}
	review := idx.newReview(q, res, res.CoveringRadius)
	partialSearchKNN(idx.partialQueries(q), res.CoveringRadius, review.onIntersection)
	return res
}
