package pivotal

import (
	"math"

	"github.com/RoaringBitmap/roaring"
)

// SearchKNN pushes the k nearest objects to q into res.
//
// Search process:
//  1. Compute the distance to every pivot and push the pivots themselves
//  2. Pick the SearchPivots() pivots whose query bucket is closest to an end
//     of their alphabet, since those touch the fewest buckets
//  3. Open a bucket cursor per chosen pivot and poll the cursors round-robin
//  4. Evaluate an object exactly once it has appeared in a bucket of every
//     chosen pivot
//
// Cursors widen around the query bucket only while the bucket still
// intersects [dqp - CoveringRadius, dqp + CoveringRadius], so the walk
// narrows as the result fills. With SearchPivots() >= NumPivots() the result
// is exact.
func (idx *CompactPivots[T]) SearchKNN(q T, k int, res *Result) *Result {
	if res == nil {
		res = NewResult(k)
	}
	m := idx.NumPivots()
	target := int32(min(idx.searchPivots, m))
	counters := make([]int32, idx.db.Len())

	chosen := newCheapest[*bucketCursor](int(target))
	for i := 0; i < m; i++ {
		dqp := idx.pivotDist(q, i)
		res.Push(idx.pivots.ID(i), dqp)
		counters[idx.pivots.ID(i)] = target

		seq := idx.seqs[i]
		sym := Discretize(dqp, idx.stddev[i])
		cost := min(sym, abs(seq.Sigma()-1-sym))
		chosen.push(float64(cost), newBucketCursor(seq, idx.stddev[i], dqp, sym, res))
	}

	queue := chosen.ascending()
	for len(queue) > 0 {
		cursor := queue[0]
		queue = queue[1:]
		bucket, ok := cursor.Next()
		if !ok {
			continue
		}
		bucket.Iterate(func(item int) bool {
			counters[item]++
			if counters[item] == target {
				res.Push(item, idx.objectDist(q, item))
			}
			return true
		})
		queue = append(queue, cursor)
	}
	return res
}

// bucketCursor walks the buckets of one pivot outward from the query bucket.
type bucketCursor struct {
	seq    RankSelectSeq
	stddev float32
	dqp    float64
	res    *Result

	center int
	left   int
	right  int

	started   bool
	goRight   bool
	leftDone  bool
	rightDone bool
}

func newBucketCursor(seq RankSelectSeq, stddev float32, dqp float64, sym int, res *Result) *bucketCursor {
	return &bucketCursor{
		seq:    seq,
		stddev: stddev,
		dqp:    dqp,
		res:    res,
		center: sym,
		// Buckets at or above Sigma are empty; skip them.
		left:  min(sym-1, seq.Sigma()-1),
		right: sym + 1,
	}
}

// Next returns the next bucket to scan. It yields the query bucket first,
// then alternates left and right while the side still falls inside the
// current search window. Reports false once neither side can expand.
//
// The window only narrows as the result fills, so a side that fails to
// expand never expands again.
func (c *bucketCursor) Next() (Bitmap, bool) {
	if !c.started {
		c.started = true
		return c.seq.Unravel(c.center), true
	}
	for !(c.leftDone && c.rightDone) {
		right := c.goRight
		c.goRight = !c.goRight
		if right {
			if bm, ok := c.expandRight(); ok {
				return bm, true
			}
		} else {
			if bm, ok := c.expandLeft(); ok {
				return bm, true
			}
		}
	}
	return Bitmap{}, false
}

func (c *bucketCursor) expandLeft() (Bitmap, bool) {
	if c.leftDone {
		return Bitmap{}, false
	}
	lo := Discretize(c.dqp-c.res.CoveringRadius(), c.stddev)
	if c.left < 0 || lo > c.left {
		c.leftDone = true
		return Bitmap{}, false
	}
	bm := c.seq.Unravel(c.left)
	c.left--
	return bm, true
}

func (c *bucketCursor) expandRight() (Bitmap, bool) {
	if c.rightDone {
		return Bitmap{}, false
	}
	hi := Discretize(c.dqp+c.res.CoveringRadius(), c.stddev)
	if c.right >= c.seq.Sigma() || c.right > hi {
		c.rightDone = true
		return Bitmap{}, false
	}
	bm := c.seq.Unravel(c.right)
	c.right++
	return bm, true
}

// pivotWindow is the range of buckets of one pivot compatible with a radius.
type pivotWindow struct {
	seq   RankSelectSeq
	start int
	end   int
}

// union returns the positions stored in every bucket of the window.
func (w pivotWindow) union() *roaring.Bitmap {
	if w.start > w.end {
		return roaring.New()
	}
	buckets := make([]*roaring.Bitmap, 0, w.end-w.start+1)
	for s := w.start; s <= w.end; s++ {
		buckets = append(buckets, w.seq.Unravel(s).Roaring())
	}
	return roaring.FastOr(buckets...)
}

// SearchRange returns every object within radius of q.
//
// Search process:
//  1. For each pivot, find the bucket window [floor((dqp-r)/σ), floor((dqp+r)/σ)]
//  2. Estimate each window's size from symbol counts and keep the
//     SearchPivots() smallest
//  3. Intersect the chosen windows, smallest first, stopping when empty
//  4. Confirm survivors with the exact distance
func (idx *CompactPivots[T]) SearchRange(q T, radius float64) *Result {
	res := NewResult(0)
	m := idx.NumPivots()
	n := idx.db.Len()

	chosen := newCheapest[pivotWindow](min(idx.searchPivots, m))
	for i := 0; i < m; i++ {
		dqp := idx.pivotDist(q, i)
		seq := idx.seqs[i]
		w := pivotWindow{
			seq:   seq,
			start: Discretize(dqp-radius, idx.stddev[i]),
			end:   min(Discretize(dqp+radius, idx.stddev[i]), seq.Sigma()-1),
		}
		size := 0
		for s := w.start; s <= w.end; s++ {
			size += seq.Rank(s, n-1)
		}
		chosen.push(float64(size), w)
	}

	var candidates *roaring.Bitmap
	for _, w := range chosen.ascending() {
		if candidates == nil {
			candidates = w.union()
		} else {
			candidates = roaring.And(candidates, w.union())
		}
		if candidates.IsEmpty() {
			return res
		}
	}

	it := candidates.Iterator()
	for it.HasNext() {
		item := int(it.Next())
		if d := idx.objectDist(q, item); d <= radius {
			res.Push(item, d)
		}
	}
	return res
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// lowerBound is the triangle inequality bound |a - b| on d(q, x) given
// d(q, p) = a and d(x, p) = b.
func lowerBound(a, b float64) float64 {
	return math.Abs(a - b)
}
