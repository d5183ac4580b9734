// Package pivotal implements the LAESA pivot table for metric search.
//
// WHAT IS LAESA?
// LAESA (Linear Approximating Eliminating Search Algorithm) stores the exact
// distance from every object to each of m pivots. For a query q the bound
//
//	LB(x) = max_p |d(q,p) - d(x,p)|
//
// never exceeds d(q,x), so any object with LB(x) > r is discarded without
// computing its distance.
//
// TIME COMPLEXITY:
//   - Build: O(m × n) distance evaluations
//   - Search: O(m) pivot distances + O(m × n) arithmetic + exact distances
//     for objects passing the bound
//
// MEMORY REQUIREMENTS:
//   - 8 × m × n bytes for the distance table
//
// WHEN TO USE:
// LAESA is the default confirmation filter of PolyIndex: its table answers
// "can this object still be within r?" in O(m) with no false negatives.
package pivotal

import (
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// Compile-time checks to ensure LAESA implements Index and SingleIndex
var (
	_ Index[int]       = (*LAESA[int])(nil)
	_ SingleIndex[int] = (*LAESA[int])(nil)
)

// LAESA is a pivot table index with exact float64 distances.
type LAESA[T any] struct {
	db     MetricDB[T]
	pivots *PivotSample[T]

	// table[item*m + p] is d(item, pivot p).
	table []float64

	cost costCounter
}

// NewLAESA returns an empty index bound to db, ready for ReadFrom.
func NewLAESA[T any](db MetricDB[T]) *LAESA[T] {
	return &LAESA[T]{db: db}
}

// BuildLAESA samples numPivots pivots and records the distance of every
// object to each of them.
func BuildLAESA[T any](db MetricDB[T], numPivots int, opts ...BuildOption) (*LAESA[T], error) {
	cfg := newBuildConfig(opts)
	logger := cfg.logger.WithKind(LAESAKind)
	start := time.Now()

	pivots, err := SamplePivots(db, numPivots, newRand(cfg.seed))
	if err != nil {
		return nil, err
	}
	n, m := db.Len(), pivots.Len()
	idx := &LAESA[T]{
		db:     db,
		pivots: pivots,
		table:  make([]float64, n*m),
	}

	var g errgroup.Group
	g.SetLimit(cfg.parallelism)
	for p := 0; p < m; p++ {
		g.Go(func() error {
			pivot := pivots.At(p)
			for x := 0; x < n; x++ {
				idx.table[x*m+p] = db.Dist(pivot, db.At(x))
			}
			return nil
		})
	}
	err = g.Wait()
	logger.LogBuild(n, m, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return idx, nil
}

func (idx *LAESA[T]) Kind() IndexKind {
	return LAESAKind
}

func (idx *LAESA[T]) DB() MetricDB[T] {
	return idx.db
}

// NumPivots returns the number of pivots.
func (idx *LAESA[T]) NumPivots() int {
	return idx.pivots.Len()
}

// Pivots returns the pivot sample.
func (idx *LAESA[T]) Pivots() *PivotSample[T] {
	return idx.pivots
}

func (idx *LAESA[T]) Cost() SearchCost {
	return idx.cost.snapshot()
}

// laesaQuery holds the distance from the query to every pivot.
type laesaQuery struct {
	dqp []float64
}

func (idx *LAESA[T]) CreateQueryContext(q T) QueryContext {
	dqp := make([]float64, idx.pivots.Len())
	for p := range dqp {
		idx.cost.internal.Add(1)
		dqp[p] = idx.db.Dist(q, idx.pivots.At(p))
	}
	return &laesaQuery{dqp: dqp}
}

// bound returns max_p |d(q,p) - d(item,p)|.
func (idx *LAESA[T]) bound(item int, dqp []float64) float64 {
	m := len(dqp)
	row := idx.table[item*m : item*m+m]
	lb := 0.0
	for p, d := range dqp {
		lb = math.Max(lb, lowerBound(d, row[p]))
	}
	return lb
}

// MustReviewItem reports whether the pivot bound of item is within radius.
func (idx *LAESA[T]) MustReviewItem(item int, radius float64, ctx QueryContext) bool {
	lq, ok := ctx.(*laesaQuery)
	if !ok {
		return true
	}
	return idx.bound(item, lq.dqp) <= radius
}

func (idx *LAESA[T]) dist(q T, item int) float64 {
	idx.cost.external.Add(1)
	return idx.db.Dist(q, idx.db.At(item))
}

// pushPivots pushes the pivots within radius and returns the set of pivot ids.
func (idx *LAESA[T]) pushPivots(res *Result, dqp []float64, radius float64) map[int]struct{} {
	ids := make(map[int]struct{}, len(dqp))
	for p, d := range dqp {
		ids[idx.pivots.ID(p)] = struct{}{}
		if d <= radius {
			res.Push(idx.pivots.ID(p), d)
		}
	}
	return ids
}

// SearchRange scans every object and confirms those whose bound is within radius.
func (idx *LAESA[T]) SearchRange(q T, radius float64) *Result {
	res := NewResult(0)
	dqp := idx.CreateQueryContext(q).(*laesaQuery).dqp
	pivotIDs := idx.pushPivots(res, dqp, radius)
	for x := 0; x < idx.db.Len(); x++ {
		if _, isPivot := pivotIDs[x]; isPivot {
			continue
		}
		if idx.bound(x, dqp) > radius {
			continue
		}
		if d := idx.dist(q, x); d <= radius {
			res.Push(x, d)
		}
	}
	return res
}

// SearchKNN visits objects in order of increasing bound and stops once the
// bound exceeds the covering radius of the result.
func (idx *LAESA[T]) SearchKNN(q T, k int, res *Result) *Result {
	if res == nil {
		res = NewResult(k)
	}
	dqp := idx.CreateQueryContext(q).(*laesaQuery).dqp
	pivotIDs := idx.pushPivots(res, dqp, math.Inf(1))

	candidates := make([]Item, 0, idx.db.Len())
	for x := 0; x < idx.db.Len(); x++ {
		if _, isPivot := pivotIDs[x]; isPivot {
			continue
		}
		candidates = append(candidates, Item{ID: x, Dist: idx.bound(x, dqp)})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[j].worse(candidates[i])
	})
	for _, c := range candidates {
		if c.Dist > res.CoveringRadius() {
			break
		}
		res.Push(c.ID, idx.dist(q, c.ID))
	}
	return res
}

var laesaMagic = [4]byte{'L', 'A', 'E', 'S'}

// WriteTo serializes the index.
//
// The serialization format is:
// 1. Magic number "LAES" (4 bytes) + version (4 bytes)
// 2. Pivot sample: database length, pivot count, pivot ids
// 3. Distance table (float64 per object and pivot, object-major)
func (idx *LAESA[T]) WriteTo(w io.Writer) (int64, error) {
	bw := newBinaryWriter(w)
	if err := bw.writeHeader(laesaMagic); err != nil {
		return bw.n, err
	}
	if err := bw.sub(idx.pivots); err != nil {
		return bw.n, fmt.Errorf("failed to write pivot sample: %w", err)
	}
	if err := bw.write(idx.table); err != nil {
		return bw.n, fmt.Errorf("failed to write distance table: %w", err)
	}
	return bw.n, nil
}

func (idx *LAESA[T]) ReadFrom(r io.Reader) (int64, error) {
	br := newBinaryReader(r)
	if err := br.readHeader(laesaMagic); err != nil {
		return br.n, err
	}
	var pivots *PivotSample[T]
	if err := br.sub(func(r io.Reader) (n int64, err error) {
		pivots, n, err = readPivotSample(r, idx.db)
		return n, err
	}); err != nil {
		return br.n, fmt.Errorf("failed to read pivot sample: %w", err)
	}
	table := make([]float64, idx.db.Len()*pivots.Len())
	if err := br.read(table); err != nil {
		return br.n, fmt.Errorf("failed to read distance table: %w", err)
	}
	idx.pivots = pivots
	idx.table = table
	return br.n, nil
}
