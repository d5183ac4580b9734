// Package pivotal implements a list of clusters partitioning for metric search.
//
// WHAT IS A LIST OF CLUSTERS?
// The database is partitioned around randomly chosen centers: every object
// joins the cluster of its nearest center. The index keeps, for every
// object, which cluster it belongs to and its distance to that center, and,
// for every cluster, its covering radius (the largest member distance).
//
// HOW PRUNING WORKS:
// For a query q with distance d(q,c) to center c:
//   - A cluster is skipped when max(d(q,c) - cov(c), (d(q,c) - min_c' d(q,c'))/2) > r.
//     The first term is the covering ball, the second the hyperplane between
//     c and the query's nearest center.
//   - A member x is skipped when |d(q,c) - d(x,c)| > r.
//
// TIME COMPLEXITY:
//   - Build: O(k × n) distance evaluations for k centers
//   - Search: O(k) center distances plus exact distances for surviving members
//
// MEMORY REQUIREMENTS:
//   - One symbol per object in the assignment sequence
//   - 8 bytes per object (distance to its center) and per cluster (radius)
//
// WHEN TO USE:
// As a partial index inside PolyIndex, several lists of clusters built with
// different seeds intersect into small candidate sets.
package pivotal

import (
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"github.com/RoaringBitmap/roaring"
	"golang.org/x/sync/errgroup"
)

// Compile-time checks to ensure ListOfClusters implements Index and PartialIndex
var (
	_ Index[int]        = (*ListOfClusters[int])(nil)
	_ PartialIndex[int] = (*ListOfClusters[int])(nil)
)

// ListOfClusters partitions the database around random centers.
type ListOfClusters[T any] struct {
	db      MetricDB[T]
	centers *PivotSample[T]

	// assign[x] is the cluster of object x, over the alphabet [0, NumCenters()).
	assign RankSelectSeq

	// dxc[x] is the distance from object x to its center.
	dxc []float64

	// cov[c] is the covering radius of cluster c.
	cov []float64

	cost costCounter
}

// NewListOfClusters returns an empty index bound to db, ready for ReadFrom.
func NewListOfClusters[T any](db MetricDB[T]) *ListOfClusters[T] {
	return &ListOfClusters[T]{db: db}
}

// BuildListOfClusters samples numCenters centers and assigns every object to
// its nearest center. Ties go to the center sampled first.
func BuildListOfClusters[T any](db MetricDB[T], numCenters int, opts ...BuildOption) (*ListOfClusters[T], error) {
	cfg := newBuildConfig(opts)
	logger := cfg.logger.WithKind(ListOfClustersKind)
	start := time.Now()

	centers, err := SamplePivots(db, numCenters, newRand(cfg.seed))
	if err != nil {
		return nil, err
	}
	n := db.Len()
	symbols := make([]int, n)
	dxc := make([]float64, n)

	// Objects are split into contiguous chunks, one per worker.
	chunk := (n + cfg.parallelism - 1) / cfg.parallelism
	var g errgroup.Group
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		g.Go(func() error {
			for x := lo; x < hi; x++ {
				obj := db.At(x)
				best, bestDist := 0, math.Inf(1)
				for c := 0; c < numCenters; c++ {
					if d := db.Dist(obj, centers.At(c)); d < bestDist {
						best, bestDist = c, d
					}
				}
				symbols[x] = best
				dxc[x] = bestDist
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	cov := make([]float64, numCenters)
	for x, c := range symbols {
		cov[c] = math.Max(cov[c], dxc[x])
	}
	assign, err := cfg.seqBuilder(symbols, numCenters)
	logger.LogBuild(n, numCenters, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cluster assignment: %w", err)
	}
	return &ListOfClusters[T]{
		db:      db,
		centers: centers,
		assign:  assign,
		dxc:     dxc,
		cov:     cov,
	}, nil
}

func (idx *ListOfClusters[T]) Kind() IndexKind {
	return ListOfClustersKind
}

func (idx *ListOfClusters[T]) DB() MetricDB[T] {
	return idx.db
}

// NumCenters returns the number of clusters.
func (idx *ListOfClusters[T]) NumCenters() int {
	return idx.centers.Len()
}

// Centers returns the center sample.
func (idx *ListOfClusters[T]) Centers() *PivotSample[T] {
	return idx.centers
}

// Assignment returns the cluster assignment sequence.
func (idx *ListOfClusters[T]) Assignment() RankSelectSeq {
	return idx.assign
}

// CoveringRadius returns the largest distance from center c to one of its members.
func (idx *ListOfClusters[T]) CoveringRadius(c int) float64 {
	return idx.cov[c]
}

func (idx *ListOfClusters[T]) Cost() SearchCost {
	return idx.cost.snapshot()
}

// Reencode returns a copy whose assignment sequence is rebuilt with builder.
// The copy has its own cost counters.
func (idx *ListOfClusters[T]) Reencode(builder SequenceBuilder) (PartialIndex[T], error) {
	assign, err := reencodeSequence(idx.assign, builder)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode cluster assignment: %w", err)
	}
	return &ListOfClusters[T]{
		db:      idx.db,
		centers: idx.centers,
		assign:  assign,
		dxc:     idx.dxc,
		cov:     idx.cov,
	}, nil
}

// clusterQuery is a ListOfClusters prepared for one query.
type clusterQuery[T any] struct {
	idx     *ListOfClusters[T]
	dqc     []float64
	nearest float64
}

// PartialQuery computes the distance from q to every center.
func (idx *ListOfClusters[T]) PartialQuery(q T) PartialQuery {
	dqc := make([]float64, idx.centers.Len())
	nearest := math.Inf(1)
	for c := range dqc {
		idx.cost.internal.Add(1)
		dqc[c] = idx.db.Dist(q, idx.centers.At(c))
		nearest = math.Min(nearest, dqc[c])
	}
	return &clusterQuery[T]{idx: idx, dqc: dqc, nearest: nearest}
}

// clusterBound is a lower bound on d(q, x) for every member x of cluster c.
func (cq *clusterQuery[T]) clusterBound(c int) float64 {
	d := cq.dqc[c]
	return math.Max(d-cq.idx.cov[c], (d-cq.nearest)/2)
}

func (cq *clusterQuery[T]) memberBound(c, item int) float64 {
	return lowerBound(cq.dqc[c], cq.idx.dxc[item])
}

func (cq *clusterQuery[T]) Candidates(radius float64) *roaring.Bitmap {
	out := roaring.New()
	for c := range cq.dqc {
		if cq.clusterBound(c) > radius {
			continue
		}
		cq.idx.assign.Unravel(c).Iterate(func(item int) bool {
			if cq.memberBound(c, item) <= radius {
				out.Add(uint32(item))
			}
			return true
		})
	}
	return out
}

func (cq *clusterQuery[T]) Admits(item int, radius float64) bool {
	c := cq.idx.assign.Access(item)
	if c < 0 {
		return false
	}
	return cq.clusterBound(c) <= radius && cq.memberBound(c, item) <= radius
}

// Traverse visits clusters in order of increasing center distance.
func (cq *clusterQuery[T]) Traverse(bound func() float64, fn func(item int)) {
	order := make([]int, len(cq.dqc))
	for c := range order {
		order[c] = c
	}
	sort.SliceStable(order, func(i, j int) bool {
		return cq.dqc[order[i]] < cq.dqc[order[j]]
	})
	for _, c := range order {
		if cq.clusterBound(c) > bound() {
			continue
		}
		cq.idx.assign.Unravel(c).Iterate(func(item int) bool {
			if cq.memberBound(c, item) <= bound() {
				fn(item)
			}
			return true
		})
	}
}

func (idx *ListOfClusters[T]) dist(q T, item int) float64 {
	idx.cost.external.Add(1)
	return idx.db.Dist(q, idx.db.At(item))
}

// SearchRange confirms every candidate of the surviving clusters.
func (idx *ListOfClusters[T]) SearchRange(q T, radius float64) *Result {
	res := NewResult(0)
	it := idx.PartialQuery(q).Candidates(radius).Iterator()
	for it.HasNext() {
		item := int(it.Next())
		if d := idx.dist(q, item); d <= radius {
			res.Push(item, d)
		}
	}
	return res
}

// SearchKNN traverses clusters nearest first, pruning with the covering
// radius of the result.
func (idx *ListOfClusters[T]) SearchKNN(q T, k int, res *Result) *Result {
	if res == nil {
		res = NewResult(k)
	}
	idx.PartialQuery(q).Traverse(res.CoveringRadius, func(item int) {
		res.Push(item, idx.dist(q, item))
	})
	return res
}

var listOfClustersMagic = [4]byte{'L', 'C', 'L', 'U'}

// WriteTo serializes the index.
//
// The serialization format is:
// 1. Magic number "LCLU" (4 bytes) + version (4 bytes)
// 2. Center sample: database length, center count, center ids
// 3. Tagged assignment sequence
// 4. Distance of every object to its center (float64)
// 5. Covering radius of every cluster (float64)
func (idx *ListOfClusters[T]) WriteTo(w io.Writer) (int64, error) {
	bw := newBinaryWriter(w)
	if err := bw.writeHeader(listOfClustersMagic); err != nil {
		return bw.n, err
	}
	if err := bw.sub(idx.centers); err != nil {
		return bw.n, fmt.Errorf("failed to write center sample: %w", err)
	}
	if err := bw.sub(taggedSequence{idx.assign}); err != nil {
		return bw.n, fmt.Errorf("failed to write assignment: %w", err)
	}
	if err := bw.write(idx.dxc); err != nil {
		return bw.n, fmt.Errorf("failed to write center distances: %w", err)
	}
	if err := bw.write(idx.cov); err != nil {
		return bw.n, fmt.Errorf("failed to write covering radii: %w", err)
	}
	return bw.n, nil
}

func (idx *ListOfClusters[T]) ReadFrom(r io.Reader) (int64, error) {
	br := newBinaryReader(r)
	if err := br.readHeader(listOfClustersMagic); err != nil {
		return br.n, err
	}
	var centers *PivotSample[T]
	if err := br.sub(func(r io.Reader) (n int64, err error) {
		centers, n, err = readPivotSample(r, idx.db)
		return n, err
	}); err != nil {
		return br.n, fmt.Errorf("failed to read center sample: %w", err)
	}
	var assign RankSelectSeq
	if err := br.sub(func(r io.Reader) (n int64, err error) {
		assign, n, err = LoadSequence(r)
		return n, err
	}); err != nil {
		return br.n, fmt.Errorf("failed to read assignment: %w", err)
	}
	if assign.Len() != idx.db.Len() || assign.Sigma() != centers.Len() {
		return br.n, fmt.Errorf("%w: assignment of %d objects over %d clusters, expected %d over %d",
			ErrDatabaseMismatch, assign.Len(), assign.Sigma(), idx.db.Len(), centers.Len())
	}
	dxc := make([]float64, idx.db.Len())
	if err := br.read(dxc); err != nil {
		return br.n, fmt.Errorf("failed to read center distances: %w", err)
	}
	cov := make([]float64, centers.Len())
	if err := br.read(cov); err != nil {
		return br.n, fmt.Errorf("failed to read covering radii: %w", err)
	}
	idx.centers = centers
	idx.assign = assign
	idx.dxc = dxc
	idx.cov = cov
	return br.n, nil
}
