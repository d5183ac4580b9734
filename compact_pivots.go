// Package pivotal implements a compact pivot index for metric-space search.
//
// WHAT IS A COMPACT PIVOT INDEX?
// A pivot index picks m reference objects (pivots) and remembers, for every
// database object x, its distance to each pivot p. By the triangle inequality
// |d(q,p) - d(x,p)| <= d(q,x), so an object whose pivot distance is far from
// the query's pivot distance cannot be within radius r of the query.
//
// The compact variant does not store exact distances. It divides each
// pivot's distance range into buckets one standard deviation wide and stores
// only the bucket number (symbol) of every object inside a rank/select
// sequence. The objects of a bucket are obtained directly with Unravel, so a
// query reads whole buckets instead of testing objects one by one.
//
// HOW A QUERY WORKS:
//  1. Compute the exact distance from the query to every pivot
//  2. Rank pivots by how few buckets (range) or objects (kNN) they will touch
//  3. Read the buckets compatible with the search radius on the cheapest pivots
//  4. Keep the objects present in the compatible buckets of every consulted pivot
//  5. Confirm survivors with the exact distance
//
// TIME COMPLEXITY:
//   - Build: O(m × n) distance evaluations
//   - Search: O(m) pivot distances + exact distances for surviving candidates
//
// MEMORY REQUIREMENTS:
//   - One sequence of n symbols per pivot, usually a handful of bits per symbol
//   - One float32 standard deviation per pivot
//
// GUARANTEES & TRADE-OFFS:
// ✓ Pros:
//   - Much smaller than a table of exact distances
//   - Exact results when every pivot is consulted
//   - Works with any metric, not only vector spaces
//
// ✗ Cons:
//   - Bucket granularity admits more candidates than exact distances would
//   - Consulting fewer pivots than were built keeps results sound but may lose recall in kNN
//   - Build cost grows linearly with the number of pivots
package pivotal

import (
	"fmt"
	"io"
	"math"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

// Compile-time checks to ensure CompactPivots implements Index and SingleIndex
var (
	_ Index[int]       = (*CompactPivots[int])(nil)
	_ SingleIndex[int] = (*CompactPivots[int])(nil)
)

// CompactPivots is the compact pivot index.
//
// Thread-safety: immutable after build; safe for concurrent queries.
type CompactPivots[T any] struct {
	db MetricDB[T]

	// pivots is the sample of pivot objects, in pivot order.
	pivots *PivotSample[T]

	// seqs[i] holds the discretized distance of every object to pivot i.
	seqs []RankSelectSeq

	// stddev[i] is the bucket width of pivot i.
	stddev []float32

	// searchPivots is the number of pivots consulted per query (capped at m).
	searchPivots int

	cost costCounter
}

// NewCompactPivots returns an empty index bound to db, ready for ReadFrom.
func NewCompactPivots[T any](db MetricDB[T]) *CompactPivots[T] {
	return &CompactPivots[T]{db: db}
}

// Discretize maps a distance to its bucket: floor(d / stddev) clamped to
// [0, MaxSymbol].
//
// Negative, NaN and non-positive-stddev inputs map to bucket 0. Distances
// beyond MaxSymbol deviations all share the last bucket; this loses pruning
// power for outliers but never soundness, because the last bucket is read
// whenever a search bound reaches it.
func Discretize(d float64, stddev float32) int {
	if !(stddev > 0) {
		return 0
	}
	sym := math.Floor(d / float64(stddev))
	if math.IsNaN(sym) || sym < 0 {
		return 0
	}
	if sym > MaxSymbol {
		return MaxSymbol
	}
	return int(sym)
}

// BuildCompactPivots samples numPivots pivots from db and encodes every
// object's discretized distance to each of them.
//
// Parameters:
//   - db: the database to index
//   - numPivots: number of pivots to sample, in [1, db.Len()]
//   - searchPivots: number of pivots consulted per query, >= 1; values above
//     numPivots consult every pivot
//   - opts: WithSeed, WithSequenceBuilder, WithLogger, WithParallelism
//
// Returns ErrInvalidPivotCount, ErrInvalidSearchPivots, ErrDegeneratePivot
// when a pivot sees every object at the same distance, or the sequence
// builder's error.
//
// Example:
//
//	idx, err := BuildCompactPivots[[]float32](db, 32, 8, WithSeed(7))
//	if err != nil { log.Fatal(err) }
//	res := idx.SearchKNN(query, 10, nil)
func BuildCompactPivots[T any](db MetricDB[T], numPivots, searchPivots int, opts ...BuildOption) (*CompactPivots[T], error) {
	cfg := newBuildConfig(opts)
	logger := cfg.logger.WithKind(CompactPivotsKind)
	start := time.Now()

	if searchPivots < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSearchPivots, searchPivots)
	}
	pivots, err := SamplePivots(db, numPivots, newRand(cfg.seed))
	if err != nil {
		return nil, err
	}

	idx := &CompactPivots[T]{
		db:           db,
		pivots:       pivots,
		seqs:         make([]RankSelectSeq, numPivots),
		stddev:       make([]float32, numPivots),
		searchPivots: searchPivots,
	}

	// Pivots are independent: each goroutine writes only its own slot.
	var g errgroup.Group
	g.SetLimit(cfg.parallelism)
	for i := 0; i < numPivots; i++ {
		g.Go(func() error {
			sigma, err := idx.encodePivot(i, cfg.seqBuilder)
			if err != nil {
				return err
			}
			if i%10 == 0 {
				logger.LogPivotProgress(i, numPivots, sigma)
			}
			return nil
		})
	}
	err = g.Wait()
	logger.LogBuild(db.Len(), numPivots, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return idx, nil
}

// encodePivot computes the distance distribution of pivot i and stores its
// bucket width and symbol sequence. Returns the alphabet size.
func (idx *CompactPivots[T]) encodePivot(i int, builder SequenceBuilder) (int, error) {
	n := idx.db.Len()
	pivot := idx.pivots.At(i)
	dists := make([]float64, n)
	for j := 0; j < n; j++ {
		dists[j] = idx.db.Dist(pivot, idx.db.At(j))
	}

	_, std := stat.PopMeanStdDev(dists, nil)
	stddev := float32(std)
	if !(stddev > 0) {
		return 0, fmt.Errorf("%w: pivot %d (object %d)", ErrDegeneratePivot, i, idx.pivots.ID(i))
	}

	symbols := make([]int, n)
	sigma := 0
	for j, d := range dists {
		sym := Discretize(d, stddev)
		symbols[j] = sym
		sigma = max(sigma, sym)
	}
	seq, err := builder(symbols, sigma+1)
	if err != nil {
		return 0, fmt.Errorf("failed to encode pivot %d: %w", i, err)
	}

	idx.stddev[i] = stddev
	idx.seqs[i] = seq
	return sigma + 1, nil
}

// DownsampleCompactPivots derives a smaller index from src by keeping its
// first numPivots pivots together with their sequences and bucket widths.
//
// When builder is non-nil each kept sequence is re-encoded with it. The raw
// symbols are recovered by walking Unravel/Select1 over the source sequence,
// so the source sequences must offer an efficient Select (InvertedSeq does,
// PackedSeq does not); efficient Access is not required.
func DownsampleCompactPivots[T any](src *CompactPivots[T], numPivots, searchPivots int, builder SequenceBuilder) (*CompactPivots[T], error) {
	if numPivots < 1 || numPivots > src.NumPivots() {
		return nil, fmt.Errorf("%w: %d pivots requested from an index with %d", ErrInvalidPivotCount, numPivots, src.NumPivots())
	}
	if searchPivots < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSearchPivots, searchPivots)
	}
	idx := &CompactPivots[T]{
		db:           src.db,
		pivots:       src.pivots.Prefix(numPivots),
		seqs:         make([]RankSelectSeq, numPivots),
		stddev:       make([]float32, numPivots),
		searchPivots: searchPivots,
	}
	copy(idx.stddev, src.stddev[:numPivots])
	for i := 0; i < numPivots; i++ {
		seq := src.seqs[i]
		if builder != nil {
			reencoded, err := reencodeSequence(seq, builder)
			if err != nil {
				return nil, fmt.Errorf("failed to re-encode pivot %d: %w", i, err)
			}
			seq = reencoded
		}
		idx.seqs[i] = seq
	}
	return idx, nil
}

// Kind returns CompactPivotsKind.
func (idx *CompactPivots[T]) Kind() IndexKind {
	return CompactPivotsKind
}

// DB returns the indexed database.
func (idx *CompactPivots[T]) DB() MetricDB[T] {
	return idx.db
}

// NumPivots returns the number of pivots m.
func (idx *CompactPivots[T]) NumPivots() int {
	return len(idx.seqs)
}

// SearchPivots returns the configured number of pivots consulted per query.
func (idx *CompactPivots[T]) SearchPivots() int {
	return idx.searchPivots
}

// Pivots returns the pivot sample.
func (idx *CompactPivots[T]) Pivots() *PivotSample[T] {
	return idx.pivots
}

// StdDev returns the bucket width of pivot i.
func (idx *CompactPivots[T]) StdDev(i int) float32 {
	return idx.stddev[i]
}

// Sequence returns the symbol sequence of pivot i.
func (idx *CompactPivots[T]) Sequence(i int) RankSelectSeq {
	return idx.seqs[i]
}

// Cost returns the distance evaluations performed by queries so far.
func (idx *CompactPivots[T]) Cost() SearchCost {
	return idx.cost.snapshot()
}

func (idx *CompactPivots[T]) pivotDist(q T, i int) float64 {
	idx.cost.internal.Add(1)
	return idx.db.Dist(q, idx.pivots.At(i))
}

func (idx *CompactPivots[T]) objectDist(q T, item int) float64 {
	idx.cost.external.Add(1)
	return idx.db.Dist(q, idx.db.At(item))
}

// pivotQuery is the query context of CompactPivots: the exact distance from
// the query to every pivot.
type pivotQuery struct {
	dqp []float64
}

// CreateQueryContext computes the distances from q to all pivots.
func (idx *CompactPivots[T]) CreateQueryContext(q T) QueryContext {
	dqp := make([]float64, len(idx.seqs))
	for i := range dqp {
		dqp[i] = idx.pivotDist(q, i)
	}
	return &pivotQuery{dqp: dqp}
}

// MustReviewItem reports whether item's bucket is compatible with radius on
// every pivot. A false answer proves d(q, item) > radius.
func (idx *CompactPivots[T]) MustReviewItem(item int, radius float64, ctx QueryContext) bool {
	pq, ok := ctx.(*pivotQuery)
	if !ok {
		return true
	}
	for i, dqp := range pq.dqp {
		sym := idx.seqs[i].Access(item)
		if sym < Discretize(dqp-radius, idx.stddev[i]) || sym > Discretize(dqp+radius, idx.stddev[i]) {
			return false
		}
	}
	return true
}

var compactPivotsMagic = [4]byte{'C', 'P', 'I', 'V'}

// WriteTo serializes the index.
//
// The serialization format is:
// 1. Magic number "CPIV" (4 bytes) + version (4 bytes)
// 2. Search pivots (4 bytes, int32)
// 3. Pivot sample: database length, pivot count, pivot ids (int32 each)
// 4. One tagged sequence per pivot, in pivot order
// 5. Standard deviations (float32 per pivot)
func (idx *CompactPivots[T]) WriteTo(w io.Writer) (int64, error) {
	bw := newBinaryWriter(w)
	if err := bw.writeHeader(compactPivotsMagic); err != nil {
		return bw.n, err
	}
	if err := bw.write(int32(idx.searchPivots)); err != nil {
		return bw.n, fmt.Errorf("failed to write search pivots: %w", err)
	}
	if err := bw.sub(idx.pivots); err != nil {
		return bw.n, fmt.Errorf("failed to write pivot sample: %w", err)
	}
	for i, seq := range idx.seqs {
		if err := bw.sub(taggedSequence{seq}); err != nil {
			return bw.n, fmt.Errorf("failed to write pivot %d sequence: %w", i, err)
		}
	}
	if err := bw.write(idx.stddev); err != nil {
		return bw.n, fmt.Errorf("failed to write standard deviations: %w", err)
	}
	return bw.n, nil
}

// ReadFrom deserializes an index written by WriteTo. The receiver's database
// must be the one the index was built on; its length is checked.
func (idx *CompactPivots[T]) ReadFrom(r io.Reader) (int64, error) {
	br := newBinaryReader(r)
	if err := br.readHeader(compactPivotsMagic); err != nil {
		return br.n, err
	}
	var searchPivots int32
	if err := br.read(&searchPivots); err != nil {
		return br.n, fmt.Errorf("failed to read search pivots: %w", err)
	}
	if searchPivots < 1 {
		return br.n, fmt.Errorf("%w: %d", ErrInvalidSearchPivots, searchPivots)
	}

	var pivots *PivotSample[T]
	if err := br.sub(func(r io.Reader) (n int64, err error) {
		pivots, n, err = readPivotSample(r, idx.db)
		return n, err
	}); err != nil {
		return br.n, fmt.Errorf("failed to read pivot sample: %w", err)
	}

	m := pivots.Len()
	seqs := make([]RankSelectSeq, m)
	for i := range seqs {
		if err := br.sub(func(r io.Reader) (n int64, err error) {
			seqs[i], n, err = LoadSequence(r)
			return n, err
		}); err != nil {
			return br.n, fmt.Errorf("failed to read pivot %d sequence: %w", i, err)
		}
		if seqs[i].Len() != idx.db.Len() {
			return br.n, fmt.Errorf("%w: pivot %d sequence has %d symbols, database has %d objects", ErrDatabaseMismatch, i, seqs[i].Len(), idx.db.Len())
		}
	}

	stddev := make([]float32, m)
	if err := br.read(stddev); err != nil {
		return br.n, fmt.Errorf("failed to read standard deviations: %w", err)
	}
	for i, s := range stddev {
		if !(s > 0) {
			return br.n, fmt.Errorf("%w: pivot %d", ErrDegeneratePivot, i)
		}
	}

	idx.pivots = pivots
	idx.seqs = seqs
	idx.stddev = stddev
	idx.searchPivots = int(searchPivots)
	return br.n, nil
}

// taggedSequence adapts a sequence to io.WriterTo through SaveSequence.
type taggedSequence struct {
	seq RankSelectSeq
}

func (t taggedSequence) WriteTo(w io.Writer) (int64, error) {
	return SaveSequence(w, t.seq)
}
