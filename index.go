package pivotal

import (
	"fmt"
	"io"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring"
)

// IndexKind identifies an index implementation in persisted data.
type IndexKind string

const (
	// SequentialKind compares the query against every object.
	// Provides perfect recall at O(n) distance evaluations per query.
	SequentialKind IndexKind = "sequential"

	// LAESAKind keeps the exact distance of every object to a few pivots and
	// prunes with the triangle inequality.
	LAESAKind IndexKind = "laesa"

	// CompactPivotsKind keeps discretized pivot distances inside rank/select sequences.
	CompactPivotsKind IndexKind = "compact-pivots"

	// ListOfClustersKind partitions objects around random centers.
	ListOfClustersKind IndexKind = "list-of-clusters"

	// PolyIndexKind intersects several partial indexes and confirms with a pivot filter.
	PolyIndexKind IndexKind = "poly"
)

// SearchCost counts distance evaluations performed by queries.
type SearchCost struct {
	// Internal counts distances against index-owned objects: pivots, centers.
	Internal int64

	// External counts distances against candidate objects to confirm them.
	External int64
}

// Total returns Internal + External.
func (c SearchCost) Total() int64 {
	return c.Internal + c.External
}

// costCounter is the atomic backing store of SearchCost, shared by concurrent queries.
type costCounter struct {
	internal atomic.Int64
	external atomic.Int64
}

func (c *costCounter) snapshot() SearchCost {
	return SearchCost{Internal: c.internal.Load(), External: c.external.Load()}
}

// Index answers range and k-nearest-neighbor queries over a MetricDB.
//
// Once built, an Index is immutable and safe for concurrent queries.
type Index[T any] interface {
	// Kind returns the implementation tag used for persistence.
	Kind() IndexKind

	// DB returns the indexed database.
	DB() MetricDB[T]

	// SearchRange returns every object within radius of q.
	SearchRange(q T, radius float64) *Result

	// SearchKNN pushes the k nearest objects to q into res and returns it.
	// A nil res allocates NewResult(k).
	SearchKNN(q T, k int, res *Result) *Result

	// Cost returns the distance evaluations performed by queries so far.
	Cost() SearchCost

	// WriteTo writes the index payload (without kind tag).
	WriteTo(w io.Writer) (int64, error)

	// ReadFrom replaces the index state with a payload written by WriteTo.
	ReadFrom(r io.Reader) (int64, error)
}

// QueryContext is per-query state created by a SingleIndex.
type QueryContext any

// SingleIndex is the confirmation capability: a cheap necessary condition
// evaluated before paying for an exact distance.
type SingleIndex[T any] interface {
	Index[T]

	// CreateQueryContext precomputes whatever MustReviewItem needs for q.
	CreateQueryContext(q T) QueryContext

	// MustReviewItem reports whether item may lie within radius of the
	// context's query. It never returns false for an item that does.
	MustReviewItem(item int, radius float64, ctx QueryContext) bool
}

// AsSingleIndex returns idx's confirmation capability, if it has one.
func AsSingleIndex[T any](idx Index[T]) (SingleIndex[T], bool) {
	single, ok := idx.(SingleIndex[T])
	return single, ok
}

// PartialQuery is a partial index prepared for one query.
type PartialQuery interface {
	// Candidates returns a superset of the objects within radius.
	// The caller owns the returned bitmap.
	Candidates(radius float64) *roaring.Bitmap

	// Admits reports whether item may lie within radius.
	Admits(item int, radius float64) bool

	// Traverse calls fn for every item that may lie within bound(), visiting
	// the most promising regions first. bound is re-read as traversal
	// progresses so a shrinking bound prunes the remaining regions.
	Traverse(bound func() float64, fn func(item int))
}

// PartialIndex is a filter that narrows candidates without confirming them.
type PartialIndex[T any] interface {
	Index[T]

	// PartialQuery prepares the filter for q.
	PartialQuery(q T) PartialQuery

	// Reencode returns a copy whose compact sequences are rebuilt with builder.
	Reencode(builder SequenceBuilder) (PartialIndex[T], error)
}

// SaveIndex writes idx's kind tag followed by its payload, so LoadIndex can
// restore it without knowing the concrete type.
func SaveIndex[T any](w io.Writer, idx Index[T]) (int64, error) {
	bw := newBinaryWriter(w)
	if err := bw.writeString(string(idx.Kind())); err != nil {
		return bw.n, fmt.Errorf("failed to write index kind: %w", err)
	}
	if err := bw.sub(idx); err != nil {
		return bw.n, fmt.Errorf("failed to write %s index: %w", idx.Kind(), err)
	}
	return bw.n, nil
}

// LoadIndex reads an index written by SaveIndex and binds it to db.
func LoadIndex[T any](r io.Reader, db MetricDB[T]) (Index[T], int64, error) {
	br := newBinaryReader(r)
	tag, err := br.readString()
	if err != nil {
		return nil, br.n, fmt.Errorf("failed to read index kind: %w", err)
	}
	idx, err := newIndexOfKind(IndexKind(tag), db)
	if err != nil {
		return nil, br.n, err
	}
	if err := br.sub(idx.ReadFrom); err != nil {
		return nil, br.n, fmt.Errorf("failed to read %s index: %w", tag, err)
	}
	return idx, br.n, nil
}

// newIndexOfKind is the registry of persisted index kinds.
func newIndexOfKind[T any](kind IndexKind, db MetricDB[T]) (Index[T], error) {
	switch kind {
	case SequentialKind:
		return NewSequential(db), nil
	case LAESAKind:
		return NewLAESA(db), nil
	case CompactPivotsKind:
		return NewCompactPivots(db), nil
	case ListOfClustersKind:
		return NewListOfClusters(db), nil
	case PolyIndexKind:
		return NewPolyIndex(db), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownIndexKind, kind)
	}
}

// taggedIndex adapts an index to io.WriterTo through SaveIndex.
type taggedIndex[T any] struct {
	idx Index[T]
}

func (t taggedIndex[T]) WriteTo(w io.Writer) (int64, error) {
	return SaveIndex(w, t.idx)
}

// Tagged returns an io.WriterTo that writes idx the way SaveIndex does.
// Use it to store an index with SaveFile.
func Tagged[T any](idx Index[T]) io.WriterTo {
	return taggedIndex[T]{idx: idx}
}
