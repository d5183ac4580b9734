// Package pivotal implements a sequential (brute-force) index for metric search.
//
// WHAT IS A SEQUENTIAL INDEX?
// The sequential index is the brute-force baseline: it computes the distance
// from the query to every object. It stores nothing but a reference to the
// database, so it is also the reference every other index is measured
// against.
//
// TIME COMPLEXITY:
//   - Build: O(1)
//   - Search: O(n) distance evaluations
//
// GUARANTEES & TRADE-OFFS:
// ✓ Pros:
//   - 100% recall
//   - No memory beyond the database
//
// ✗ Cons:
//   - Every query pays n distance evaluations
package pivotal

import (
	"fmt"
	"io"
)

// Compile-time check to ensure Sequential implements Index
var _ Index[int] = (*Sequential[int])(nil)

// Sequential is a brute-force index.
type Sequential[T any] struct {
	db   MetricDB[T]
	cost costCounter
}

// NewSequential creates a sequential index over db.
func NewSequential[T any](db MetricDB[T]) *Sequential[T] {
	return &Sequential[T]{db: db}
}

func (idx *Sequential[T]) Kind() IndexKind {
	return SequentialKind
}

func (idx *Sequential[T]) DB() MetricDB[T] {
	return idx.db
}

func (idx *Sequential[T]) Cost() SearchCost {
	return idx.cost.snapshot()
}

func (idx *Sequential[T]) dist(q T, item int) float64 {
	idx.cost.external.Add(1)
	return idx.db.Dist(q, idx.db.At(item))
}

// SearchRange compares q against every object.
func (idx *Sequential[T]) SearchRange(q T, radius float64) *Result {
	res := NewResult(0)
	for i := 0; i < idx.db.Len(); i++ {
		if d := idx.dist(q, i); d <= radius {
			res.Push(i, d)
		}
	}
	return res
}

// SearchKNN compares q against every object.
func (idx *Sequential[T]) SearchKNN(q T, k int, res *Result) *Result {
	if res == nil {
		res = NewResult(k)
	}
	for i := 0; i < idx.db.Len(); i++ {
		res.Push(i, idx.dist(q, i))
	}
	return res
}

var sequentialMagic = [4]byte{'S', 'E', 'Q', 'X'}

// WriteTo writes the magic number, version and database length.
func (idx *Sequential[T]) WriteTo(w io.Writer) (int64, error) {
	bw := newBinaryWriter(w)
	if err := bw.writeHeader(sequentialMagic); err != nil {
		return bw.n, err
	}
	if err := bw.write(uint32(idx.db.Len())); err != nil {
		return bw.n, fmt.Errorf("failed to write database length: %w", err)
	}
	return bw.n, nil
}

// ReadFrom checks that the receiver's database has the persisted length.
func (idx *Sequential[T]) ReadFrom(r io.Reader) (int64, error) {
	br := newBinaryReader(r)
	if err := br.readHeader(sequentialMagic); err != nil {
		return br.n, err
	}
	var n uint32
	if err := br.read(&n); err != nil {
		return br.n, fmt.Errorf("failed to read database length: %w", err)
	}
	if int(n) != idx.db.Len() {
		return br.n, fmt.Errorf("%w: index built on %d objects, database has %d", ErrDatabaseMismatch, n, idx.db.Len())
	}
	return br.n, nil
}
