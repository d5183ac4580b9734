package pivotal

import (
	"fmt"
	"io"
	"math/rand/v2"
)

// PivotSample is an ordered subset of database objects used as pivots or
// centers. Position i of the sample refers to database position ID(i).
type PivotSample[T any] struct {
	db  MetricDB[T]
	ids []int
}

// SamplePivots draws m distinct objects from db, uniformly at random.
func SamplePivots[T any](db MetricDB[T], m int, rng *rand.Rand) (*PivotSample[T], error) {
	n := db.Len()
	if m < 1 || m > n {
		return nil, fmt.Errorf("%w: %d pivots requested from %d objects", ErrInvalidPivotCount, m, n)
	}
	// Partial Fisher-Yates over the first m slots.
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	for i := 0; i < m; i++ {
		j := i + rng.IntN(n-i)
		perm[i], perm[j] = perm[j], perm[i]
	}
	return &PivotSample[T]{db: db, ids: perm[:m:m]}, nil
}

// NewPivotSample builds a sample from explicit database positions.
func NewPivotSample[T any](db MetricDB[T], ids []int) (*PivotSample[T], error) {
	n := db.Len()
	if len(ids) < 1 || len(ids) > n {
		return nil, fmt.Errorf("%w: %d pivots for %d objects", ErrInvalidPivotCount, len(ids), n)
	}
	seen := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		if id < 0 || id >= n {
			return nil, fmt.Errorf("%w: pivot id %d outside [0, %d)", ErrInvalidPivotCount, id, n)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: duplicate pivot id %d", ErrInvalidPivotCount, id)
		}
		seen[id] = struct{}{}
	}
	return &PivotSample[T]{db: db, ids: append([]int(nil), ids...)}, nil
}

// Len returns the number of pivots.
func (s *PivotSample[T]) Len() int {
	return len(s.ids)
}

// ID returns the database position of pivot i.
func (s *PivotSample[T]) ID(i int) int {
	return s.ids[i]
}

// At returns pivot i.
func (s *PivotSample[T]) At(i int) T {
	return s.db.At(s.ids[i])
}

// IDs returns a copy of the database positions of all pivots.
func (s *PivotSample[T]) IDs() []int {
	return append([]int(nil), s.ids...)
}

// Prefix returns the sample made of the first m pivots.
func (s *PivotSample[T]) Prefix(m int) *PivotSample[T] {
	return &PivotSample[T]{db: s.db, ids: s.ids[:m:m]}
}

// WriteTo writes the database length followed by the pivot positions.
// The database itself is not written; it is a reference resolved on load.
func (s *PivotSample[T]) WriteTo(w io.Writer) (int64, error) {
	bw := newBinaryWriter(w)
	if err := bw.write(uint32(s.db.Len())); err != nil {
		return bw.n, fmt.Errorf("failed to write database length: %w", err)
	}
	if err := bw.write(uint32(len(s.ids))); err != nil {
		return bw.n, fmt.Errorf("failed to write pivot count: %w", err)
	}
	ids := make([]int32, len(s.ids))
	for i, id := range s.ids {
		ids[i] = int32(id)
	}
	if err := bw.write(ids); err != nil {
		return bw.n, fmt.Errorf("failed to write pivot ids: %w", err)
	}
	return bw.n, nil
}

// readPivotSample reads a sample written by WriteTo and binds it to db.
func readPivotSample[T any](r io.Reader, db MetricDB[T]) (*PivotSample[T], int64, error) {
	br := newBinaryReader(r)
	var n, m uint32
	if err := br.read(&n); err != nil {
		return nil, br.n, fmt.Errorf("failed to read database length: %w", err)
	}
	if int(n) != db.Len() {
		return nil, br.n, fmt.Errorf("%w: sample built on %d objects, database has %d", ErrDatabaseMismatch, n, db.Len())
	}
	if err := br.read(&m); err != nil {
		return nil, br.n, fmt.Errorf("failed to read pivot count: %w", err)
	}
	if m < 1 || m > n {
		return nil, br.n, fmt.Errorf("%w: %d pivots for %d objects", ErrInvalidPivotCount, m, n)
	}
	raw := make([]int32, m)
	if err := br.read(raw); err != nil {
		return nil, br.n, fmt.Errorf("failed to read pivot ids: %w", err)
	}
	ids := make([]int, m)
	for i, id := range raw {
		ids[i] = int(id)
	}
	sample, err := NewPivotSample(db, ids)
	if err != nil {
		return nil, br.n, err
	}
	return sample, br.n, nil
}

// newRand returns the deterministic generator used for sampling.
func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
