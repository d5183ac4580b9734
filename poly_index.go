// Package pivotal implements a composite index that intersects partial filters.
//
// WHAT IS A POLY INDEX?
// A PolyIndex combines several partial indexes (typically lists of clusters
// built with different seeds) with one confirmation index:
//
//  1. Every partial index proposes a candidate superset for the query
//  2. The candidate sets are intersected
//  3. Survivors must pass every partial index's item-level test
//  4. Survivors must pass the confirmation index's cheap necessary condition
//  5. Survivors are confirmed with the exact distance
//
// Each stage only discards objects that provably lie outside the search
// radius, so the composite is exact. The default confirmation index is a
// LAESA table with one pivot per partial index.
package pivotal

import (
	"fmt"
	"io"
)

// Compile-time check to ensure PolyIndex implements Index
var _ Index[int] = (*PolyIndex[int])(nil)

// PolyIndex intersects partial indexes and confirms with a pivot filter.
type PolyIndex[T any] struct {
	db       MetricDB[T]
	partials []PartialIndex[T]
	confirm  Index[T]

	// single is confirm's confirmation capability, nil when it has none.
	single SingleIndex[T]

	// cost.external counts the composite's own exact distances.
	cost costCounter
}

// NewPolyIndex returns an empty index bound to db, ready for ReadFrom.
func NewPolyIndex[T any](db MetricDB[T]) *PolyIndex[T] {
	return &PolyIndex[T]{db: db}
}

// usedInstances resolves maxInstances against the number of partial indexes.
func usedInstances(available, maxInstances int) (int, error) {
	if maxInstances < 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidInstanceCount, maxInstances)
	}
	if maxInstances == 0 || maxInstances > available {
		return available, nil
	}
	return maxInstances, nil
}

// BuildPolyIndex combines the first maxInstances partial indexes (0 uses
// all of them) with a LAESA confirmation index holding one pivot per partial
// index used. opts configure the LAESA build and, through
// WithSequenceBuilder, re-encode the partial indexes.
func BuildPolyIndex[T any](partials []PartialIndex[T], maxInstances int, opts ...BuildOption) (*PolyIndex[T], error) {
	if len(partials) == 0 {
		return nil, ErrNoPartialIndexes
	}
	used, err := usedInstances(len(partials), maxInstances)
	if err != nil {
		return nil, err
	}
	confirm, err := BuildLAESA(partials[0].DB(), used, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build confirmation index: %w", err)
	}
	return BuildPolyIndexWith(partials, maxInstances, confirm, opts...)
}

// BuildPolyIndexWith combines the first maxInstances partial indexes (0
// uses all of them) with an explicit confirmation index. When confirm is a
// SingleIndex its MustReviewItem gates every exact distance; otherwise
// candidates go straight to the exact distance.
//
// All indexes must share a database of the same length. When
// WithSequenceBuilder is given, each partial index is replaced by a copy
// re-encoded with that builder.
func BuildPolyIndexWith[T any](partials []PartialIndex[T], maxInstances int, confirm Index[T], opts ...BuildOption) (*PolyIndex[T], error) {
	if len(partials) == 0 {
		return nil, ErrNoPartialIndexes
	}
	used, err := usedInstances(len(partials), maxInstances)
	if err != nil {
		return nil, err
	}
	cfg := newBuildConfig(opts)

	db := partials[0].DB()
	kept := make([]PartialIndex[T], used)
	for i, p := range partials[:used] {
		if p.DB().Len() != db.Len() {
			return nil, fmt.Errorf("%w: partial index %d covers %d objects, expected %d", ErrDatabaseMismatch, i, p.DB().Len(), db.Len())
		}
		if cfg.seqExplicit {
			p, err = p.Reencode(cfg.seqBuilder)
			if err != nil {
				return nil, fmt.Errorf("failed to re-encode partial index %d: %w", i, err)
			}
		}
		kept[i] = p
	}
	if confirm.DB().Len() != db.Len() {
		return nil, fmt.Errorf("%w: confirmation index covers %d objects, expected %d", ErrDatabaseMismatch, confirm.DB().Len(), db.Len())
	}

	idx := &PolyIndex[T]{db: db, partials: kept}
	idx.setConfirm(confirm)
	cfg.logger.WithKind(PolyIndexKind).Info("composite assembled",
		"partials", used,
		"confirm", string(confirm.Kind()),
		"single", idx.single != nil,
	)
	return idx, nil
}

func (idx *PolyIndex[T]) setConfirm(confirm Index[T]) {
	idx.confirm = confirm
	idx.single, _ = AsSingleIndex(confirm)
}

func (idx *PolyIndex[T]) Kind() IndexKind {
	return PolyIndexKind
}

func (idx *PolyIndex[T]) DB() MetricDB[T] {
	return idx.db
}

// Partials returns the partial indexes in use.
func (idx *PolyIndex[T]) Partials() []PartialIndex[T] {
	return append([]PartialIndex[T](nil), idx.partials...)
}

// Confirm returns the confirmation index.
func (idx *PolyIndex[T]) Confirm() Index[T] {
	return idx.confirm
}

// Cost returns the internal distances of every partial and confirmation
// index, and the exact distances computed by the composite itself.
func (idx *PolyIndex[T]) Cost() SearchCost {
	var internal int64
	for _, p := range idx.partials {
		internal += p.Cost().Internal
	}
	internal += idx.confirm.Cost().Internal
	return SearchCost{Internal: internal, External: idx.cost.external.Load()}
}

var polyIndexMagic = [4]byte{'P', 'O', 'L', 'Y'}

// WriteTo serializes the index.
//
// The serialization format is:
// 1. Magic number "POLY" (4 bytes) + version (4 bytes)
// 2. Number of partial indexes (4 bytes)
// 3. Every partial index as a tagged blob (kind + payload)
// 4. The confirmation index as a tagged blob
func (idx *PolyIndex[T]) WriteTo(w io.Writer) (int64, error) {
	bw := newBinaryWriter(w)
	if err := bw.writeHeader(polyIndexMagic); err != nil {
		return bw.n, err
	}
	if err := bw.write(uint32(len(idx.partials))); err != nil {
		return bw.n, fmt.Errorf("failed to write partial count: %w", err)
	}
	for i, p := range idx.partials {
		if err := bw.sub(Tagged[T](p)); err != nil {
			return bw.n, fmt.Errorf("failed to write partial index %d: %w", i, err)
		}
	}
	if err := bw.sub(Tagged(idx.confirm)); err != nil {
		return bw.n, fmt.Errorf("failed to write confirmation index: %w", err)
	}
	return bw.n, nil
}

// maxPartials bounds the persisted partial count.
const maxPartials = 1 << 12

func (idx *PolyIndex[T]) ReadFrom(r io.Reader) (int64, error) {
	br := newBinaryReader(r)
	if err := br.readHeader(polyIndexMagic); err != nil {
		return br.n, err
	}
	var count uint32
	if err := br.read(&count); err != nil {
		return br.n, fmt.Errorf("failed to read partial count: %w", err)
	}
	if count == 0 {
		return br.n, ErrNoPartialIndexes
	}
	if count > maxPartials {
		return br.n, fmt.Errorf("partial count %d exceeds limit %d", count, maxPartials)
	}

	load := func() (Index[T], error) {
		var loaded Index[T]
		err := br.sub(func(r io.Reader) (n int64, err error) {
			loaded, n, err = LoadIndex(r, idx.db)
			return n, err
		})
		return loaded, err
	}

	partials := make([]PartialIndex[T], count)
	for i := range partials {
		loaded, err := load()
		if err != nil {
			return br.n, fmt.Errorf("failed to read partial index %d: %w", i, err)
		}
		p, ok := loaded.(PartialIndex[T])
		if !ok {
			return br.n, fmt.Errorf("%w: partial index %d is %s", ErrNotPartialIndex, i, loaded.Kind())
		}
		partials[i] = p
	}
	confirm, err := load()
	if err != nil {
		return br.n, fmt.Errorf("failed to read confirmation index: %w", err)
	}

	idx.partials = partials
	idx.setConfirm(confirm)
	return br.n, nil
}
