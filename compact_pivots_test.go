package pivotal

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// constDB is a database whose objects are all at the same distance from each other.
type constDB struct{ n int }

func (db constDB) Len() int              { return db.n }
func (db constDB) At(i int) int          { return i }
func (db constDB) Dist(a, b int) float64 { return 1 }

func TestDiscretize(t *testing.T) {
	tests := []struct {
		name   string
		d      float64
		stddev float32
		want   int
	}{
		{name: "zero", d: 0, stddev: 1, want: 0},
		{name: "inside first bucket", d: 0.99, stddev: 1, want: 0},
		{name: "bucket boundary", d: 2, stddev: 0.5, want: 4},
		{name: "negative", d: -3, stddev: 1, want: 0},
		{name: "nan", d: math.NaN(), stddev: 1, want: 0},
		{name: "zero stddev", d: 5, stddev: 0, want: 0},
		{name: "negative stddev", d: 5, stddev: -1, want: 0},
		{name: "clamped", d: 1e9, stddev: 1, want: MaxSymbol},
		{name: "infinite", d: math.Inf(1), stddev: 1, want: MaxSymbol},
		{name: "minus infinity", d: math.Inf(-1), stddev: 1, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Discretize(tt.d, tt.stddev))
		})
	}
}

func TestDiscretizeMonotone(t *testing.T) {
	prev := 0
	for d := 0.0; d < 50; d += 0.037 {
		sym := Discretize(d, 0.3)
		assert.GreaterOrEqual(t, sym, prev)
		prev = sym
	}
}

func TestBuildCompactPivotsErrors(t *testing.T) {
	db := randomVectorDB(t, 20, 2, Euclidean, 1)
	tests := []struct {
		name         string
		numPivots    int
		searchPivots int
		wantErr      error
	}{
		{name: "zero pivots", numPivots: 0, searchPivots: 1, wantErr: ErrInvalidPivotCount},
		{name: "too many pivots", numPivots: 21, searchPivots: 1, wantErr: ErrInvalidPivotCount},
		{name: "zero search pivots", numPivots: 4, searchPivots: 0, wantErr: ErrInvalidSearchPivots},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildCompactPivots[[]float32](db, tt.numPivots, tt.searchPivots)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("degenerate pivot", func(t *testing.T) {
		// Every pivot sees itself at 1 too, so the deviation is zero.
		_, err := BuildCompactPivots[int](constDB{n: 10}, 2, 2)
		assert.ErrorIs(t, err, ErrDegeneratePivot)
	})
}

// TestCompactPivotsPartition checks that every pivot's buckets partition the database.
func TestCompactPivotsPartition(t *testing.T) {
	db := randomVectorDB(t, 300, 3, Euclidean, 2)
	idx, err := BuildCompactPivots[[]float32](db, 6, 6)
	require.NoError(t, err)
	require.Equal(t, 6, idx.NumPivots())

	for i := 0; i < idx.NumPivots(); i++ {
		seq := idx.Sequence(i)
		assert.Equal(t, db.Len(), seq.Len())
		total := 0
		for s := 0; s < seq.Sigma(); s++ {
			total += seq.Unravel(s).Count1()
		}
		assert.Equal(t, db.Len(), total)

		// Each object's symbol is its discretized pivot distance.
		pivot := idx.Pivots().At(i)
		for x := 0; x < db.Len(); x += 37 {
			want := Discretize(db.Dist(pivot, db.At(x)), idx.StdDev(i))
			assert.Equal(t, want, seq.Access(x))
		}
	}
}

// TestCompactPivotsExact checks agreement with a sequential scan when every pivot is consulted.
func TestCompactPivotsExact(t *testing.T) {
	for _, kind := range []DistanceKind{Euclidean, Manhattan, Chebyshev} {
		t.Run(string(kind), func(t *testing.T) {
			db := randomVectorDB(t, 200, 4, kind, 3)
			idx, err := BuildCompactPivots[[]float32](db, 8, 8)
			require.NoError(t, err)
			scan := NewSequential[[]float32](db)

			for _, q := range randomQueries(20, 4, 4) {
				for _, k := range []int{1, 5, 17} {
					want := scan.SearchKNN(q, k, nil)
					got := idx.SearchKNN(q, k, nil)
					assert.Equal(t, want.Items(), got.Items(), "k=%d", k)
				}
				r := kthDistance[[]float32](db, q, 10)
				assert.Equal(t, sortedIDs(scan.SearchRange(q, r)), sortedIDs(idx.SearchRange(q, r)))
			}
		})
	}
}

// TestCompactPivotsFewerSearchPivots checks soundness when only some pivots are consulted.
func TestCompactPivotsFewerSearchPivots(t *testing.T) {
	db := randomVectorDB(t, 400, 3, Euclidean, 5)
	idx, err := BuildCompactPivots[[]float32](db, 12, 3)
	require.NoError(t, err)
	scan := NewSequential[[]float32](db)

	for _, q := range randomQueries(15, 3, 6) {
		r := kthDistance[[]float32](db, q, 8)
		want := scan.SearchRange(q, r)
		got := idx.SearchRange(q, r)
		// Range search stays exact: consulting fewer pivots only admits more candidates.
		assert.Equal(t, sortedIDs(want), sortedIDs(got))

		knn := idx.SearchKNN(q, 8, nil)
		assert.LessOrEqual(t, knn.Len(), 8)
		for _, it := range knn.Items() {
			assert.InDelta(t, db.Dist(q, db.At(it.ID)), it.Dist, 1e-12, "reported distance is exact")
		}
	}
}

// TestCompactPivotsFiveNearest reproduces the 1000-point 5-NN scenario.
func TestCompactPivotsFiveNearest(t *testing.T) {
	db := randomVectorDB(t, 1000, 2, Euclidean, 7)
	idx, err := BuildCompactPivots[[]float32](db, 20, 20)
	require.NoError(t, err)

	q := []float32{0.5, 0.5}
	want := NewSequential[[]float32](db).SearchKNN(q, 5, nil)
	r := want.Items()[4].Dist

	got := idx.SearchRange(q, r)
	assert.Equal(t, sortedIDs(want), sortedIDs(got))
	assert.Equal(t, want.Items(), idx.SearchKNN(q, 5, nil).Items())
}

func TestCompactPivotsSearchKNNIntoResult(t *testing.T) {
	db := randomVectorDB(t, 100, 2, Euclidean, 8)
	idx, err := BuildCompactPivots[[]float32](db, 5, 5)
	require.NoError(t, err)

	res := NewResult(3)
	res.Push(-1, 0)
	out := idx.SearchKNN([]float32{0.2, 0.2}, 3, res)
	assert.Same(t, res, out)
	assert.Equal(t, -1, out.IDs()[0], "pre-existing items compete")
	assert.Equal(t, 3, out.Len())
}

func TestCompactPivotsCost(t *testing.T) {
	db := randomVectorDB(t, 150, 2, Euclidean, 9)
	idx, err := BuildCompactPivots[[]float32](db, 10, 10)
	require.NoError(t, err)
	assert.Equal(t, SearchCost{}, idx.Cost())

	idx.SearchRange([]float32{0.5, 0.5}, 0.05)
	cost := idx.Cost()
	assert.Equal(t, int64(10), cost.Internal)
	assert.Less(t, cost.External, int64(db.Len()))
	assert.Equal(t, cost.Internal+cost.External, cost.Total())
}

func TestCompactPivotsMustReviewItem(t *testing.T) {
	db := randomVectorDB(t, 250, 3, Euclidean, 10)
	idx, err := BuildCompactPivots[[]float32](db, 7, 7)
	require.NoError(t, err)

	for _, q := range randomQueries(10, 3, 11) {
		ctx := idx.CreateQueryContext(q)
		r := kthDistance[[]float32](db, q, 12)
		rejected := 0
		for x := 0; x < db.Len(); x++ {
			review := idx.MustReviewItem(x, r, ctx)
			if db.Dist(q, db.At(x)) <= r {
				assert.True(t, review, "item %d within radius must be reviewed", x)
			}
			if !review {
				rejected++
			}
		}
		assert.Positive(t, rejected)
	}
	assert.True(t, idx.MustReviewItem(0, 0, "foreign context"))
}

func TestCompactPivotsWriteRead(t *testing.T) {
	db := randomVectorDB(t, 200, 3, Euclidean, 12)
	for _, sb := range sequenceBuilders {
		t.Run(sb.name, func(t *testing.T) {
			idx, err := BuildCompactPivots[[]float32](db, 6, 4, WithSequenceBuilder(sb.builder))
			require.NoError(t, err)

			var buf bytes.Buffer
			n, err := idx.WriteTo(&buf)
			require.NoError(t, err)
			assert.Equal(t, int64(buf.Len()), n)

			loaded := NewCompactPivots[[]float32](db)
			m, err := loaded.ReadFrom(bytes.NewReader(buf.Bytes()))
			require.NoError(t, err)
			assert.Equal(t, n, m)
			assert.Equal(t, idx.NumPivots(), loaded.NumPivots())
			assert.Equal(t, idx.SearchPivots(), loaded.SearchPivots())
			assert.Equal(t, idx.Pivots().IDs(), loaded.Pivots().IDs())
			assert.Equal(t, sb.kind, loaded.Sequence(0).Kind())

			for _, q := range randomQueries(5, 3, 13) {
				assert.Equal(t, idx.SearchKNN(q, 6, nil).Items(), loaded.SearchKNN(q, 6, nil).Items())
				assert.Equal(t, sortedIDs(idx.SearchRange(q, 0.2)), sortedIDs(loaded.SearchRange(q, 0.2)))
			}

			var again bytes.Buffer
			_, err = loaded.WriteTo(&again)
			require.NoError(t, err)
			assert.Equal(t, buf.Bytes(), again.Bytes())
		})
	}
}

func TestCompactPivotsReadFromErrors(t *testing.T) {
	db := randomVectorDB(t, 50, 2, Euclidean, 14)
	idx, err := BuildCompactPivots[[]float32](db, 4, 4)
	require.NoError(t, err)
	var buf bytes.Buffer
	_, err = idx.WriteTo(&buf)
	require.NoError(t, err)

	t.Run("other database", func(t *testing.T) {
		other := randomVectorDB(t, 49, 2, Euclidean, 14)
		_, err := NewCompactPivots[[]float32](other).ReadFrom(bytes.NewReader(buf.Bytes()))
		assert.ErrorIs(t, err, ErrDatabaseMismatch)
	})

	t.Run("truncated leaves receiver unchanged", func(t *testing.T) {
		target := NewCompactPivots[[]float32](db)
		_, err := target.ReadFrom(bytes.NewReader(buf.Bytes()[:buf.Len()-2]))
		require.Error(t, err)
		assert.Equal(t, 0, target.NumPivots())
	})

	t.Run("wrong magic", func(t *testing.T) {
		_, err := NewLAESA[[]float32](db).ReadFrom(bytes.NewReader(buf.Bytes()))
		assert.ErrorIs(t, err, ErrInvalidMagic)
	})
}

// TestCompactPivotsDeterministic checks byte-identical builds for a seed, at any parallelism.
func TestCompactPivotsDeterministic(t *testing.T) {
	db := randomVectorDB(t, 300, 4, Euclidean, 15)
	encode := func(opts ...BuildOption) []byte {
		idx, err := BuildCompactPivots[[]float32](db, 9, 5, opts...)
		require.NoError(t, err)
		var buf bytes.Buffer
		_, err = idx.WriteTo(&buf)
		require.NoError(t, err)
		return buf.Bytes()
	}

	base := encode(WithSeed(77))
	assert.Equal(t, base, encode(WithSeed(77)))
	assert.Equal(t, base, encode(WithSeed(77), WithParallelism(4)))
	assert.Equal(t, base, encode(WithSeed(77), WithParallelism(0)))
	assert.NotEqual(t, base, encode(WithSeed(78)))
}

func TestDownsampleCompactPivots(t *testing.T) {
	db := randomVectorDB(t, 250, 3, Euclidean, 16)
	src, err := BuildCompactPivots[[]float32](db, 10, 10)
	require.NoError(t, err)

	t.Run("keeps prefix", func(t *testing.T) {
		small, err := DownsampleCompactPivots(src, 4, 4, nil)
		require.NoError(t, err)
		assert.Equal(t, 4, small.NumPivots())
		assert.Equal(t, src.Pivots().IDs()[:4], small.Pivots().IDs())
		for i := 0; i < 4; i++ {
			assert.Equal(t, src.StdDev(i), small.StdDev(i))
			assert.Same(t, src.Sequence(i), small.Sequence(i))
		}
		scan := NewSequential[[]float32](db)
		for _, q := range randomQueries(5, 3, 17) {
			assert.Equal(t, scan.SearchKNN(q, 5, nil).Items(), small.SearchKNN(q, 5, nil).Items())
		}
	})

	t.Run("re-encodes", func(t *testing.T) {
		packed, err := DownsampleCompactPivots(src, 3, 2, BuildPackedSeq)
		require.NoError(t, err)
		for i := 0; i < 3; i++ {
			seq := packed.Sequence(i)
			assert.Equal(t, PackedSequence, seq.Kind())
			for x := 0; x < db.Len(); x += 13 {
				assert.Equal(t, src.Sequence(i).Access(x), seq.Access(x))
			}
		}
	})

	t.Run("invalid counts", func(t *testing.T) {
		_, err := DownsampleCompactPivots(src, 11, 1, nil)
		assert.ErrorIs(t, err, ErrInvalidPivotCount)
		_, err = DownsampleCompactPivots(src, 0, 1, nil)
		assert.ErrorIs(t, err, ErrInvalidPivotCount)
		_, err = DownsampleCompactPivots(src, 2, 0, nil)
		assert.ErrorIs(t, err, ErrInvalidSearchPivots)
	})
}

func TestBucketCursorFarQuery(t *testing.T) {
	seq, err := BuildInvertedSeq([]int{0, 1, 2, 1, 0}, 3)
	require.NoError(t, err)
	res := NewResult(0)
	// The query bucket lies beyond the alphabet; the cursor starts at the last real bucket.
	c := newBucketCursor(seq, 1, 10.5, 10, res)

	var seen []int
	for {
		bm, ok := c.Next()
		if !ok {
			break
		}
		bm.Iterate(func(pos int) bool {
			seen = append(seen, pos)
			return true
		})
	}
	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4}, seen)
}
