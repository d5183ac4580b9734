package pivotal

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVectorDB(t *testing.T) {
	tests := []struct {
		name    string
		dim     int
		kind    DistanceKind
		wantErr error
	}{
		{name: "valid", dim: 8, kind: Euclidean},
		{name: "zero dimension", dim: 0, kind: Euclidean, wantErr: ErrInvalidDimension},
		{name: "negative dimension", dim: -3, kind: Manhattan, wantErr: ErrInvalidDimension},
		{name: "unknown distance", dim: 4, kind: "hamming", wantErr: ErrUnknownDistanceKind},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, err := NewVectorDB(tt.dim, tt.kind)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.dim, db.Dimensions())
			assert.Equal(t, tt.kind, db.DistanceKind())
			assert.Equal(t, 0, db.Len())
		})
	}
}

func TestVectorDBAdd(t *testing.T) {
	db, err := NewVectorDB(2, Euclidean)
	require.NoError(t, err)

	id, err := db.Add([]float32{1, 2})
	require.NoError(t, err)
	assert.Equal(t, 0, id)

	src := []float32{3, 4}
	id, err = db.Add(src)
	require.NoError(t, err)
	assert.Equal(t, 1, id)
	src[0] = 99
	assert.Equal(t, []float32{3, 4}, db.At(1), "Add must copy the vector")

	_, err = db.Add([]float32{1, 2, 3})
	var mismatch *ErrDimensionMismatch
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 2, mismatch.Expected)
	assert.Equal(t, 3, mismatch.Actual)

	assert.InDelta(t, 2.8284271, db.Dist(db.At(0), db.At(1)), 1e-6)
}

func TestVectorDBHalfPrecision(t *testing.T) {
	db, err := NewVectorDB(3, Euclidean, WithHalfPrecision())
	require.NoError(t, err)
	assert.Equal(t, HalfPrecision, db.Precision())

	_, err = db.Add([]float32{0.5, -1.25, 3})
	require.NoError(t, err)
	_, err = db.Add([]float32{0.1, 0.2, 0.3})
	require.NoError(t, err)

	// Values representable in float16 decode exactly.
	assert.Equal(t, []float32{0.5, -1.25, 3}, db.At(0))
	// Others decode within float16 precision.
	got := db.At(1)
	for i, want := range []float32{0.1, 0.2, 0.3} {
		assert.InDelta(t, want, got[i], 1e-3)
	}
}

func TestVectorDBWriteReadRoundTrip(t *testing.T) {
	for _, opts := range [][]VectorDBOption{nil, {WithHalfPrecision()}} {
		db, err := NewVectorDB(4, Manhattan, opts...)
		require.NoError(t, err)
		for _, q := range randomQueries(25, 4, 9) {
			_, err := db.Add(q)
			require.NoError(t, err)
		}

		var buf bytes.Buffer
		n, err := db.WriteTo(&buf)
		require.NoError(t, err)
		assert.Equal(t, int64(buf.Len()), n)

		loaded := new(VectorDB)
		m, err := loaded.ReadFrom(&buf)
		require.NoError(t, err)
		assert.Equal(t, n, m)
		assert.Equal(t, db.Len(), loaded.Len())
		assert.Equal(t, db.Dimensions(), loaded.Dimensions())
		assert.Equal(t, db.DistanceKind(), loaded.DistanceKind())
		assert.Equal(t, db.Precision(), loaded.Precision())
		for i := 0; i < db.Len(); i++ {
			assert.Equal(t, db.At(i), loaded.At(i))
		}
	}
}

func TestVectorDBReadFromInvalid(t *testing.T) {
	db := randomVectorDB(t, 5, 2, Euclidean, 1)
	var buf bytes.Buffer
	_, err := db.WriteTo(&buf)
	require.NoError(t, err)
	data := buf.Bytes()

	t.Run("bad magic", func(t *testing.T) {
		corrupt := append([]byte(nil), data...)
		corrupt[0] = 'X'
		_, err := new(VectorDB).ReadFrom(bytes.NewReader(corrupt))
		assert.ErrorIs(t, err, ErrInvalidMagic)
	})

	t.Run("bad version", func(t *testing.T) {
		corrupt := append([]byte(nil), data...)
		corrupt[4] = 9
		_, err := new(VectorDB).ReadFrom(bytes.NewReader(corrupt))
		assert.ErrorIs(t, err, ErrUnsupportedVersion)
	})

	t.Run("truncated keeps receiver", func(t *testing.T) {
		target := randomVectorDB(t, 3, 2, Euclidean, 2)
		before := target.At(0)
		_, err := target.ReadFrom(bytes.NewReader(data[:len(data)-3]))
		require.Error(t, err)
		assert.Equal(t, 3, target.Len())
		assert.Equal(t, before, target.At(0))
	})
}
