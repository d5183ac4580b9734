package pivotal

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSamplePivots(t *testing.T) {
	db := randomVectorDB(t, 50, 2, Euclidean, 90)

	s, err := SamplePivots[[]float32](db, 10, newRand(1))
	require.NoError(t, err)
	assert.Equal(t, 10, s.Len())
	seen := make(map[int]struct{})
	for i := 0; i < s.Len(); i++ {
		id := s.ID(i)
		assert.GreaterOrEqual(t, id, 0)
		assert.Less(t, id, db.Len())
		assert.NotContains(t, seen, id)
		seen[id] = struct{}{}
		assert.Equal(t, db.At(id), s.At(i))
	}

	again, err := SamplePivots[[]float32](db, 10, newRand(1))
	require.NoError(t, err)
	assert.Equal(t, s.IDs(), again.IDs())

	all, err := SamplePivots[[]float32](db, 50, newRand(2))
	require.NoError(t, err)
	assert.ElementsMatch(t, sortedRange(50), all.IDs())

	for _, m := range []int{0, 51} {
		_, err := SamplePivots[[]float32](db, m, newRand(1))
		assert.ErrorIs(t, err, ErrInvalidPivotCount)
	}
}

func sortedRange(n int) []int {
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i
	}
	return ids
}

func TestNewPivotSample(t *testing.T) {
	db := randomVectorDB(t, 20, 2, Euclidean, 91)

	s, err := NewPivotSample[[]float32](db, []int{4, 2, 9})
	require.NoError(t, err)
	assert.Equal(t, []int{4, 2}, s.Prefix(2).IDs())

	for _, ids := range [][]int{nil, {1, 1}, {-1}, {20}} {
		_, err := NewPivotSample[[]float32](db, ids)
		assert.ErrorIs(t, err, ErrInvalidPivotCount, "ids %v", ids)
	}
}

func TestPivotSampleWriteRead(t *testing.T) {
	db := randomVectorDB(t, 20, 2, Euclidean, 92)
	s, err := NewPivotSample[[]float32](db, []int{7, 3, 11})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = s.WriteTo(&buf)
	require.NoError(t, err)
	data := buf.Bytes()

	loaded, _, err := readPivotSample[[]float32](bytes.NewReader(data), db)
	require.NoError(t, err)
	assert.Equal(t, s.IDs(), loaded.IDs())

	_, _, err = readPivotSample[[]float32](bytes.NewReader(data), randomVectorDB(t, 21, 2, Euclidean, 92))
	assert.ErrorIs(t, err, ErrDatabaseMismatch)
}
