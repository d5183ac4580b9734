package pivotal

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

// randomVectorDB returns n uniform points in [0,1)^dim under kind.
func randomVectorDB(t testing.TB, n, dim int, kind DistanceKind, seed uint64) *VectorDB {
	t.Helper()
	db, err := NewVectorDB(dim, kind)
	require.NoError(t, err)
	rng := newRand(seed)
	for i := 0; i < n; i++ {
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = rng.Float32()
		}
		_, err := db.Add(vec)
		require.NoError(t, err)
	}
	return db
}

// randomQueries returns n query points drawn like randomVectorDB.
func randomQueries(n, dim int, seed uint64) [][]float32 {
	rng := newRand(seed)
	queries := make([][]float32, n)
	for i := range queries {
		queries[i] = make([]float32, dim)
		for j := range queries[i] {
			queries[i][j] = rng.Float32()
		}
	}
	return queries
}

// sortedIDs returns the ids of res in ascending id order.
func sortedIDs(res *Result) []int {
	ids := res.IDs()
	sort.Ints(ids)
	return ids
}

// kthDistance returns the distance of the k-th nearest neighbor of q.
func kthDistance[T any](db MetricDB[T], q T, k int) float64 {
	items := NewSequential(db).SearchKNN(q, k, nil).Items()
	return items[len(items)-1].Dist
}
