package pivotal

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCostCollector(t *testing.T) {
	db := randomVectorDB(t, 100, 2, Euclidean, 70)
	idx, err := BuildLAESA[[]float32](db, 4)
	require.NoError(t, err)

	collector := NewCostCollector("pivotal", idx)
	assert.Equal(t, 2, testutil.CollectAndCount(collector))

	idx.SearchKNN([]float32{0.5, 0.5}, 3, nil)
	cost := idx.Cost()

	registry := prometheus.NewPedanticRegistry()
	require.NoError(t, registry.Register(collector))

	expected := `
# HELP pivotal_internal_distances_total Distance evaluations against pivots and centers
# TYPE pivotal_internal_distances_total counter
pivotal_internal_distances_total{kind="laesa"} 4
`
	assert.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected), "pivotal_internal_distances_total"))
	assert.Equal(t, int64(4), cost.Internal)

	families, err := registry.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "pivotal_external_distances_total" {
			assert.Equal(t, float64(cost.External), mf.GetMetric()[0].GetCounter().GetValue())
		}
	}
}
