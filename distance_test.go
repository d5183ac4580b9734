package pivotal

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const epsilon = 1e-6

func TestNewDistance(t *testing.T) {
	tests := []struct {
		name         string
		distanceKind DistanceKind
		expectError  bool
	}{
		{name: "euclidean distance", distanceKind: Euclidean},
		{name: "manhattan distance", distanceKind: Manhattan},
		{name: "chebyshev distance", distanceKind: Chebyshev},
		{name: "angular distance", distanceKind: Angular},
		{name: "invalid distance kind", distanceKind: "cosine", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dist, err := NewDistance(tt.distanceKind)
			if tt.expectError {
				require.ErrorIs(t, err, ErrUnknownDistanceKind)
				assert.Nil(t, dist)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, dist)
		})
	}
}

func TestSingletonInstances(t *testing.T) {
	for _, kind := range []DistanceKind{Euclidean, Manhattan, Chebyshev, Angular} {
		d1, _ := NewDistance(kind)
		d2, _ := NewDistance(kind)
		assert.Equal(t, d1, d2, "NewDistance should return the same instance for %s", kind)
	}
}

func TestDistances(t *testing.T) {
	tests := []struct {
		name string
		kind DistanceKind
		a, b []float32
		want float64
	}{
		{name: "l2 identical", kind: Euclidean, a: []float32{1, 2, 3}, b: []float32{1, 2, 3}, want: 0},
		{name: "l2 3-4-5", kind: Euclidean, a: []float32{0, 0}, b: []float32{3, 4}, want: 5},
		{name: "l1", kind: Manhattan, a: []float32{1, -1, 2}, b: []float32{4, 1, 2}, want: 5},
		{name: "linf", kind: Chebyshev, a: []float32{1, -1, 2}, b: []float32{4, 1, 2}, want: 3},
		{name: "angular same direction", kind: Angular, a: []float32{1, 0}, b: []float32{5, 0}, want: 0},
		{name: "angular orthogonal", kind: Angular, a: []float32{1, 0}, b: []float32{0, 2}, want: 0.5},
		{name: "angular opposite", kind: Angular, a: []float32{1, 1}, b: []float32{-1, -1}, want: 1},
		{name: "angular both zero", kind: Angular, a: []float32{0, 0}, b: []float32{0, 0}, want: 0},
		{name: "angular one zero", kind: Angular, a: []float32{0, 0}, b: []float32{1, 0}, want: 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dist, err := NewDistance(tt.kind)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, dist.Calculate(tt.a, tt.b), epsilon)
		})
	}
}

// TestDistanceSymmetryAndTriangle checks the metric axioms on a fixed sample.
func TestDistanceSymmetryAndTriangle(t *testing.T) {
	rng := newRand(3)
	points := make([][]float32, 30)
	for i := range points {
		points[i] = []float32{rng.Float32()*2 - 1, rng.Float32()*2 - 1, rng.Float32()*2 - 1}
	}
	for _, kind := range []DistanceKind{Euclidean, Manhattan, Chebyshev, Angular} {
		t.Run(string(kind), func(t *testing.T) {
			dist, err := NewDistance(kind)
			require.NoError(t, err)
			for _, a := range points {
				for _, b := range points {
					dab := dist.Calculate(a, b)
					assert.GreaterOrEqual(t, dab, 0.0)
					assert.InDelta(t, dab, dist.Calculate(b, a), epsilon)
					for _, c := range points[:5] {
						assert.LessOrEqual(t, dab, dist.Calculate(a, c)+dist.Calculate(c, b)+epsilon)
					}
				}
			}
		})
	}
}

func TestAngularClamp(t *testing.T) {
	dist, _ := NewDistance(Angular)
	v := []float32{0.1, 0.2, 0.3}
	d := dist.Calculate(v, v)
	assert.False(t, math.IsNaN(d))
	assert.InDelta(t, 0, d, 1e-3)
}
