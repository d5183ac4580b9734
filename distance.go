package pivotal

import (
	"math"
)

// DistanceKind represents the metric used to compare vectors.
//
// Every kind listed here is a true metric (non-negative, symmetric and
// satisfying the triangle inequality). Pivot pruning relies on the triangle
// inequality, so squared euclidean or "1 - cosine" are deliberately absent.
type DistanceKind string

const (
	// Euclidean (L2) distance measures the straight-line distance between two points.
	// Formula: sqrt(sum((a[i] - b[i])^2))
	Euclidean DistanceKind = "l2"

	// Manhattan (L1) distance sums absolute coordinate differences.
	// Formula: sum(|a[i] - b[i]|)
	Manhattan DistanceKind = "l1"

	// Chebyshev (L-infinity) distance takes the largest coordinate difference.
	// Formula: max(|a[i] - b[i]|)
	Chebyshev DistanceKind = "linf"

	// Angular distance is the angle between two vectors divided by pi.
	// Range: [0, 1] where 0 = same direction and 1 = opposite direction.
	// Zero vectors are at distance 0 from each other and 0.5 from everything else.
	Angular DistanceKind = "angular"
)

// Singleton instances of distance strategies.
// These are stateless and can be safely reused across goroutines.
var (
	euclideanDistanceImpl = euclidean{}
	manhattanDistanceImpl = manhattan{}
	chebyshevDistanceImpl = chebyshev{}
	angularDistanceImpl   = angular{}
)

// Distance computes the distance between two vectors of equal length.
type Distance interface {
	// Calculate computes the distance between a and b.
	// Lower values mean more similar vectors.
	Calculate(a, b []float32) float64
}

// NewDistance returns a singleton Distance implementation for the specified metric.
// Returns ErrUnknownDistanceKind if the distance kind is not recognized.
//
// Example:
//
//	dist, err := NewDistance(Euclidean)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	d := dist.Calculate([]float32{1, 2, 3}, []float32{4, 5, 6})
func NewDistance(kind DistanceKind) (Distance, error) {
	switch kind {
	case Euclidean:
		return euclideanDistanceImpl, nil
	case Manhattan:
		return manhattanDistanceImpl, nil
	case Chebyshev:
		return chebyshevDistanceImpl, nil
	case Angular:
		return angularDistanceImpl, nil
	default:
		return nil, ErrUnknownDistanceKind
	}
}

type euclidean struct{}

// Calculate accumulates in float64 so that distances computed at build time
// and at query time agree to the last bit for the same pair of vectors.
func (euclidean) Calculate(a, b []float32) float64 {
	var sum float64
	for i := range a {
		diff := float64(a[i]) - float64(b[i])
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

type manhattan struct{}

func (manhattan) Calculate(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += math.Abs(float64(a[i]) - float64(b[i]))
	}
	return sum
}

type chebyshev struct{}

func (chebyshev) Calculate(a, b []float32) float64 {
	var m float64
	for i := range a {
		if d := math.Abs(float64(a[i]) - float64(b[i])); d > m {
			m = d
		}
	}
	return m
}

type angular struct{}

func (angular) Calculate(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 && nb == 0 {
		return 0
	}
	if na == 0 || nb == 0 {
		return 0.5
	}
	cos := dot / (math.Sqrt(na) * math.Sqrt(nb))
	// Clamp to [-1, 1] to handle floating point precision errors
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return math.Acos(cos) / math.Pi
}
