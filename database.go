package pivotal

import (
	"fmt"
	"io"

	"github.com/x448/float16"
)

// MetricDB is an ordered, 0-indexed collection of objects with a distance function.
//
// Dist must be non-negative and symmetric and must satisfy the triangle
// inequality; every index in this package relies on it for pruning. The
// property is assumed, not checked.
type MetricDB[T any] interface {
	// Len returns the number of objects.
	Len() int

	// At returns the object stored at position i.
	At(i int) T

	// Dist computes the distance between two objects.
	Dist(a, b T) float64
}

// Precision selects how a VectorDB stores its vectors.
type Precision uint8

const (
	// FullPrecision stores float32 components (4 bytes per dimension).
	FullPrecision Precision = iota

	// HalfPrecision stores IEEE 754 half precision components (2 bytes per
	// dimension). Vectors are decoded on every At call; queries are compared
	// against the decoded values so the metric stays consistent.
	HalfPrecision
)

// VectorDBOption configures a VectorDB.
type VectorDBOption func(*VectorDB)

// WithHalfPrecision stores vectors as float16 bits.
func WithHalfPrecision() VectorDBOption {
	return func(db *VectorDB) {
		db.precision = HalfPrecision
	}
}

// Compile-time check to ensure VectorDB implements MetricDB
var _ MetricDB[[]float32] = (*VectorDB)(nil)

// VectorDB is a MetricDB of fixed-dimension float32 vectors.
//
// Thread-safety: Add must not run concurrently with anything else. Once the
// database is populated it is read-only and safe to share between indexes
// and concurrent queries.
type VectorDB struct {
	dim          int
	distanceKind DistanceKind
	distance     Distance
	precision    Precision

	// Exactly one of full and half is populated, depending on precision.
	full [][]float32
	half [][]uint16
}

// NewVectorDB creates an empty vector database.
//
// Returns ErrInvalidDimension if dim <= 0 and ErrUnknownDistanceKind for an
// unsupported metric.
func NewVectorDB(dim int, kind DistanceKind, opts ...VectorDBOption) (*VectorDB, error) {
	if dim <= 0 {
		return nil, ErrInvalidDimension
	}
	distance, err := NewDistance(kind)
	if err != nil {
		return nil, err
	}
	db := &VectorDB{
		dim:          dim,
		distanceKind: kind,
		distance:     distance,
	}
	for _, opt := range opts {
		opt(db)
	}
	return db, nil
}

// Add appends a vector and returns its position.
func (db *VectorDB) Add(vector []float32) (int, error) {
	if len(vector) != db.dim {
		return 0, &ErrDimensionMismatch{Expected: db.dim, Actual: len(vector)}
	}
	if db.precision == HalfPrecision {
		bits := make([]uint16, len(vector))
		for i, v := range vector {
			bits[i] = float16.Fromfloat32(v).Bits()
		}
		db.half = append(db.half, bits)
		return len(db.half) - 1, nil
	}
	db.full = append(db.full, append([]float32(nil), vector...))
	return len(db.full) - 1, nil
}

// Len returns the number of stored vectors.
func (db *VectorDB) Len() int {
	if db.precision == HalfPrecision {
		return len(db.half)
	}
	return len(db.full)
}

// At returns the vector at position i. The returned slice must not be modified.
func (db *VectorDB) At(i int) []float32 {
	if db.precision == HalfPrecision {
		bits := db.half[i]
		vec := make([]float32, len(bits))
		for j, b := range bits {
			vec[j] = float16.Frombits(b).Float32()
		}
		return vec
	}
	return db.full[i]
}

// Dist computes the configured metric between two vectors.
func (db *VectorDB) Dist(a, b []float32) float64 {
	return db.distance.Calculate(a, b)
}

// Dimensions returns the dimensionality of stored vectors.
func (db *VectorDB) Dimensions() int {
	return db.dim
}

// DistanceKind returns the metric used by this database.
func (db *VectorDB) DistanceKind() DistanceKind {
	return db.distanceKind
}

// Precision returns the storage precision.
func (db *VectorDB) Precision() Precision {
	return db.precision
}

var vectorDBMagic = [4]byte{'V', 'E', 'C', 'S'}

// WriteTo serializes the database.
//
// The serialization format is:
// 1. Magic number "VECS" (4 bytes) + version (4 bytes)
// 2. Dimensionality (4 bytes)
// 3. Distance kind length (4 bytes) + distance kind string
// 4. Precision (1 byte)
// 5. Number of vectors (4 bytes)
// 6. Vector components, float32 or float16 bits depending on precision
func (db *VectorDB) WriteTo(w io.Writer) (int64, error) {
	bw := newBinaryWriter(w)
	if err := bw.writeHeader(vectorDBMagic); err != nil {
		return bw.n, err
	}
	if err := bw.write(uint32(db.dim)); err != nil {
		return bw.n, fmt.Errorf("failed to write dimensionality: %w", err)
	}
	if err := bw.writeString(string(db.distanceKind)); err != nil {
		return bw.n, fmt.Errorf("failed to write distance kind: %w", err)
	}
	if err := bw.write(uint8(db.precision)); err != nil {
		return bw.n, fmt.Errorf("failed to write precision: %w", err)
	}
	if err := bw.write(uint32(db.Len())); err != nil {
		return bw.n, fmt.Errorf("failed to write vector count: %w", err)
	}
	for i := 0; i < db.Len(); i++ {
		var err error
		if db.precision == HalfPrecision {
			err = bw.write(db.half[i])
		} else {
			err = bw.write(db.full[i])
		}
		if err != nil {
			return bw.n, fmt.Errorf("failed to write vector %d: %w", i, err)
		}
	}
	return bw.n, nil
}

// ReadFrom replaces the database contents with data written by WriteTo.
// The receiver keeps its previous state when decoding fails.
func (db *VectorDB) ReadFrom(r io.Reader) (int64, error) {
	br := newBinaryReader(r)
	if err := br.readHeader(vectorDBMagic); err != nil {
		return br.n, err
	}
	var dim uint32
	if err := br.read(&dim); err != nil {
		return br.n, fmt.Errorf("failed to read dimensionality: %w", err)
	}
	if dim == 0 {
		return br.n, ErrInvalidDimension
	}
	kind, err := br.readString()
	if err != nil {
		return br.n, fmt.Errorf("failed to read distance kind: %w", err)
	}
	distance, err := NewDistance(DistanceKind(kind))
	if err != nil {
		return br.n, err
	}
	var precision uint8
	if err := br.read(&precision); err != nil {
		return br.n, fmt.Errorf("failed to read precision: %w", err)
	}
	if Precision(precision) != FullPrecision && Precision(precision) != HalfPrecision {
		return br.n, fmt.Errorf("unknown precision %d", precision)
	}
	var count uint32
	if err := br.read(&count); err != nil {
		return br.n, fmt.Errorf("failed to read vector count: %w", err)
	}

	var full [][]float32
	var half [][]uint16
	for i := uint32(0); i < count; i++ {
		if Precision(precision) == HalfPrecision {
			vec := make([]uint16, dim)
			if err := br.read(vec); err != nil {
				return br.n, fmt.Errorf("failed to read vector %d: %w", i, err)
			}
			half = append(half, vec)
		} else {
			vec := make([]float32, dim)
			if err := br.read(vec); err != nil {
				return br.n, fmt.Errorf("failed to read vector %d: %w", i, err)
			}
			full = append(full, vec)
		}
	}

	db.dim = int(dim)
	db.distanceKind = DistanceKind(kind)
	db.distance = distance
	db.precision = Precision(precision)
	db.full = full
	db.half = half
	return br.n, nil
}
