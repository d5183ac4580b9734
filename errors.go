package pivotal

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPivotCount is returned when a pivot or center count is not in [1, N].
	ErrInvalidPivotCount = errors.New("invalid pivot count")

	// ErrInvalidSearchPivots is returned when the number of pivots consulted per query is not positive.
	ErrInvalidSearchPivots = errors.New("search pivots must be positive")

	// ErrDegeneratePivot is returned when a pivot's distance distribution has no spread.
	// Such a pivot would put every object in the same bucket and cannot prune.
	ErrDegeneratePivot = errors.New("pivot has non-positive standard deviation")

	// ErrSymbolOutOfRange is returned by sequence builders for symbols outside [0, sigma).
	ErrSymbolOutOfRange = errors.New("symbol out of range")

	// ErrInvalidSigma is returned when an alphabet size is outside [1, MaxSymbol+1].
	ErrInvalidSigma = errors.New("invalid alphabet size")

	// ErrInvalidMagic is returned when persisted data does not start with the expected magic number.
	ErrInvalidMagic = errors.New("invalid magic number")

	// ErrUnsupportedVersion is returned when persisted data has an unknown format version.
	ErrUnsupportedVersion = errors.New("unsupported format version")

	// ErrUnknownIndexKind is returned when a persisted index carries an unregistered kind tag.
	ErrUnknownIndexKind = errors.New("unknown index kind")

	// ErrUnknownSequenceKind is returned when a persisted sequence carries an unregistered kind tag.
	ErrUnknownSequenceKind = errors.New("unknown sequence kind")

	// ErrDatabaseMismatch is returned when an index is combined with or loaded
	// against a database other than the one it was built on.
	ErrDatabaseMismatch = errors.New("database mismatch")

	// ErrNoPartialIndexes is returned when a composite index is built without sub-indexes.
	ErrNoPartialIndexes = errors.New("at least one partial index is required")

	// ErrInvalidInstanceCount is returned when a composite index is asked to keep a negative number of sub-indexes.
	ErrInvalidInstanceCount = errors.New("instance count must not be negative")

	// ErrNotPartialIndex is returned when a persisted composite references an
	// index kind that cannot act as a partial filter.
	ErrNotPartialIndex = errors.New("index does not support partial search")

	// ErrUnknownDistanceKind is returned when an unknown distance kind is provided to NewDistance.
	ErrUnknownDistanceKind = errors.New("unknown distance kind")

	// ErrInvalidDimension is returned when a vector database is created with a non-positive dimension.
	ErrInvalidDimension = errors.New("dimension must be positive")
)

// ErrDimensionMismatch indicates a vector whose length differs from the database dimension.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}
