package pivotal

import (
	"github.com/RoaringBitmap/roaring"
)

// emptyRoaring backs the zero Bitmap. It is never modified.
var emptyRoaring = roaring.New()

// Bitmap is a read-only rank/select view over a set of item positions,
// typically every position of a sequence that holds one symbol.
//
// The zero value is an empty bitmap.
type Bitmap struct {
	bm *roaring.Bitmap
}

func newBitmap(bm *roaring.Bitmap) Bitmap {
	return Bitmap{bm: bm}
}

func (b Bitmap) bitmap() *roaring.Bitmap {
	if b.bm == nil {
		return emptyRoaring
	}
	return b.bm
}

// Count1 returns the number of set positions.
func (b Bitmap) Count1() int {
	return int(b.bitmap().GetCardinality())
}

// Select1 returns the position of the k-th set position, 1-indexed.
// Returns -1 when k is outside [1, Count1()].
func (b Bitmap) Select1(k int) int {
	if k < 1 || k > b.Count1() {
		return -1
	}
	pos, err := b.bitmap().Select(uint32(k - 1))
	if err != nil {
		return -1
	}
	return int(pos)
}

// Rank1 returns the number of set positions in [0, pos].
func (b Bitmap) Rank1(pos int) int {
	if pos < 0 {
		return 0
	}
	return int(b.bitmap().Rank(uint32(pos)))
}

// Access reports whether pos is set.
func (b Bitmap) Access(pos int) bool {
	if pos < 0 {
		return false
	}
	return b.bitmap().Contains(uint32(pos))
}

// Iterate calls fn for every set position in ascending order until fn returns false.
func (b Bitmap) Iterate(fn func(pos int) bool) {
	b.bitmap().Iterate(func(x uint32) bool {
		return fn(int(x))
	})
}

// Roaring exposes the underlying bitmap for set algebra.
// The returned bitmap is shared and must not be modified.
func (b Bitmap) Roaring() *roaring.Bitmap {
	return b.bitmap()
}
