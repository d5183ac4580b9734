package pivotal

import (
	"fmt"
	"io"
	"math"

	"github.com/RoaringBitmap/roaring"
)

// MaxSymbol is the largest symbol a sequence can hold. Discretized distances
// are clamped to it.
const MaxSymbol = math.MaxUint16

// SequenceKind identifies a RankSelectSeq implementation in persisted data.
type SequenceKind string

const (
	// InvertedSequence stores one roaring bitmap per symbol.
	// Rank, Select and Unravel are fast; Access costs one lookup per symbol.
	InvertedSequence SequenceKind = "inverted"

	// PackedSequence stores one uint16 per position.
	// Access is O(1); Rank, Select and Unravel scan the whole sequence.
	PackedSequence SequenceKind = "packed"
)

// RankSelectSeq is a read-only sequence over the alphabet [0, Sigma()).
type RankSelectSeq interface {
	// Kind returns the implementation tag used for persistence.
	Kind() SequenceKind

	// Len returns the sequence length.
	Len() int

	// Sigma returns the alphabet size.
	Sigma() int

	// Access returns the symbol at pos.
	Access(pos int) int

	// Rank returns the number of occurrences of sym in [0, pos].
	Rank(sym, pos int) int

	// Select returns the position of the k-th occurrence of sym (1-indexed),
	// or -1 if sym occurs fewer than k times.
	Select(sym, k int) int

	// Unravel returns every position holding sym. Symbols outside the
	// alphabet yield an empty bitmap.
	Unravel(sym int) Bitmap

	// WriteTo writes the sequence payload (without kind tag).
	WriteTo(w io.Writer) (int64, error)
}

// SequenceBuilder turns a symbol array over [0, sigma) into a RankSelectSeq.
type SequenceBuilder func(symbols []int, sigma int) (RankSelectSeq, error)

// DefaultSequenceBuilder is used when no builder is configured.
var DefaultSequenceBuilder SequenceBuilder = BuildInvertedSeq

func validateSymbols(symbols []int, sigma int) error {
	if sigma < 1 || sigma > MaxSymbol+1 {
		return fmt.Errorf("%w: %d", ErrInvalidSigma, sigma)
	}
	if uint64(len(symbols)) > math.MaxUint32 {
		return fmt.Errorf("sequence length %d exceeds limit", len(symbols))
	}
	for pos, sym := range symbols {
		if sym < 0 || sym >= sigma {
			return fmt.Errorf("%w: symbol %d at position %d, sigma %d", ErrSymbolOutOfRange, sym, pos, sigma)
		}
	}
	return nil
}

// ============================================================================
// INVERTED SEQUENCE
// ============================================================================

// Compile-time check to ensure InvertedSeq implements RankSelectSeq
var _ RankSelectSeq = (*InvertedSeq)(nil)

// InvertedSeq represents a sequence as the list of positions of each symbol.
// The per-symbol bitmaps partition [0, Len()).
type InvertedSeq struct {
	n     int
	lists []*roaring.Bitmap
}

// BuildInvertedSeq is a SequenceBuilder producing an InvertedSeq.
func BuildInvertedSeq(symbols []int, sigma int) (RankSelectSeq, error) {
	if err := validateSymbols(symbols, sigma); err != nil {
		return nil, err
	}
	positions := make([][]uint32, sigma)
	for pos, sym := range symbols {
		positions[sym] = append(positions[sym], uint32(pos))
	}
	lists := make([]*roaring.Bitmap, sigma)
	for sym, pos := range positions {
		bm := roaring.BitmapOf(pos...)
		bm.RunOptimize()
		lists[sym] = bm
	}
	return &InvertedSeq{n: len(symbols), lists: lists}, nil
}

func (s *InvertedSeq) Kind() SequenceKind { return InvertedSequence }

func (s *InvertedSeq) Len() int { return s.n }

func (s *InvertedSeq) Sigma() int { return len(s.lists) }

// Access probes each symbol's bitmap; O(Sigma) membership tests.
func (s *InvertedSeq) Access(pos int) int {
	for sym, bm := range s.lists {
		if bm.Contains(uint32(pos)) {
			return sym
		}
	}
	return -1
}

func (s *InvertedSeq) Rank(sym, pos int) int {
	if sym < 0 || sym >= len(s.lists) || pos < 0 {
		return 0
	}
	return int(s.lists[sym].Rank(uint32(pos)))
}

func (s *InvertedSeq) Select(sym, k int) int {
	if sym < 0 || sym >= len(s.lists) {
		return -1
	}
	return newBitmap(s.lists[sym]).Select1(k)
}

func (s *InvertedSeq) Unravel(sym int) Bitmap {
	if sym < 0 || sym >= len(s.lists) {
		return Bitmap{}
	}
	return newBitmap(s.lists[sym])
}

// WriteTo writes length, sigma and one length-prefixed roaring bitmap per symbol.
func (s *InvertedSeq) WriteTo(w io.Writer) (int64, error) {
	bw := newBinaryWriter(w)
	if err := bw.write([]uint32{uint32(s.n), uint32(len(s.lists))}); err != nil {
		return bw.n, fmt.Errorf("failed to write sequence header: %w", err)
	}
	for sym, bm := range s.lists {
		if err := bw.writeBitmap(bm); err != nil {
			return bw.n, fmt.Errorf("failed to write symbol %d: %w", sym, err)
		}
	}
	return bw.n, nil
}

func readInvertedSeq(r io.Reader) (RankSelectSeq, int64, error) {
	br := newBinaryReader(r)
	header := make([]uint32, 2)
	if err := br.read(header); err != nil {
		return nil, br.n, fmt.Errorf("failed to read sequence header: %w", err)
	}
	n, sigma := int(header[0]), int(header[1])
	if sigma < 1 || sigma > MaxSymbol+1 {
		return nil, br.n, fmt.Errorf("%w: %d", ErrInvalidSigma, sigma)
	}
	lists := make([]*roaring.Bitmap, sigma)
	covered := roaring.New()
	for sym := range lists {
		bm, err := br.readBitmap()
		if err != nil {
			return nil, br.n, fmt.Errorf("failed to read symbol %d: %w", sym, err)
		}
		if !bm.IsEmpty() && int(bm.Maximum()) >= n {
			return nil, br.n, fmt.Errorf("symbol %d holds position %d beyond length %d", sym, bm.Maximum(), n)
		}
		if covered.Intersects(bm) {
			return nil, br.n, fmt.Errorf("symbol %d shares positions with a lower symbol", sym)
		}
		covered.Or(bm)
		lists[sym] = bm
	}
	// Disjoint lists below n covering n positions partition [0, n).
	if covered.GetCardinality() != uint64(n) {
		return nil, br.n, fmt.Errorf("symbol lists cover %d positions, expected %d", covered.GetCardinality(), n)
	}
	return &InvertedSeq{n: n, lists: lists}, br.n, nil
}

// ============================================================================
// PACKED SEQUENCE
// ============================================================================

// Compile-time check to ensure PackedSeq implements RankSelectSeq
var _ RankSelectSeq = (*PackedSeq)(nil)

// PackedSeq stores symbols verbatim as uint16 values.
//
// It suits access-heavy consumers. Unravel materializes a bitmap per call by
// scanning the sequence, so it is a poor engine for pivot search and a poor
// source for re-encoding (see DownsampleCompactPivots).
type PackedSeq struct {
	symbols []uint16
	sigma   int
}

// BuildPackedSeq is a SequenceBuilder producing a PackedSeq.
func BuildPackedSeq(symbols []int, sigma int) (RankSelectSeq, error) {
	if err := validateSymbols(symbols, sigma); err != nil {
		return nil, err
	}
	packed := make([]uint16, len(symbols))
	for i, sym := range symbols {
		packed[i] = uint16(sym)
	}
	return &PackedSeq{symbols: packed, sigma: sigma}, nil
}

func (s *PackedSeq) Kind() SequenceKind { return PackedSequence }

func (s *PackedSeq) Len() int { return len(s.symbols) }

func (s *PackedSeq) Sigma() int { return s.sigma }

func (s *PackedSeq) Access(pos int) int {
	return int(s.symbols[pos])
}

func (s *PackedSeq) Rank(sym, pos int) int {
	if pos >= len(s.symbols) {
		pos = len(s.symbols) - 1
	}
	count := 0
	for i := 0; i <= pos; i++ {
		if int(s.symbols[i]) == sym {
			count++
		}
	}
	return count
}

func (s *PackedSeq) Select(sym, k int) int {
	if k < 1 {
		return -1
	}
	for i, v := range s.symbols {
		if int(v) == sym {
			k--
			if k == 0 {
				return i
			}
		}
	}
	return -1
}

func (s *PackedSeq) Unravel(sym int) Bitmap {
	if sym < 0 || sym >= s.sigma {
		return Bitmap{}
	}
	bm := roaring.New()
	for i, v := range s.symbols {
		if int(v) == sym {
			bm.Add(uint32(i))
		}
	}
	return newBitmap(bm)
}

// WriteTo writes length, sigma and the raw uint16 symbols.
func (s *PackedSeq) WriteTo(w io.Writer) (int64, error) {
	bw := newBinaryWriter(w)
	if err := bw.write([]uint32{uint32(len(s.symbols)), uint32(s.sigma)}); err != nil {
		return bw.n, fmt.Errorf("failed to write sequence header: %w", err)
	}
	if err := bw.write(s.symbols); err != nil {
		return bw.n, fmt.Errorf("failed to write symbols: %w", err)
	}
	return bw.n, nil
}

// maxPackedLen bounds the length of a persisted PackedSeq (128M symbols).
const maxPackedLen = 1 << 27

func readPackedSeq(r io.Reader) (RankSelectSeq, int64, error) {
	br := newBinaryReader(r)
	header := make([]uint32, 2)
	if err := br.read(header); err != nil {
		return nil, br.n, fmt.Errorf("failed to read sequence header: %w", err)
	}
	n, sigma := int(header[0]), int(header[1])
	if sigma < 1 || sigma > MaxSymbol+1 {
		return nil, br.n, fmt.Errorf("%w: %d", ErrInvalidSigma, sigma)
	}
	if n > maxPackedLen {
		return nil, br.n, fmt.Errorf("sequence length %d exceeds limit", n)
	}
	symbols := make([]uint16, n)
	if err := br.read(symbols); err != nil {
		return nil, br.n, fmt.Errorf("failed to read symbols: %w", err)
	}
	for i, sym := range symbols {
		if int(sym) >= sigma {
			return nil, br.n, fmt.Errorf("%w: symbol %d at position %d, sigma %d", ErrSymbolOutOfRange, sym, i, sigma)
		}
	}
	return &PackedSeq{symbols: symbols, sigma: sigma}, br.n, nil
}

// ============================================================================
// POLYMORPHIC PERSISTENCE
// ============================================================================

// SaveSequence writes a kind tag followed by the sequence payload.
func SaveSequence(w io.Writer, seq RankSelectSeq) (int64, error) {
	bw := newBinaryWriter(w)
	if err := bw.writeString(string(seq.Kind())); err != nil {
		return bw.n, fmt.Errorf("failed to write sequence kind: %w", err)
	}
	if err := bw.sub(seq); err != nil {
		return bw.n, fmt.Errorf("failed to write %s sequence: %w", seq.Kind(), err)
	}
	return bw.n, nil
}

// LoadSequence reads a sequence written by SaveSequence.
func LoadSequence(r io.Reader) (RankSelectSeq, int64, error) {
	br := newBinaryReader(r)
	tag, err := br.readString()
	if err != nil {
		return nil, br.n, fmt.Errorf("failed to read sequence kind: %w", err)
	}

	var decode func(io.Reader) (RankSelectSeq, int64, error)
	switch SequenceKind(tag) {
	case InvertedSequence:
		decode = readInvertedSeq
	case PackedSequence:
		decode = readPackedSeq
	default:
		return nil, br.n, fmt.Errorf("%w: %q", ErrUnknownSequenceKind, tag)
	}

	seq, n, err := decode(r)
	br.n += n
	if err != nil {
		return nil, br.n, fmt.Errorf("failed to read %s sequence: %w", tag, err)
	}
	return seq, br.n, nil
}

// reencodeSequence rebuilds the raw symbol array of seq by walking every
// symbol's Unravel bitmap with Select1, then hands it to builder. This costs
// Len() Select1 calls and never calls Access, so the source must offer an
// efficient Select.
func reencodeSequence(seq RankSelectSeq, builder SequenceBuilder) (RankSelectSeq, error) {
	symbols := make([]int, seq.Len())
	for sym := 0; sym < seq.Sigma(); sym++ {
		rs := seq.Unravel(sym)
		count1 := rs.Count1()
		for c := 1; c <= count1; c++ {
			symbols[rs.Select1(c)] = sym
		}
	}
	return builder(symbols, seq.Sigma())
}
