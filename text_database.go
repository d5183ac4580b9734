package pivotal

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode"

	"github.com/clipperhouse/uax29/v2/words"
	"golang.org/x/text/unicode/norm"
)

// TokenSet is the set of distinct normalized words of a text, sorted.
type TokenSet []string

// NewTokenSet normalizes text (NFKC + lowercase), segments it into UAX#29
// words and keeps the distinct words that contain a letter or a digit.
func NewTokenSet(text string) TokenSet {
	toks := words.FromString(normalize(text))
	seen := make(map[string]struct{})
	var set TokenSet
	for toks.Next() {
		tok := toks.Value()
		if !isWord(tok) {
			continue
		}
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		set = append(set, tok)
	}
	sort.Strings(set)
	return set
}

// normalize applies Unicode normalization (NFKC) and converts to lowercase.
func normalize(s string) string {
	return strings.ToLower(norm.NFKC.String(s))
}

// isWord drops whitespace and punctuation segments.
func isWord(tok string) bool {
	for _, r := range tok {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// JaccardDistance returns 1 - |a ∩ b| / |a ∪ b| for two sorted token sets.
// Two empty sets are at distance 0. Jaccard distance is a metric.
func JaccardDistance(a, b TokenSet) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			inter++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	union := len(a) + len(b) - inter
	return 1 - float64(inter)/float64(union)
}

// Compile-time check to ensure TextDB implements MetricDB
var _ MetricDB[TokenSet] = (*TextDB)(nil)

// TextDB is a MetricDB of short texts compared by the Jaccard distance of their word sets.
type TextDB struct {
	texts []string
	sets  []TokenSet
}

// NewTextDB creates an empty text database.
func NewTextDB() *TextDB {
	return &TextDB{}
}

// Add appends a text and returns its position.
func (db *TextDB) Add(text string) int {
	db.texts = append(db.texts, text)
	db.sets = append(db.sets, NewTokenSet(text))
	return len(db.texts) - 1
}

// Len returns the number of stored texts.
func (db *TextDB) Len() int {
	return len(db.texts)
}

// At returns the token set of the text at position i.
func (db *TextDB) At(i int) TokenSet {
	return db.sets[i]
}

// Text returns the original text at position i.
func (db *TextDB) Text(i int) string {
	return db.texts[i]
}

// Dist returns the Jaccard distance between two token sets.
func (db *TextDB) Dist(a, b TokenSet) float64 {
	return JaccardDistance(a, b)
}

var textDBMagic = [4]byte{'T', 'E', 'X', 'T'}

// maxTextLen bounds a single persisted text.
const maxTextLen = 1 << 24

// WriteTo serializes the original texts; token sets are rebuilt on load.
func (db *TextDB) WriteTo(w io.Writer) (int64, error) {
	bw := newBinaryWriter(w)
	if err := bw.writeHeader(textDBMagic); err != nil {
		return bw.n, err
	}
	if err := bw.write(uint32(len(db.texts))); err != nil {
		return bw.n, fmt.Errorf("failed to write text count: %w", err)
	}
	for i, text := range db.texts {
		if err := bw.write(uint32(len(text))); err != nil {
			return bw.n, fmt.Errorf("failed to write text %d length: %w", i, err)
		}
		if err := bw.writeBytes([]byte(text)); err != nil {
			return bw.n, fmt.Errorf("failed to write text %d: %w", i, err)
		}
	}
	return bw.n, nil
}

// ReadFrom replaces the database contents with data written by WriteTo.
func (db *TextDB) ReadFrom(r io.Reader) (int64, error) {
	br := newBinaryReader(r)
	if err := br.readHeader(textDBMagic); err != nil {
		return br.n, err
	}
	var count uint32
	if err := br.read(&count); err != nil {
		return br.n, fmt.Errorf("failed to read text count: %w", err)
	}
	texts := make([]string, 0, min(count, 1<<16))
	sets := make([]TokenSet, 0, min(count, 1<<16))
	for i := uint32(0); i < count; i++ {
		var size uint32
		if err := br.read(&size); err != nil {
			return br.n, fmt.Errorf("failed to read text %d length: %w", i, err)
		}
		if size > maxTextLen {
			return br.n, fmt.Errorf("text %d length %d exceeds limit", i, size)
		}
		b, err := br.readBytes(int(size))
		if err != nil {
			return br.n, fmt.Errorf("failed to read text %d: %w", i, err)
		}
		texts = append(texts, string(b))
		sets = append(sets, NewTokenSet(string(b)))
	}
	db.texts = texts
	db.sets = sets
	return br.n, nil
}
