package pivotal

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTokenSet(t *testing.T) {
	tests := []struct {
		name string
		text string
		want TokenSet
	}{
		{name: "lowercase and dedupe", text: "The quick the QUICK fox", want: TokenSet{"fox", "quick", "the"}},
		{name: "punctuation dropped", text: "hello, world!", want: TokenSet{"hello", "world"}},
		{name: "nfkc folds fullwidth", text: "ＡＢＣ abc", want: TokenSet{"abc"}},
		{name: "digits kept", text: "route 66", want: TokenSet{"66", "route"}},
		{name: "empty", text: "  ... ", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewTokenSet(tt.text))
		})
	}
}

func TestJaccardDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{name: "identical", a: "a b c", b: "c b a", want: 0},
		{name: "disjoint", a: "a b", b: "c d", want: 1},
		{name: "half", a: "a b", b: "b c", want: 1 - 1.0/3},
		{name: "both empty", a: "", b: "", want: 0},
		{name: "one empty", a: "a", b: "", want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := JaccardDistance(NewTokenSet(tt.a), NewTokenSet(tt.b))
			assert.InDelta(t, tt.want, got, 1e-12)
			assert.InDelta(t, got, JaccardDistance(NewTokenSet(tt.b), NewTokenSet(tt.a)), 1e-12)
		})
	}
}

func TestTextDB(t *testing.T) {
	db := NewTextDB()
	assert.Equal(t, 0, db.Add("the quick brown fox"))
	assert.Equal(t, 1, db.Add("the lazy dog"))
	assert.Equal(t, 2, db.Len())
	assert.Equal(t, "the lazy dog", db.Text(1))
	assert.Equal(t, TokenSet{"dog", "lazy", "the"}, db.At(1))
	assert.InDelta(t, 1-1.0/6, db.Dist(db.At(0), db.At(1)), 1e-12)

	var buf bytes.Buffer
	_, err := db.WriteTo(&buf)
	require.NoError(t, err)

	loaded := NewTextDB()
	_, err = loaded.ReadFrom(&buf)
	require.NoError(t, err)
	require.Equal(t, db.Len(), loaded.Len())
	for i := 0; i < db.Len(); i++ {
		assert.Equal(t, db.Text(i), loaded.Text(i))
		assert.Equal(t, db.At(i), loaded.At(i))
	}
}

// TestTextDBIndexes checks that pivot indexes work over a non-vector metric.
func TestTextDBIndexes(t *testing.T) {
	db := NewTextDB()
	corpus := []string{
		"the quick brown fox jumps over the lazy dog",
		"a quick brown dog outpaces a quick red fox",
		"pack my box with five dozen liquor jugs",
		"how vexingly quick daft zebras jump",
		"the five boxing wizards jump quickly",
		"sphinx of black quartz judge my vow",
		"a lazy dog sleeps in the sun",
		"quick brown foxes are rarely lazy",
	}
	for _, text := range corpus {
		db.Add(text)
	}
	idx, err := BuildCompactPivots[TokenSet](db, 3, 3)
	require.NoError(t, err)

	q := NewTokenSet("quick brown fox")
	want := NewSequential[TokenSet](db).SearchRange(q, 0.8)
	got := idx.SearchRange(q, 0.8)
	assert.Equal(t, sortedIDs(want), sortedIDs(got))
	assert.Equal(t, want.IDs(), idx.SearchKNN(q, want.Len(), nil).IDs())
}
