package pivotal

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResultBounded(t *testing.T) {
	res := NewResult(3)
	assert.Equal(t, 3, res.K())
	assert.True(t, math.IsInf(res.CoveringRadius(), 1))

	assert.True(t, res.Push(10, 5))
	assert.True(t, res.Push(11, 1))
	assert.True(t, math.IsInf(res.CoveringRadius(), 1), "not full yet")
	assert.True(t, res.Push(12, 3))
	assert.Equal(t, 5.0, res.CoveringRadius())

	assert.False(t, res.Push(13, 7), "worse than the worst retained item")
	assert.True(t, res.Push(14, 2))
	assert.Equal(t, 3.0, res.CoveringRadius())

	assert.Equal(t, []Item{{ID: 11, Dist: 1}, {ID: 14, Dist: 2}, {ID: 12, Dist: 3}}, res.Items())
	assert.Equal(t, []int{11, 14, 12}, res.IDs())
}

func TestResultTiesByID(t *testing.T) {
	res := NewResult(2)
	res.Push(9, 1)
	res.Push(3, 1)
	res.Push(5, 1)
	assert.Equal(t, []int{3, 5}, res.IDs())
	assert.False(t, res.Push(7, 1))
	assert.True(t, res.Push(4, 1))
	assert.Equal(t, []int{3, 4}, res.IDs())
}

func TestResultUnbounded(t *testing.T) {
	res := NewResult(0)
	assert.Equal(t, 0, res.K())
	for i := 0; i < 100; i++ {
		assert.True(t, res.Push(i, float64(100-i)))
	}
	assert.Equal(t, 100, res.Len())
	assert.True(t, math.IsInf(res.CoveringRadius(), 1))
	assert.Equal(t, 99, res.IDs()[0])
}

func TestCheapest(t *testing.T) {
	c := newCheapest[string](3)
	c.push(5, "e")
	c.push(1, "a")
	c.push(3, "c")
	c.push(1, "a2")
	c.push(0, "z")
	c.push(9, "x")
	assert.Equal(t, []string{"z", "a", "a2"}, c.ascending())

	empty := newCheapest[int](0)
	empty.push(1, 1)
	assert.Empty(t, empty.ascending())
}

func TestWorstFirst(t *testing.T) {
	h := newWorstFirst(0, func(a, b int) bool { return a > b })
	for _, v := range []int{5, 1, 9, 3, 7} {
		h.offer(v, 3)
	}
	assert.Equal(t, []int{1, 3, 5}, h.best())
	assert.False(t, h.offer(6, 3))
	assert.True(t, h.offer(2, 3))
	assert.Equal(t, []int{1, 2, 3}, h.best())

	unbounded := newWorstFirst(0, func(a, b int) bool { return a > b })
	for _, v := range []int{4, 2, 8} {
		assert.True(t, unbounded.offer(v, 0))
	}
	assert.Equal(t, []int{2, 4, 8}, unbounded.best())
}
