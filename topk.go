package pivotal

import (
	"container/heap"
	"sort"
)

// worstFirst is a max-heap under worse: the root is the worst retained element.
// It backs both Result and cheapest.
type worstFirst[E any] struct {
	items []E
	worse func(a, b E) bool
}

func newWorstFirst[E any](capacity int, worse func(a, b E) bool) worstFirst[E] {
	return worstFirst[E]{items: make([]E, 0, capacity), worse: worse}
}

func (h *worstFirst[E]) Len() int           { return len(h.items) }
func (h *worstFirst[E]) Less(i, j int) bool { return h.worse(h.items[i], h.items[j]) }
func (h *worstFirst[E]) Swap(i, j int)      { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *worstFirst[E]) Push(x any) {
	h.items = append(h.items, x.(E))
}

func (h *worstFirst[E]) Pop() any {
	n := len(h.items)
	x := h.items[n-1]
	h.items = h.items[:n-1]
	return x
}

// offer adds e while fewer than k elements are held (k <= 0 is unbounded),
// otherwise replaces the root when e is better. Reports whether e was kept.
func (h *worstFirst[E]) offer(e E, k int) bool {
	if k <= 0 || len(h.items) < k {
		heap.Push(h, e)
		return true
	}
	if !h.worse(h.items[0], e) {
		return false
	}
	h.items[0] = e
	heap.Fix(h, 0)
	return true
}

// best returns a copy of the elements ordered from best to worst.
func (h *worstFirst[E]) best() []E {
	out := make([]E, len(h.items))
	copy(out, h.items)
	sort.Slice(out, func(i, j int) bool {
		return h.worse(out[j], out[i])
	})
	return out
}

// ranked is a value with a selection cost. seq breaks cost ties in favour of
// the value pushed first.
type ranked[V any] struct {
	cost  float64
	seq   int
	value V
}

func (a ranked[V]) after(b ranked[V]) bool {
	if a.cost != b.cost {
		return a.cost > b.cost
	}
	return a.seq > b.seq
}

// cheapest keeps the k lowest-cost values pushed into it.
type cheapest[V any] struct {
	k     int
	next  int
	items worstFirst[ranked[V]]
}

func newCheapest[V any](k int) *cheapest[V] {
	return &cheapest[V]{k: k, items: newWorstFirst(max(k, 0), ranked[V].after)}
}

func (c *cheapest[V]) push(cost float64, value V) {
	item := ranked[V]{cost: cost, seq: c.next, value: value}
	c.next++
	if c.k <= 0 {
		return
	}
	c.items.offer(item, c.k)
}

// ascending returns the retained values from cheapest to most expensive.
func (c *cheapest[V]) ascending() []V {
	items := c.items.best()
	values := make([]V, len(items))
	for i, it := range items {
		values[i] = it.value
	}
	return values
}
