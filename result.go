package pivotal

import (
	"math"
)

// Item is a search hit: a database position and its exact distance to the query.
type Item struct {
	ID   int
	Dist float64
}

// worse orders items by distance, breaking ties by id so output is deterministic.
func (a Item) worse(b Item) bool {
	if a.Dist != b.Dist {
		return a.Dist > b.Dist
	}
	return a.ID > b.ID
}

// Result accumulates search hits, keeping at most K of the closest.
//
// A Result is per-query state and is not safe for concurrent use.
type Result struct {
	k     int
	items worstFirst[Item]
}

// NewResult creates a result bounded to k items. k <= 0 means unbounded,
// which is what range searches use.
func NewResult(k int) *Result {
	capacity := k
	if capacity <= 0 {
		capacity = 16
	}
	return &Result{k: k, items: newWorstFirst(capacity, Item.worse)}
}

// K returns the bound, or 0 for unbounded results.
func (r *Result) K() int {
	if r.k < 0 {
		return 0
	}
	return r.k
}

// Len returns the number of retained items.
func (r *Result) Len() int {
	return r.items.Len()
}

// Push offers an item. When the result is full the worst item is evicted if
// the new one is better; otherwise the new item is dropped. Reports whether
// the item was retained.
func (r *Result) Push(id int, dist float64) bool {
	return r.items.offer(Item{ID: id, Dist: dist}, r.k)
}

// CoveringRadius returns the distance of the worst retained item once the
// result is full, and +Inf otherwise. For a bounded result it only shrinks.
func (r *Result) CoveringRadius() float64 {
	if r.k <= 0 || r.items.Len() < r.k {
		return math.Inf(1)
	}
	return r.items.items[0].Dist
}

// Items returns the retained items sorted by ascending distance, then id.
func (r *Result) Items() []Item {
	return r.items.best()
}

// IDs returns the retained ids in the order of Items.
func (r *Result) IDs() []int {
	items := r.Items()
	ids := make([]int, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}
