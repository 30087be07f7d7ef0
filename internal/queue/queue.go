// Package queue implements the best-first candidate queue used by trie search.
package queue

// Item is an entry of the candidate queue.
// Items with equal Bound pop in insertion order.
type Item[T any] struct {
	Value T
	Bound float64 // lower bound of Value to the query
	seq   uint64
}

// MinQueue is a binary min-heap ordered by Bound, ties broken by insertion order.
// It does NOT implement container/heap to avoid interface overhead.
type MinQueue[T any] struct {
	items []Item[T]
	seq   uint64
}

// NewMin creates a min queue with the given initial capacity.
func NewMin[T any](capacity int) *MinQueue[T] {
	return &MinQueue[T]{items: make([]Item[T], 0, capacity)}
}

// Len returns the number of queued items.
func (q *MinQueue[T]) Len() int {
	return len(q.items)
}

// Reset clears the queue for reuse.
func (q *MinQueue[T]) Reset() {
	clear(q.items)
	q.items = q.items[:0]
	q.seq = 0
}

// Push inserts value with the given bound.
func (q *MinQueue[T]) Push(value T, bound float64) {
	q.items = append(q.items, Item[T]{Value: value, Bound: bound, seq: q.seq})
	q.seq++
	q.siftUp(len(q.items) - 1)
}

// Top returns the minimum item without removing it.
func (q *MinQueue[T]) Top() (Item[T], bool) {
	if len(q.items) == 0 {
		return Item[T]{}, false
	}
	return q.items[0], true
}

// Pop removes and returns the minimum item.
func (q *MinQueue[T]) Pop() (Item[T], bool) {
	n := len(q.items)
	if n == 0 {
		return Item[T]{}, false
	}
	root := q.items[0]
	last := q.items[n-1]
	q.items[n-1] = Item[T]{}
	q.items = q.items[:n-1]
	if n-1 > 0 {
		q.items[0] = last
		q.siftDown(0)
	}
	return root, true
}

func (q *MinQueue[T]) less(i, j int) bool {
	a, b := &q.items[i], &q.items[j]
	if a.Bound != b.Bound {
		return a.Bound < b.Bound
	}
	return a.seq < b.seq
}

func (q *MinQueue[T]) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !q.less(i, parent) {
			break
		}
		q.items[i], q.items[parent] = q.items[parent], q.items[i]
		i = parent
	}
}

func (q *MinQueue[T]) siftDown(i int) {
	n := len(q.items)
	for {
		left := 2*i + 1
		if left >= n {
			break
		}
		child := left
		if right := left + 1; right < n && q.less(right, left) {
			child = right
		}
		if !q.less(child, i) {
			break
		}
		q.items[i], q.items[child] = q.items[child], q.items[i]
		i = child
	}
}
