// Package sortedlist provides a capacity-bounded, ascending (key, value) list.
//
// The list is the working set for k-NN results, where MaxKey is the k-th best
// distance seen so far, and for the per-coefficient order-lines used when
// fitting quantization bins.
package sortedlist

import (
	"math"
	"sort"
)

// Entry is a single (key, value) pair.
type Entry[V any] struct {
	Key   float64
	Value V
}

// List is an ascending list of entries bounded by maxSize.
// Entries with equal keys keep their insertion order.
//
// List is not safe for concurrent use.
type List[V any] struct {
	entries []Entry[V]
	maxSize int
}

// New creates a list holding at most maxSize entries.
// A maxSize <= 0 means unbounded.
func New[V any](maxSize int) *List[V] {
	capacity := maxSize
	if capacity <= 0 || capacity > 1024 {
		capacity = 16
	}
	return &List[V]{
		entries: make([]Entry[V], 0, capacity),
		maxSize: maxSize,
	}
}

// Put inserts (key, value) after any existing entries with the same key.
// If the list exceeds its capacity the entry with the largest key is evicted.
// It reports whether the new entry is still in the list.
func (l *List[V]) Put(key float64, value V) bool {
	idx := l.upperBound(key)
	if l.maxSize > 0 && len(l.entries) >= l.maxSize && idx >= len(l.entries) {
		return false
	}

	l.entries = append(l.entries, Entry[V]{})
	copy(l.entries[idx+1:], l.entries[idx:])
	l.entries[idx] = Entry[V]{Key: key, Value: value}

	if l.maxSize > 0 && len(l.entries) > l.maxSize {
		last := len(l.entries) - 1
		l.entries[last] = Entry[V]{}
		l.entries = l.entries[:last]
	}
	return true
}

// First returns the index of the first entry with the given key, or -1.
func (l *List[V]) First(key float64) int {
	idx := l.lowerBound(key)
	if idx < len(l.entries) && l.entries[idx].Key == key {
		return idx
	}
	return -1
}

// Last returns the index of the last entry with the given key, or -1.
func (l *List[V]) Last(key float64) int {
	idx := l.upperBound(key) - 1
	if idx >= 0 && l.entries[idx].Key == key {
		return idx
	}
	return -1
}

// Remove deletes the first entry with the given key.
// It reports whether an entry was removed.
func (l *List[V]) Remove(key float64) bool {
	idx := l.First(key)
	if idx < 0 {
		return false
	}
	copy(l.entries[idx:], l.entries[idx+1:])
	l.entries[len(l.entries)-1] = Entry[V]{}
	l.entries = l.entries[:len(l.entries)-1]
	return true
}

// At returns the entry at position i.
func (l *List[V]) At(i int) Entry[V] {
	return l.entries[i]
}

// Len returns the number of entries.
func (l *List[V]) Len() int {
	return len(l.entries)
}

// Cap returns the configured maximum size (<= 0 means unbounded).
func (l *List[V]) Cap() int {
	return l.maxSize
}

// Full reports whether the list holds maxSize entries.
func (l *List[V]) Full() bool {
	return l.maxSize > 0 && len(l.entries) >= l.maxSize
}

// MaxKey returns the largest key once the list is full, +Inf otherwise.
// For a k-NN accumulator this is the pruning threshold.
func (l *List[V]) MaxKey() float64 {
	if !l.Full() || len(l.entries) == 0 {
		return math.Inf(1)
	}
	return l.entries[len(l.entries)-1].Key
}

// MinKey returns the smallest key, or +Inf when empty.
func (l *List[V]) MinKey() float64 {
	if len(l.entries) == 0 {
		return math.Inf(1)
	}
	return l.entries[0].Key
}

// Entries returns the entries in ascending key order.
// The returned slice aliases the list and is valid until the next mutation.
func (l *List[V]) Entries() []Entry[V] {
	return l.entries
}

// Reset removes all entries.
func (l *List[V]) Reset() {
	clear(l.entries)
	l.entries = l.entries[:0]
}

func (l *List[V]) lowerBound(key float64) int {
	return sort.Search(len(l.entries), func(i int) bool {
		return l.entries[i].Key >= key
	})
}

func (l *List[V]) upperBound(key float64) int {
	return sort.Search(len(l.entries), func(i int) bool {
		return l.entries[i].Key > key
	})
}
