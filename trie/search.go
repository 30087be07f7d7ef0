package trie

import (
	"cmp"
	"math"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/sfatrie/distance"
	"github.com/hupe1980/sfatrie/internal/queue"
	"github.com/hupe1980/sfatrie/internal/sortedlist"
	"github.com/hupe1980/sfatrie/word"
)

// Query is a search request.
type Query struct {
	// Series is compared against the storage; it must already be normalised
	// the way stored elements are.
	Series []float64
	// Coeffs are the query coefficients in trie coordinates, used for the
	// lower bound.
	Coeffs []float64
	// Word is the query's packed word, used by LeafFor and SearchLeaf.
	Word word.Word
}

// Result is one match. Distance is the squared Euclidean distance.
type Result struct {
	Pos      int
	Distance float64
}

// SearchStats counts the work done by one search.
type SearchStats struct {
	NodesVisited  int
	LeavesVisited int
	Distances     int
	Abandoned     int
}

type searchOptions struct {
	filter *roaring.Bitmap
	stats  *SearchStats
}

// SearchOption configures a search.
type SearchOption func(*searchOptions)

// WithFilter restricts candidates to the positions in the bitmap.
func WithFilter(b *roaring.Bitmap) SearchOption {
	return func(o *searchOptions) {
		o.filter = b
	}
}

// WithStats collects search counters into s.
func WithStats(s *SearchStats) SearchOption {
	return func(o *searchOptions) {
		o.stats = s
	}
}

func newSearchOptions(opts []SearchOption) searchOptions {
	var o searchOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.stats == nil {
		o.stats = &SearchStats{}
	}
	return o
}

func (o *searchOptions) allowed(pos int32) bool {
	return o.filter == nil || o.filter.Contains(uint32(pos))
}

// LeafFor descends by the symbols of w. When an expected child is missing the
// descent continues with a sibling, preferring leaves, so the returned leaf is
// an approximate match and may not share the prefix of w. It returns nil only
// for an empty trie.
func (t *Trie) LeafFor(w word.Word) *Leaf {
	n := t.root
	for depth := 0; ; depth++ {
		switch node := n.(type) {
		case nil:
			return nil
		case *Leaf:
			return node
		case *Internal:
			child := node.Child(t.packer.Symbol(w, depth))
			if child == nil {
				child = node.firstLeafChild()
			}
			n = child
		}
	}
}

// SearchLeaf scans the single leaf returned by LeafFor(q.Word) and returns
// its k nearest elements.
func (t *Trie) SearchLeaf(q Query, k int, opts ...SearchOption) []Result {
	if k <= 0 || t.storage == nil {
		return nil
	}
	o := newSearchOptions(opts)
	leaf := t.LeafFor(q.Word)
	if leaf == nil {
		return nil
	}
	best := sortedlist.New[int32](k)
	t.scanLeaf(leaf, q.Series, best, &o)
	return toResults(best)
}

// SearchKNN returns the k nearest elements by branch-and-bound: nodes are
// expanded in ascending lower-bound order until the smallest remaining bound
// reaches the current k-th best distance.
func (t *Trie) SearchKNN(q Query, k int, opts ...SearchOption) []Result {
	if k <= 0 || t.root == nil || t.storage == nil {
		return nil
	}
	o := newSearchOptions(opts)
	best := sortedlist.New[int32](k)
	seen := t.newLeafSet()

	pq := queue.NewMin[Node](64)
	pq.Push(t.root, t.root.Bounds().LowerBound(q.Coeffs, t.weights))
	for pq.Len() > 0 {
		item, _ := pq.Pop()
		if item.Bound >= best.MaxKey() {
			break
		}
		o.stats.NodesVisited++

		switch n := item.Value.(type) {
		case *Internal:
			for _, child := range n.Children() {
				lb := child.Bounds().LowerBound(q.Coeffs, t.weights)
				if lb < best.MaxKey() {
					pq.Push(child, lb)
				}
			}
		case *Leaf:
			if !visitLeaf(seen, n) {
				continue
			}
			t.scanLeaf(n, q.Series, best, &o)
		}
	}
	return toResults(best)
}

// SearchRange returns every element within squared distance eps of the query,
// ascending by distance. Nodes are traversed breadth-first and a child is
// expanded only if its lower bound is at most eps.
func (t *Trie) SearchRange(q Query, eps float64, opts ...SearchOption) []Result {
	if t.root == nil || t.storage == nil || eps < 0 {
		return nil
	}
	o := newSearchOptions(opts)
	seen := t.newLeafSet()
	// Bounded distances abandon at sum >= limit, so pass the next float up to
	// keep elements at exactly eps.
	limit := math.Nextafter(eps, math.Inf(1))

	var results []Result
	if t.root.Bounds().LowerBound(q.Coeffs, t.weights) > eps {
		return nil
	}
	work := []Node{t.root}
	for len(work) > 0 {
		n := work[0]
		work = work[1:]
		o.stats.NodesVisited++

		switch node := n.(type) {
		case *Internal:
			for _, child := range node.Children() {
				if child.Bounds().LowerBound(q.Coeffs, t.weights) <= eps {
					work = append(work, child)
				}
			}
		case *Leaf:
			if !visitLeaf(seen, node) {
				continue
			}
			o.stats.LeavesVisited++
			for _, pos := range node.elements {
				if !o.allowed(pos) {
					continue
				}
				o.stats.Distances++
				d := t.storage.Distance(int(pos), q.Series, limit)
				if d == distance.TooFar || d > eps {
					o.stats.Abandoned++
					continue
				}
				results = append(results, Result{Pos: int(pos), Distance: d})
			}
		}
	}

	slices.SortFunc(results, func(a, b Result) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.Pos, b.Pos)
	})
	return results
}

func (t *Trie) scanLeaf(l *Leaf, query []float64, best *sortedlist.List[int32], o *searchOptions) {
	o.stats.LeavesVisited++
	for _, pos := range l.elements {
		if !o.allowed(pos) {
			continue
		}
		o.stats.Distances++
		d := t.storage.Distance(int(pos), query, best.MaxKey())
		if d == distance.TooFar {
			o.stats.Abandoned++
			continue
		}
		best.Put(d, pos)
	}
}

func toResults(l *sortedlist.List[int32]) []Result {
	out := make([]Result, 0, l.Len())
	for _, e := range l.Entries() {
		out = append(out, Result{Pos: int(e.Value), Distance: e.Key})
	}
	return out
}
