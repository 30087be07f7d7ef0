package trie

import (
	"iter"
	"math"
	"slices"
)

// Box is a componentwise envelope over coefficient vectors.
// An empty box has Min > Max in every dimension.
type Box struct {
	Min []float64
	Max []float64
}

func newBox(dims int) Box {
	b := Box{Min: make([]float64, dims), Max: make([]float64, dims)}
	for i := range dims {
		b.Min[i] = math.Inf(1)
		b.Max[i] = math.Inf(-1)
	}
	return b
}

// Empty reports whether the box encloses nothing.
func (b Box) Empty() bool {
	return len(b.Min) == 0 || b.Min[0] > b.Max[0]
}

// Extend grows the box to enclose p.
func (b Box) Extend(p []float64) {
	for i, v := range p {
		if v < b.Min[i] {
			b.Min[i] = v
		}
		if v > b.Max[i] {
			b.Max[i] = v
		}
	}
}

// Union grows the box to enclose o.
func (b Box) Union(o Box) {
	if o.Empty() {
		return
	}
	b.Extend(o.Min)
	b.Extend(o.Max)
}

// Contains reports whether p lies inside the box.
func (b Box) Contains(p []float64) bool {
	for i, v := range p {
		if v < b.Min[i] || v > b.Max[i] {
			return false
		}
	}
	return true
}

// Encloses reports whether o lies entirely inside the box.
func (b Box) Encloses(o Box) bool {
	if o.Empty() {
		return true
	}
	return b.Contains(o.Min) && b.Contains(o.Max)
}

// LowerBound returns the weighted squared distance from q to the nearest point
// of the box. Dimensions where q lies inside the box contribute nothing.
func (b Box) LowerBound(q, weights []float64) float64 {
	var sum float64
	for i, v := range q {
		var d float64
		switch {
		case v < b.Min[i]:
			d = b.Min[i] - v
		case v > b.Max[i]:
			d = v - b.Max[i]
		default:
			continue
		}
		sum += weights[i] * d * d
	}
	return sum
}

func (b Box) clone() Box {
	return Box{Min: slices.Clone(b.Min), Max: slices.Clone(b.Max)}
}

// Node is a trie node: either a *Leaf or an *Internal.
type Node interface {
	// Depth is the number of word symbols consumed above the node.
	Depth() int
	// Bounds is the envelope of every coefficient vector beneath the node.
	Bounds() Box

	sealed()
}

// Leaf holds element positions into the trie's raw storage.
//
// While the trie is uncompressed every element has a parallel index into the
// approximation arena. After compression the arena indices are gone and the
// leaf carries an ID that is shared by every child slot referencing it.
type Leaf struct {
	depth    int
	id       int32
	elements []int32
	approx   []int32
	box      Box
}

func newLeaf(depth, dims int) *Leaf {
	return &Leaf{depth: depth, id: -1, box: newBox(dims)}
}

func (l *Leaf) sealed() {}

// Depth implements Node.
func (l *Leaf) Depth() int { return l.depth }

// Bounds implements Node.
func (l *Leaf) Bounds() Box { return l.box }

// ID returns the leaf ID assigned by compression, or -1.
func (l *Leaf) ID() int { return int(l.id) }

// Len returns the number of elements in the leaf.
func (l *Leaf) Len() int { return len(l.elements) }

// Elements returns the storage positions held by the leaf.
func (l *Leaf) Elements() []int {
	out := make([]int, len(l.elements))
	for i, e := range l.elements {
		out[i] = int(e)
	}
	return out
}

func (l *Leaf) add(pos, slot int32, coeffs []float64) {
	l.elements = append(l.elements, pos)
	l.approx = append(l.approx, slot)
	l.box.Extend(coeffs)
}

// absorb moves the elements of o into l. Arena indices are not carried over,
// so it is only valid during compression.
func (l *Leaf) absorb(o *Leaf) {
	l.elements = append(l.elements, o.elements...)
	l.box.Union(o.box)
}

// Internal routes by the symbol at its depth.
//
// Children are a dense slice indexed by symbol, nil until the first child is
// added. After compaction keys holds the symbol of each child instead.
type Internal struct {
	depth    int
	children []Node
	keys     []uint8
	box      Box
}

func newInternal(depth, dims int) *Internal {
	return &Internal{depth: depth, box: newBox(dims)}
}

func (n *Internal) sealed() {}

// Depth implements Node.
func (n *Internal) Depth() int { return n.depth }

// Bounds implements Node.
func (n *Internal) Bounds() Box { return n.box }

// Compacted reports whether the child slots were compacted into a key table.
func (n *Internal) Compacted() bool { return n.keys != nil }

// Child returns the child for symbol s, or nil.
func (n *Internal) Child(s uint8) Node {
	if n.keys != nil {
		if i, ok := slices.BinarySearch(n.keys, s); ok {
			return n.children[i]
		}
		return nil
	}
	if int(s) >= len(n.children) {
		return nil
	}
	return n.children[s]
}

// Children yields every non-nil child slot in ascending symbol order.
// A shared leaf is yielded once per slot referencing it.
func (n *Internal) Children() iter.Seq2[uint8, Node] {
	return func(yield func(uint8, Node) bool) {
		for i, c := range n.children {
			if c == nil {
				continue
			}
			s := uint8(i)
			if n.keys != nil {
				s = n.keys[i]
			}
			if !yield(s, c) {
				return
			}
		}
	}
}

// NumChildren returns the number of non-nil child slots.
func (n *Internal) NumChildren() int {
	count := 0
	for _, c := range n.children {
		if c != nil {
			count++
		}
	}
	return count
}

func (n *Internal) setChild(s uint8, child Node, alphabetSize int) {
	if n.children == nil {
		n.children = make([]Node, alphabetSize)
	}
	n.children[s] = child
}

// compact replaces the dense child slice by a sorted key table.
func (n *Internal) compact() {
	if n.keys != nil {
		return
	}
	keys := make([]uint8, 0, len(n.children))
	children := make([]Node, 0, len(n.children))
	for i, c := range n.children {
		if c == nil {
			continue
		}
		keys = append(keys, uint8(i))
		children = append(children, c)
	}
	n.keys = keys
	n.children = children
}

// firstLeafChild returns the first child leaf, or the first child when no
// child is a leaf.
func (n *Internal) firstLeafChild() Node {
	var first Node
	for _, c := range n.children {
		if c == nil {
			continue
		}
		if l, ok := c.(*Leaf); ok {
			return l
		}
		if first == nil {
			first = c
		}
	}
	return first
}
