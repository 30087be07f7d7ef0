package trie

import (
	"fmt"
	"strconv"

	"github.com/bits-and-blooms/bitset"
)

// Stats summarises the shape of a trie. Shared leaves count once.
type Stats struct {
	Internals int
	Leaves    int
	Elements  int
	MaxDepth  int
	// AvgLeafFill is the mean leaf size divided by the leaf threshold.
	AvgLeafFill float64
}

// Size returns the number of indexed elements.
func (t *Trie) Size() int {
	return t.Stats().Elements
}

// Depth returns the depth of the deepest node.
func (t *Trie) Depth() int {
	return t.Stats().MaxDepth
}

// Stats walks the trie and reports its shape.
func (t *Trie) Stats() Stats {
	var st Stats
	seen := t.newLeafSet()
	walk(t.root, func(n Node) {
		if n.Depth() > st.MaxDepth {
			st.MaxDepth = n.Depth()
		}
		switch node := n.(type) {
		case *Internal:
			st.Internals++
		case *Leaf:
			if !visitLeaf(seen, node) {
				return
			}
			st.Leaves++
			st.Elements += len(node.elements)
		}
	})
	if st.Leaves > 0 {
		st.AvgLeafFill = float64(st.Elements) / float64(st.Leaves) / float64(t.leafThreshold)
	}
	return st
}

func (t *Trie) newLeafSet() *bitset.BitSet {
	return bitset.New(uint(t.leaves))
}

// visitLeaf marks a shared leaf as seen and reports whether it was new.
// Leaves without an ID are never shared.
func visitLeaf(seen *bitset.BitSet, l *Leaf) bool {
	if l.id < 0 {
		return true
	}
	if seen.Test(uint(l.id)) {
		return false
	}
	seen.Set(uint(l.id))
	return true
}

// Check verifies the structural invariants of the whole trie and returns an
// *InvariantError naming the first defective node.
func (t *Trie) Check() error {
	if t.root == nil {
		if t.size != 0 {
			return &InvariantError{Path: "root", Reason: fmt.Sprintf("empty trie reports %d elements", t.size)}
		}
		return nil
	}
	seen := t.newLeafSet()
	if err := t.checkNode(t.root, "root", nil, nil, seen); err != nil {
		return err
	}
	if got := t.Size(); got != t.size {
		return &InvariantError{Path: "root", Reason: fmt.Sprintf("counted %d elements, inserted %d", got, t.size)}
	}
	return nil
}

// checkNode verifies n and its subtree. prefix holds the symbols on the path
// from the root, so its length is the expected depth.
func (t *Trie) checkNode(n Node, path string, prefix []uint8, parent *Box, seen *bitset.BitSet) error {
	depth := len(prefix)
	fail := func(format string, args ...any) error {
		return &InvariantError{Path: path, Reason: fmt.Sprintf(format, args...)}
	}

	if n.Depth() != depth {
		return fail("depth %d, expected %d", n.Depth(), depth)
	}
	if depth > t.WordLength() {
		return fail("depth %d beyond word length %d", depth, t.WordLength())
	}
	box := n.Bounds()
	if parent != nil && !parent.Encloses(box) {
		return fail("bounding box not enclosed by parent")
	}

	switch node := n.(type) {
	case *Leaf:
		if !visitLeaf(seen, node) {
			return nil
		}
		return t.checkLeaf(node, prefix, fail)

	case *Internal:
		if node.NumChildren() == 0 {
			return fail("internal node without children")
		}
		if depth == t.WordLength() {
			return fail("internal node at maximum depth")
		}
		if node.keys != nil {
			if len(node.keys) != len(node.children) {
				return fail("%d keys for %d children", len(node.keys), len(node.children))
			}
			for i := 1; i < len(node.keys); i++ {
				if node.keys[i-1] >= node.keys[i] {
					return fail("child keys not ascending")
				}
			}
		} else if len(node.children) != t.alphabetSize {
			return fail("%d child slots for alphabet %d", len(node.children), t.alphabetSize)
		}
		for sym, child := range node.Children() {
			if int(sym) >= t.alphabetSize {
				return fail("child symbol %d outside alphabet %d", sym, t.alphabetSize)
			}
			childPrefix := append(prefix[:depth:depth], sym)
			if err := t.checkNode(child, path+"/"+strconv.Itoa(int(sym)), childPrefix, &box, seen); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *Trie) checkLeaf(l *Leaf, prefix []uint8, fail func(string, ...any) error) error {
	if len(l.elements) == 0 {
		return fail("empty leaf")
	}
	if t.storage != nil {
		for _, pos := range l.elements {
			if int(pos) >= t.storage.Len() {
				return fail("element %d outside storage of %d", pos, t.storage.Len())
			}
		}
	}

	if t.compressed {
		if l.approx != nil {
			return fail("arena indices after compression")
		}
		if l.id < 0 {
			return fail("leaf without id after compression")
		}
		return nil
	}

	if len(l.approx) != len(l.elements) {
		return fail("%d arena indices for %d elements", len(l.approx), len(l.elements))
	}
	if len(l.elements) > t.leafThreshold && l.depth < t.WordLength() {
		return fail("%d elements above threshold %d at depth %d", len(l.elements), t.leafThreshold, l.depth)
	}
	for i, slot := range l.approx {
		if slot < 0 || int(slot) >= len(t.approx) {
			return fail("arena index %d out of range", slot)
		}
		a := t.approx[slot]
		if a.Pos != int(l.elements[i]) {
			return fail("arena index %d holds position %d, leaf holds %d", slot, a.Pos, l.elements[i])
		}
		if !l.box.Contains(a.Coeffs) {
			return fail("element %d outside leaf bounding box", a.Pos)
		}
		for d, sym := range prefix {
			if t.packer.Symbol(a.Word, d) != sym {
				return fail("element %d does not match the path symbol at depth %d", a.Pos, d)
			}
		}
	}
	return nil
}
