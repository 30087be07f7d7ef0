package trie

import (
	"fmt"
	"log/slog"
	"math"
)

// Merge grafts the children of other's root onto this trie, resolving
// collisions the way insertion does. Both tries must be uncompressed, share
// word length, alphabet and storage, and other's root must not be a leaf.
//
// Overlapping content is neither rejected nor deduplicated: an element present
// in both tries is indexed twice. Callers partition by disjoint prefixes.
//
// other is emptied by a successful merge.
func (t *Trie) Merge(other *Trie) error {
	if t.compressed || other.compressed {
		return ErrCompressed
	}
	if t.WordLength() != other.WordLength() || t.alphabetSize != other.alphabetSize {
		return fmt.Errorf("%w: word length %d/%d, alphabet %d/%d", ErrIncompatible,
			t.WordLength(), other.WordLength(), t.alphabetSize, other.alphabetSize)
	}
	if t.storage != other.storage {
		return ErrStorageMismatch
	}
	if other.root == nil {
		return nil
	}
	if _, ok := other.root.(*Leaf); ok {
		return ErrDonorHasElements
	}
	if len(t.approx)+len(other.approx) > math.MaxInt32 {
		return fmt.Errorf("%w: arena full", ErrInvalidApproximation)
	}

	offset := int32(len(t.approx))
	shiftSlots(other.root, offset)
	t.approx = append(t.approx, other.approx...)
	t.root = t.mergeNode(t.root, other.root, 0)
	t.size += other.size

	if t.logger != nil {
		t.logger.Debug("trie merged",
			slog.Int("donor_size", other.size),
			slog.Int("size", t.size),
		)
	}

	other.root = nil
	other.approx = nil
	other.size = 0
	return nil
}

func shiftSlots(n Node, offset int32) {
	switch node := n.(type) {
	case *Leaf:
		for i := range node.approx {
			node.approx[i] += offset
		}
	case *Internal:
		for _, c := range node.Children() {
			shiftSlots(c, offset)
		}
	}
}

// mergeNode merges src into dst, both at depth, and returns the node that
// replaces dst.
func (t *Trie) mergeNode(dst, src Node, depth int) Node {
	if dst == nil {
		return src
	}

	switch s := src.(type) {
	case *Leaf:
		for _, slot := range s.approx {
			dst = t.insert(dst, slot, depth)
		}
		return dst

	case *Internal:
		d, ok := dst.(*Internal)
		if !ok {
			// Adopt the donor subtree and reinsert the leaf's elements into it.
			var n Node = s
			for _, slot := range dst.(*Leaf).approx {
				n = t.insert(n, slot, depth)
			}
			return n
		}
		d.box.Union(s.box)
		for sym, child := range s.Children() {
			d.setChild(sym, t.mergeNode(d.Child(sym), child, depth+1), t.alphabetSize)
		}
		return d
	}
	panic(fmt.Sprintf("trie: unknown node type %T", src))
}
