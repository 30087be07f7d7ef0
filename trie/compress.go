package trie

import "log/slog"

// Compress runs the one-time terminal pass: adjacent leaf children whose
// combined size stays within the leaf threshold are merged into one shared
// leaf, every leaf gets an ID, and the approximation arena is dropped. With
// WithCompactChildren the dense child slices are replaced by key tables.
//
// Compress never changes Size. A second call does nothing.
func (t *Trie) Compress() {
	if t.compressed {
		return
	}
	t.compressed = true

	before := t.leafCount()
	switch root := t.root.(type) {
	case *Leaf:
		t.assignID(root)
	case *Internal:
		t.compressInternal(root)
	}
	t.approx = nil

	if t.logger != nil {
		t.logger.Debug("trie compressed",
			slog.Int("leaves_before", before),
			slog.Int("leaves_after", int(t.leaves)),
			slog.Int("size", t.size),
		)
	}
}

func (t *Trie) assignID(l *Leaf) {
	l.id = t.leaves
	l.approx = nil
	t.leaves++
}

func (t *Trie) compressInternal(n *Internal) {
	// run is the shared leaf absorbing the current sequence of adjacent leaves.
	// Empty slots do not break a run, internal children do.
	var run *Leaf
	for i, child := range n.children {
		switch c := child.(type) {
		case nil:
			continue
		case *Internal:
			t.compressInternal(c)
			run = nil
		case *Leaf:
			if run != nil && len(run.elements)+len(c.elements) <= t.leafThreshold {
				run.absorb(c)
				n.children[i] = run
				continue
			}
			run = c
			t.assignID(c)
		}
	}
	if t.compact {
		n.compact()
	}
}

func (t *Trie) leafCount() int {
	count := 0
	walk(t.root, func(n Node) {
		if _, ok := n.(*Leaf); ok {
			count++
		}
	})
	return count
}

// walk visits every node slot depth-first. A shared leaf is visited once per
// slot referencing it.
func walk(n Node, fn func(Node)) {
	if n == nil {
		return
	}
	fn(n)
	if in, ok := n.(*Internal); ok {
		for _, c := range in.Children() {
			walk(c, fn)
		}
	}
}
