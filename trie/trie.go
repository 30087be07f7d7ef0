// Package trie implements the SFA trie: an alphabet-ary trie keyed by SFA
// word prefixes, one symbol per level, with per-node bounding boxes over the
// coefficient vectors beneath each node.
//
// A trie is built (optionally as several partitions that are merged), then
// compressed once, then searched. Build, merge and compress are not safe for
// concurrent use. Searches do not mutate the trie and may run concurrently
// once building has finished.
//
//	t, _ := trie.New(4, 8, trie.WithStorage(store), trie.WithLeafThreshold(10))
//	_ = t.Insert(trie.Approximation{Word: w, Coeffs: coeffs, Pos: pos})
//	t.Compress()
//	results := t.SearchKNN(trie.Query{Series: q, Coeffs: qc}, 5)
package trie

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/hupe1980/sfatrie/word"
)

// Approximation is a build-time record: the packed word, the coefficients the
// word was quantized from and the storage position of the element.
type Approximation struct {
	Word   word.Word
	Coeffs []float64
	Pos    int
}

const (
	// DefaultLeafThreshold is the leaf size above which leaves split.
	DefaultLeafThreshold = 16
	// DefaultWeight is the lower-bound weight of a coefficient whose
	// conjugate is not stored.
	DefaultWeight = 2.0
)

type options struct {
	leafThreshold   int
	minDepth        int
	compactChildren bool
	weights         []float64
	storage         Storage
	logger          *slog.Logger
}

// Option configures a Trie.
type Option func(*options)

// WithLeafThreshold sets the maximum leaf size below the last level.
func WithLeafThreshold(n int) Option {
	return func(o *options) {
		o.leafThreshold = n
	}
}

// WithMinDepth forces internal nodes down to depth d, so that partitions
// built independently share their upper levels and can be merged.
func WithMinDepth(d int) Option {
	return func(o *options) {
		o.minDepth = d
	}
}

// WithCompactChildren makes Compress replace dense child slices by sorted
// key tables.
func WithCompactChildren(enabled bool) Option {
	return func(o *options) {
		o.compactChildren = enabled
	}
}

// WithWeights sets the per-dimension lower-bound weights.
func WithWeights(w []float64) Option {
	return func(o *options) {
		o.weights = w
	}
}

// WithStorage sets the raw storage elements are verified against.
func WithStorage(s Storage) Option {
	return func(o *options) {
		o.storage = s
	}
}

// WithLogger sets a logger for build events.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Trie is an SFA trie over a Storage.
type Trie struct {
	packer        word.Packer
	alphabetSize  int
	leafThreshold int
	minDepth      int
	compact       bool
	weights       []float64
	storage       Storage
	logger        *slog.Logger

	root       Node
	approx     []Approximation
	size       int
	leaves     int32
	compressed bool
}

// New creates an empty trie for words of wordLength symbols.
func New(wordLength, alphabetSize int, opts ...Option) (*Trie, error) {
	packer, err := word.NewPacker(wordLength, alphabetSize)
	if err != nil {
		return nil, err
	}
	o := options{leafThreshold: DefaultLeafThreshold}
	for _, opt := range opts {
		opt(&o)
	}
	if o.leafThreshold <= 0 {
		return nil, fmt.Errorf("trie: leaf threshold must be positive, got %d", o.leafThreshold)
	}
	if o.minDepth < 0 || o.minDepth > wordLength {
		return nil, fmt.Errorf("trie: min depth %d outside [0, %d]", o.minDepth, wordLength)
	}
	if o.weights == nil {
		o.weights = make([]float64, wordLength)
		for i := range o.weights {
			o.weights[i] = DefaultWeight
		}
	}
	if len(o.weights) != wordLength {
		return nil, fmt.Errorf("trie: %d weights for word length %d", len(o.weights), wordLength)
	}

	return &Trie{
		packer:        packer,
		alphabetSize:  alphabetSize,
		leafThreshold: o.leafThreshold,
		minDepth:      o.minDepth,
		compact:       o.compactChildren,
		weights:       o.weights,
		storage:       o.storage,
		logger:        o.logger,
	}, nil
}

// WordLength returns the number of symbols per word, the maximum depth.
func (t *Trie) WordLength() int { return t.packer.Length() }

// AlphabetSize returns the fan-out of internal nodes.
func (t *Trie) AlphabetSize() int { return t.alphabetSize }

// LeafThreshold returns the configured leaf threshold.
func (t *Trie) LeafThreshold() int { return t.leafThreshold }

// MinDepth returns the forced internal depth.
func (t *Trie) MinDepth() int { return t.minDepth }

// Packer returns the word packer.
func (t *Trie) Packer() word.Packer { return t.packer }

// Weights returns the lower-bound weights.
func (t *Trie) Weights() []float64 { return t.weights }

// Storage returns the raw storage.
func (t *Trie) Storage() Storage { return t.storage }

// Mode returns the matching mode of the storage.
func (t *Trie) Mode() Mode {
	if t.storage == nil {
		return WholeSeries
	}
	return t.storage.Mode()
}

// Root returns the root node, or nil for an empty trie.
func (t *Trie) Root() Node { return t.root }

// Compressed reports whether Compress has run.
func (t *Trie) Compressed() bool { return t.compressed }

// Approximation returns the arena record at slot i.
func (t *Trie) Approximation(i int) (Approximation, error) {
	if t.compressed {
		return Approximation{}, ErrCompressed
	}
	if i < 0 || i >= len(t.approx) {
		return Approximation{}, fmt.Errorf("%w: slot %d of %d", ErrInvalidApproximation, i, len(t.approx))
	}
	return t.approx[i], nil
}

// InsertSeries appends series to a SeriesStorage and inserts it under w.
// It returns the storage position.
func (t *Trie) InsertSeries(series []float64, w word.Word, coeffs []float64) (int, error) {
	if t.compressed {
		return 0, ErrCompressed
	}
	store, ok := t.storage.(*SeriesStorage)
	if !ok {
		return 0, fmt.Errorf("%w: InsertSeries needs a SeriesStorage", ErrInvalidApproximation)
	}
	if err := t.validate(coeffs); err != nil {
		return 0, err
	}
	pos, err := store.Append(series)
	if err != nil {
		return 0, err
	}
	return pos, t.Insert(Approximation{Word: w, Coeffs: coeffs, Pos: pos})
}

// Insert adds one approximation. Its position must address the storage.
func (t *Trie) Insert(a Approximation) error {
	if t.compressed {
		return ErrCompressed
	}
	if err := t.validate(a.Coeffs); err != nil {
		return err
	}
	if a.Pos < 0 || a.Pos > math.MaxInt32 || (t.storage != nil && a.Pos >= t.storage.Len()) {
		return fmt.Errorf("%w: position %d out of range", ErrInvalidApproximation, a.Pos)
	}
	if len(t.approx) >= math.MaxInt32 {
		return fmt.Errorf("%w: arena full", ErrInvalidApproximation)
	}

	slot := int32(len(t.approx))
	t.approx = append(t.approx, a)
	t.root = t.insert(t.root, slot, 0)
	t.size++
	return nil
}

// BuildBulk inserts every approximation of every batch. Combined with
// WithMinDepth it produces partitions that Merge can graft onto each other.
func (t *Trie) BuildBulk(batches [][]Approximation) error {
	total := 0
	for _, batch := range batches {
		for _, a := range batch {
			if err := t.Insert(a); err != nil {
				return err
			}
		}
		total += len(batch)
	}
	if t.logger != nil {
		t.logger.Debug("trie bulk build",
			slog.Int("batches", len(batches)),
			slog.Int("inserted", total),
			slog.Int("size", t.size),
		)
	}
	return nil
}

func (t *Trie) validate(coeffs []float64) error {
	if len(coeffs) != t.WordLength() {
		return fmt.Errorf("%w: %d coefficients for word length %d", ErrInvalidApproximation, len(coeffs), t.WordLength())
	}
	return nil
}

func (t *Trie) symbol(slot int32, depth int) uint8 {
	return t.packer.Symbol(t.approx[slot].Word, depth)
}

// insert places arena slot beneath n, a node at depth, and returns the node
// that replaces n in its parent.
func (t *Trie) insert(n Node, slot int32, depth int) Node {
	a := &t.approx[slot]
	dims := t.WordLength()

	switch node := n.(type) {
	case nil:
		if depth < t.minDepth {
			in := newInternal(depth, dims)
			in.box.Extend(a.Coeffs)
			in.setChild(t.symbol(slot, depth), t.insert(nil, slot, depth+1), t.alphabetSize)
			return in
		}
		leaf := newLeaf(depth, dims)
		leaf.add(int32(a.Pos), slot, a.Coeffs)
		return leaf

	case *Leaf:
		if len(node.elements) < t.leafThreshold || depth == dims {
			node.add(int32(a.Pos), slot, a.Coeffs)
			return node
		}
		return t.split(node, slot)

	case *Internal:
		node.box.Extend(a.Coeffs)
		s := t.symbol(slot, depth)
		node.setChild(s, t.insert(node.Child(s), slot, depth+1), t.alphabetSize)
		return node
	}
	panic(fmt.Sprintf("trie: unknown node type %T", n))
}

// split turns an overflowing leaf into an internal node, reinserting its
// elements one level deeper before inserting slot.
func (t *Trie) split(leaf *Leaf, slot int32) Node {
	var n Node = newInternal(leaf.depth, t.WordLength())
	for _, s := range leaf.approx {
		n = t.insert(n, s, leaf.depth)
	}
	return t.insert(n, slot, leaf.depth)
}
