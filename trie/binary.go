package trie

import (
	"fmt"
	"io"
	"math"

	"github.com/hupe1980/sfatrie/persistence"
	"github.com/hupe1980/sfatrie/word"
)

// Stream layout (little-endian):
//
//	magic:u32 version:u16
//	wordLength:u32 alphabetSize:u32 leafThreshold:u32 minDepth:u32
//	compact:u8 compressed:u8 size:u64 leaves:u32 weights:[]f64
//	storage: kind:u8, then per kind
//	  series: dim:u32 count:u32 values:f64 x count*dim
//	  window: windowSize:u32 series:[]f64 means:[]f64 invStds:[]f64
//	arena: count:u32, then per record word:u64 pos:i64 coeffs:f64 x wordLength
//	nodes: preorder, one tag per child slot
//	  nil | leaf(depth id elements arena box) | internal(depth box slots) | shared-leaf id
const (
	streamMagic   = 0x53464154 // "SFAT"
	streamVersion = 1
)

const (
	tagNil uint8 = iota
	tagLeaf
	tagInternal
	tagSharedLeaf
)

const (
	storageNone uint8 = iota
	storageSeries
	storageWindow
)

// WriteTo implements io.WriterTo.
func (t *Trie) WriteTo(w io.Writer) (int64, error) {
	bw := persistence.NewWriter(w)
	bw.Uint32(streamMagic)
	bw.Uint16(streamVersion)
	bw.Uint32(uint32(t.WordLength()))
	bw.Uint32(uint32(t.alphabetSize))
	bw.Uint32(uint32(t.leafThreshold))
	bw.Uint32(uint32(t.minDepth))
	bw.Bool(t.compact)
	bw.Bool(t.compressed)
	bw.Uint64(uint64(t.size))
	bw.Uint32(uint32(t.leaves))
	bw.Float64s(t.weights)

	if err := writeStorage(bw, t.storage); err != nil {
		return bw.Written(), err
	}

	bw.Len(len(t.approx))
	for _, a := range t.approx {
		bw.Uint64(uint64(a.Word))
		bw.Int64(int64(a.Pos))
		bw.RawFloat64s(a.Coeffs)
	}

	written := make(map[int32]bool)
	t.writeNode(bw, t.root, written)
	return bw.Written(), bw.Err()
}

func writeStorage(bw *persistence.Writer, s Storage) error {
	switch st := s.(type) {
	case nil:
		bw.Uint8(storageNone)
	case *SeriesStorage:
		bw.Uint8(storageSeries)
		bw.Uint32(uint32(st.dim))
		bw.Len(len(st.series))
		for _, series := range st.series {
			bw.RawFloat64s(series)
		}
	case *WindowStorage:
		bw.Uint8(storageWindow)
		bw.Uint32(uint32(st.windowSize))
		bw.Float64s(st.series)
		bw.Float64s(st.means)
		bw.Float64s(st.invStds)
	default:
		return fmt.Errorf("trie: cannot encode storage %T", s)
	}
	return nil
}

func writeBox(bw *persistence.Writer, b Box) {
	bw.RawFloat64s(b.Min)
	bw.RawFloat64s(b.Max)
}

func (t *Trie) writeNode(bw *persistence.Writer, n Node, written map[int32]bool) {
	switch node := n.(type) {
	case nil:
		bw.Uint8(tagNil)
	case *Leaf:
		if node.id >= 0 && written[node.id] {
			bw.Uint8(tagSharedLeaf)
			bw.Int32(node.id)
			return
		}
		if node.id >= 0 {
			written[node.id] = true
		}
		bw.Uint8(tagLeaf)
		bw.Uint32(uint32(node.depth))
		bw.Int32(node.id)
		bw.Int32s(node.elements)
		bw.Bool(node.approx != nil)
		if node.approx != nil {
			bw.Int32s(node.approx)
		}
		writeBox(bw, node.box)
	case *Internal:
		bw.Uint8(tagInternal)
		bw.Uint32(uint32(node.depth))
		writeBox(bw, node.box)
		bw.Bool(node.keys != nil)
		if node.keys != nil {
			bw.Bytes(node.keys)
			for _, c := range node.children {
				t.writeNode(bw, c, written)
			}
			return
		}
		// Dense slots: one tag per symbol, nil included.
		for s := 0; s < t.alphabetSize; s++ {
			var c Node
			if s < len(node.children) {
				c = node.children[s]
			}
			t.writeNode(bw, c, written)
		}
	}
}

// ReadFrom implements io.ReaderFrom. It replaces the contents of t with the
// decoded trie, keeping t's logger.
func (t *Trie) ReadFrom(r io.Reader) (int64, error) {
	br := persistence.NewReader(r)
	if magic := br.Uint32(); br.Err() == nil && magic != streamMagic {
		return br.Read(), fmt.Errorf("%w: magic 0x%08x", ErrInvalidFormat, magic)
	}
	if v := br.Uint16(); br.Err() == nil && v != streamVersion {
		return br.Read(), fmt.Errorf("%w: version %d", ErrInvalidFormat, v)
	}

	wordLength := int(br.Uint32())
	alphabetSize := int(br.Uint32())
	leafThreshold := int(br.Uint32())
	minDepth := int(br.Uint32())
	compact := br.Bool()
	compressed := br.Bool()
	size := br.Uint64()
	leaves := br.Uint32()
	weights := br.Float64s()
	if err := br.Err(); err != nil {
		return br.Read(), fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	packer, err := word.NewPacker(wordLength, alphabetSize)
	if err != nil {
		return br.Read(), fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if len(weights) != wordLength || leafThreshold <= 0 || minDepth > wordLength ||
		size > math.MaxInt32 || leaves > math.MaxInt32 {
		return br.Read(), fmt.Errorf("%w: inconsistent configuration", ErrInvalidFormat)
	}

	storage := readStorage(br)

	count := br.Len()
	var approx []Approximation
	if count > 0 {
		approx = make([]Approximation, count)
	}
	for i := 0; i < count && br.Err() == nil; i++ {
		approx[i].Word = word.Word(br.Uint64())
		approx[i].Pos = int(br.Int64())
		approx[i].Coeffs = br.RawFloat64s(wordLength)
	}

	d := decoder{
		br:           br,
		dims:         wordLength,
		alphabetSize: alphabetSize,
		shared:       make(map[int32]*Leaf),
	}
	root := d.readNode(0)
	if err := br.Err(); err != nil {
		return br.Read(), fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	*t = Trie{
		packer:        packer,
		alphabetSize:  alphabetSize,
		leafThreshold: leafThreshold,
		minDepth:      minDepth,
		compact:       compact,
		weights:       weights,
		storage:       storage,
		logger:        t.logger,
		root:          root,
		approx:        approx,
		size:          int(size),
		leaves:        int32(leaves),
		compressed:    compressed,
	}
	return br.Read(), nil
}

// Decode reads a trie written by WriteTo.
func Decode(r io.Reader, opts ...Option) (*Trie, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	t := &Trie{logger: o.logger}
	if _, err := t.ReadFrom(r); err != nil {
		return nil, err
	}
	return t, nil
}

func readStorage(br *persistence.Reader) Storage {
	switch kind := br.Uint8(); kind {
	case storageNone:
		return nil
	case storageSeries:
		dim := int(br.Uint32())
		count := br.Len()
		if dim <= 0 || dim > persistence.MaxSliceLen {
			br.Fail(fmt.Errorf("series dimension %d", dim))
			return nil
		}
		s := &SeriesStorage{dim: dim}
		for i := 0; i < count && br.Err() == nil; i++ {
			s.series = append(s.series, br.RawFloat64s(dim))
		}
		return s
	case storageWindow:
		windowSize := int(br.Uint32())
		s := &WindowStorage{
			windowSize: windowSize,
			series:     br.Float64s(),
			means:      br.Float64s(),
			invStds:    br.Float64s(),
		}
		if br.Err() == nil && (len(s.means) != len(s.invStds) || len(s.series)-windowSize+1 != len(s.means)) {
			br.Fail(fmt.Errorf("window storage statistics do not match series"))
		}
		return s
	default:
		br.Fail(fmt.Errorf("unknown storage kind %d", kind))
		return nil
	}
}

type decoder struct {
	br           *persistence.Reader
	dims         int
	alphabetSize int
	shared       map[int32]*Leaf
}

func (d *decoder) readBox() Box {
	return Box{Min: d.br.RawFloat64s(d.dims), Max: d.br.RawFloat64s(d.dims)}
}

func (d *decoder) readNode(depth int) Node {
	if d.br.Err() != nil {
		return nil
	}
	if depth > d.dims {
		d.br.Fail(fmt.Errorf("node depth %d beyond word length %d", depth, d.dims))
		return nil
	}

	switch tag := d.br.Uint8(); tag {
	case tagNil:
		return nil

	case tagSharedLeaf:
		id := d.br.Int32()
		leaf, ok := d.shared[id]
		if !ok {
			d.br.Fail(fmt.Errorf("reference to unknown leaf %d", id))
			return nil
		}
		return leaf

	case tagLeaf:
		leaf := &Leaf{depth: int(d.br.Uint32()), id: d.br.Int32()}
		leaf.elements = d.br.Int32s()
		if d.br.Bool() {
			leaf.approx = d.br.Int32s()
			if leaf.approx == nil {
				leaf.approx = []int32{}
			}
		}
		leaf.box = d.readBox()
		if leaf.id >= 0 {
			d.shared[leaf.id] = leaf
		}
		return leaf

	case tagInternal:
		n := &Internal{depth: int(d.br.Uint32())}
		n.box = d.readBox()
		if d.br.Bool() {
			n.keys = d.br.Bytes()
			if n.keys == nil {
				n.keys = []uint8{}
			}
			n.children = make([]Node, len(n.keys))
			for i := range n.keys {
				n.children[i] = d.readNode(depth + 1)
			}
			return n
		}
		n.children = make([]Node, d.alphabetSize)
		for s := range n.children {
			n.children[s] = d.readNode(depth + 1)
		}
		return n

	default:
		d.br.Fail(fmt.Errorf("unknown node tag %d", tag))
		return nil
	}
}
