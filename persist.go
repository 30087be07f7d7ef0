package sfatrie

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/hupe1980/sfatrie/blobstore"
	"github.com/hupe1980/sfatrie/persistence"
	"github.com/hupe1980/sfatrie/sfa"
	"github.com/hupe1980/sfatrie/trie"
)

// Snapshot payload layout (little-endian), followed by the quantizer as a
// length-prefixed sfa.MarshalBinary blob and the trie stream:
//
//	windowSize:u32 wordLength:u32 alphabetSize:u32 coefficients:u32 (0 = default)
//	histogram:u8 leafThreshold:u32 minDepth:u32
//	zNormalize:u8 supervised:u8 compactChildren:u8

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// WriteTo writes a snapshot of the built index. It implements io.WriterTo.
func (ix *Index) WriteTo(w io.Writer) (int64, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.trie == nil {
		return 0, ErrNotBuilt
	}

	var flags uint8
	if ix.trie.Compressed() {
		flags |= persistence.FlagCompressedTrie
	}
	if ix.trie.Mode() == Subsequence {
		flags |= persistence.FlagSubsequence
	}
	cw := &countingWriter{w: w}
	err := persistence.WriteSnapshot(cw, ix.opts.compression, flags, ix.writePayload)
	return cw.n, err
}

func (ix *Index) writePayload(w io.Writer) error {
	bw := persistence.NewWriter(w)
	c := ix.cfg
	bw.Uint32(uint32(c.WindowSize))
	bw.Uint32(uint32(c.WordLength))
	bw.Uint32(uint32(c.AlphabetSize))
	bw.Uint32(uint32(c.Coefficients))
	bw.Uint8(uint8(c.Histogram))
	bw.Uint32(uint32(c.LeafThreshold))
	bw.Uint32(uint32(c.MinDepth))
	bw.Bool(c.ZNormalize)
	bw.Bool(c.Supervised)
	bw.Bool(c.CompactChildren)

	q, err := ix.quantizer.MarshalBinary()
	if err != nil {
		return err
	}
	bw.Bytes(q)
	if err := bw.Err(); err != nil {
		return err
	}
	_, err = ix.trie.WriteTo(w)
	return err
}

// ReadIndex reads a snapshot written by WriteTo.
func ReadIndex(r io.Reader, opts ...Option) (*Index, error) {
	var ix *Index
	_, err := persistence.ReadSnapshot(r, func(pr io.Reader, h persistence.FileHeader) error {
		var err error
		ix, err = readPayload(pr, h, opts)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ix, nil
}

func readPayload(r io.Reader, h persistence.FileHeader, opts []Option) (*Index, error) {
	br := persistence.NewReader(r)
	cfg := Config{
		WindowSize:   int(br.Uint32()),
		WordLength:   int(br.Uint32()),
		AlphabetSize: int(br.Uint32()),
		Coefficients: int(br.Uint32()),
		Histogram:    sfa.HistogramKind(br.Uint8()),
	}
	cfg.LeafThreshold = int(br.Uint32())
	cfg.MinDepth = int(br.Uint32())
	cfg.ZNormalize = br.Bool()
	cfg.Supervised = br.Bool()
	cfg.CompactChildren = br.Bool()
	q := br.Bytes()
	if err := br.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}

	ix, err := NewIndex(cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	if err := ix.quantizer.UnmarshalBinary(q); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	t, err := trie.Decode(r, trie.WithLogger(ix.opts.logger.Logger))
	if err != nil {
		return nil, err
	}

	quant := ix.quantizer
	subsequence := h.Flags&persistence.FlagSubsequence != 0
	compressed := h.Flags&persistence.FlagCompressedTrie != 0
	switch {
	case !quant.Fitted() || quant.WordLength() != cfg.WordLength || quant.AlphabetSize() != cfg.AlphabetSize:
		return nil, fmt.Errorf("%w: quantizer does not match config", ErrInvalidSnapshot)
	case t.WordLength() != cfg.WordLength || t.AlphabetSize() != cfg.AlphabetSize:
		return nil, fmt.Errorf("%w: trie does not match config", ErrInvalidSnapshot)
	case t.Storage() == nil || t.Storage().Dim() != cfg.WindowSize:
		return nil, fmt.Errorf("%w: storage does not match window size", ErrInvalidSnapshot)
	case (t.Mode() == Subsequence) != subsequence || t.Compressed() != compressed:
		return nil, fmt.Errorf("%w: header flags do not match trie", ErrInvalidSnapshot)
	}
	ix.trie = t
	return ix, nil
}

// SaveToFile writes a snapshot to filename atomically.
func (ix *Index) SaveToFile(filename string) error {
	err := persistence.SaveToFile(filename, func(w io.Writer) error {
		_, err := ix.WriteTo(w)
		return err
	})
	ix.opts.logger.LogSnapshot(context.Background(), filename, err)
	return err
}

// LoadFromFile reads a snapshot written by SaveToFile.
func LoadFromFile(filename string, opts ...Option) (*Index, error) {
	var ix *Index
	err := persistence.LoadFromFile(filename, func(r io.Reader) error {
		var err error
		ix, err = ReadIndex(r, opts...)
		return err
	})
	logLoad(context.Background(), opts, filename, ix, err)
	if err != nil {
		return nil, err
	}
	return ix, nil
}

// Save writes a snapshot to store under name.
func (ix *Index) Save(ctx context.Context, store blobstore.BlobStore, name string) error {
	var buf bytes.Buffer
	_, err := ix.WriteTo(&buf)
	if err == nil {
		err = store.Put(ctx, name, buf.Bytes())
	}
	ix.opts.logger.LogSnapshot(ctx, name, err)
	return err
}

// Load reads a snapshot written by Save.
func Load(ctx context.Context, store blobstore.BlobStore, name string, opts ...Option) (*Index, error) {
	ix, err := load(ctx, store, name, opts)
	logLoad(ctx, opts, name, ix, err)
	return ix, err
}

func load(ctx context.Context, store blobstore.BlobStore, name string, opts []Option) (*Index, error) {
	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer blob.Close()

	r, err := blobstore.NewReader(ctx, blob)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return ReadIndex(r, opts...)
}

func logLoad(ctx context.Context, opts []Option, source string, ix *Index, err error) {
	o := applyOptions(opts)
	size := 0
	if ix != nil && err == nil {
		size = ix.Size()
	}
	o.logger.LogLoad(ctx, source, size, err)
}

// Publish saves a snapshot under name and points blobstore.CurrentName at
// it. With a commit store the pointer update fails if another publisher
// got there first.
func (ix *Index) Publish(ctx context.Context, store blobstore.BlobStore, name string) error {
	if err := ix.Save(ctx, store, name); err != nil {
		return err
	}
	return store.Put(ctx, blobstore.CurrentName, []byte(name))
}

// LoadCurrent loads the snapshot blobstore.CurrentName points at.
func LoadCurrent(ctx context.Context, store blobstore.BlobStore, opts ...Option) (*Index, error) {
	name, err := blobstore.ReadAll(ctx, store, blobstore.CurrentName)
	if err != nil {
		return nil, err
	}
	return Load(ctx, store, string(name), opts...)
}
