package bulk

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hupe1980/sfatrie/blobstore"
	"github.com/hupe1980/sfatrie/compress"
	"github.com/hupe1980/sfatrie/resource"
	"github.com/hupe1980/sfatrie/trie"
	"github.com/hupe1980/sfatrie/word"
	"golang.org/x/sync/errgroup"
)

// Config describes the words being partitioned.
type Config struct {
	WordLength   int
	AlphabetSize int
	// PrefixLength is the number of leading symbols that select a bucket.
	// Loaded tries use it as their minimum depth.
	PrefixLength int
}

// Source produces approximations for one producer goroutine. It calls emit
// once per record and must stop when emit returns an error.
type Source func(ctx context.Context, emit func(trie.Approximation) error) error

// SliceSource emits every approximation of approx in order.
func SliceSource(approx []trie.Approximation) Source {
	return func(ctx context.Context, emit func(trie.Approximation) error) error {
		for _, a := range approx {
			if err := emit(a); err != nil {
				return err
			}
		}
		return nil
	}
}

// Partitioner writes approximations into prefix buckets.
type Partitioner struct {
	store  blobstore.BlobStore
	cfg    Config
	packer word.Packer
	opts   options
}

// NewPartitioner creates a partitioner writing to store.
func NewPartitioner(store blobstore.BlobStore, cfg Config, opts ...Option) (*Partitioner, error) {
	packer, err := word.NewPacker(cfg.WordLength, cfg.AlphabetSize)
	if err != nil {
		return nil, err
	}
	if cfg.PrefixLength < 1 || cfg.PrefixLength > cfg.WordLength {
		return nil, fmt.Errorf("bulk: prefix length %d outside [1, %d]", cfg.PrefixLength, cfg.WordLength)
	}
	return &Partitioner{
		store:  store,
		cfg:    cfg,
		packer: packer,
		opts:   applyOptions(opts),
	}, nil
}

// block is one encoded flush of a bucket buffer.
type block struct {
	key     word.Word
	data    []byte
	records int
}

// Partition drains every source and writes the buckets and the manifest.
// A manifest left by an earlier run is deleted first, so a failed run
// leaves no loadable manifest behind.
func (p *Partitioner) Partition(ctx context.Context, sources ...Source) (*Manifest, error) {
	start := time.Now()
	manifestName := p.opts.name(ManifestName)
	if err := p.store.Delete(ctx, manifestName); err != nil {
		return nil, fmt.Errorf("bulk: delete stale manifest: %w", err)
	}

	blocks := make(chan block, p.opts.queueDepth)
	g, gctx := errgroup.WithContext(ctx)

	var producers sync.WaitGroup
	for i, src := range sources {
		producers.Add(1)
		g.Go(func() error {
			defer producers.Done()
			if err := p.produce(gctx, src, blocks); err != nil {
				return fmt.Errorf("bulk: source %d: %w", i, err)
			}
			return nil
		})
	}
	go func() {
		producers.Wait()
		close(blocks)
	}()

	w := newBucketWriter(p)
	g.Go(func() error {
		return w.run(gctx, blocks)
	})

	err := g.Wait()
	// Blocks still queued after a failure hold buffer reservations.
	for b := range blocks {
		p.opts.controller.ReleaseBuffer(int64(len(b.data)))
	}
	if cerr := w.closeAll(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, err
	}

	m := w.manifest()
	if err := writeManifest(ctx, p.store, manifestName, m); err != nil {
		return nil, fmt.Errorf("bulk: write manifest: %w", err)
	}

	var stored int64
	for _, b := range m.Buckets {
		stored += b.Bytes
	}
	p.opts.log("bulk partition complete",
		slog.String("records", humanize.Comma(m.Records)),
		slog.Int("buckets", len(m.Buckets)),
		slog.String("stored", humanize.Bytes(uint64(stored))),
		slog.Duration("elapsed", time.Since(start)),
	)
	return m, nil
}

func (p *Partitioner) produce(ctx context.Context, src Source, out chan<- block) error {
	buffers := make(map[word.Word]*recordBuffer)

	flush := func(key word.Word, rb *recordBuffer) error {
		data, err := compress.EncodeBlock(rb.buf.Bytes(), p.opts.compression)
		if err != nil {
			return err
		}
		b := block{key: key, data: data, records: rb.count}
		rb.reset()

		if err := p.opts.controller.AcquireBuffer(ctx, int64(len(data))); err != nil {
			return err
		}
		select {
		case out <- b:
			return nil
		case <-ctx.Done():
			p.opts.controller.ReleaseBuffer(int64(len(data)))
			return ctx.Err()
		}
	}

	err := src(ctx, func(a trie.Approximation) error {
		if len(a.Coeffs) != p.cfg.WordLength {
			return fmt.Errorf("%w: %d coefficients for word length %d",
				trie.ErrInvalidApproximation, len(a.Coeffs), p.cfg.WordLength)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		key := p.packer.Prefix(a.Word, p.cfg.PrefixLength)
		rb, ok := buffers[key]
		if !ok {
			rb = newRecordBuffer(p.cfg.WordLength, p.opts.blockRecords)
			buffers[key] = rb
		}
		rb.add(a)
		if rb.count < p.opts.blockRecords {
			return nil
		}
		return flush(key, rb)
	})
	if err != nil {
		return err
	}

	keys := make([]word.Word, 0, len(buffers))
	for key, rb := range buffers {
		if rb.count > 0 {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	for _, key := range keys {
		if err := flush(key, buffers[key]); err != nil {
			return err
		}
	}
	return nil
}

type openBucket struct {
	info BucketInfo
	blob blobstore.WritableBlob
	w    *resource.RateLimitedWriter
}

// bucketWriter owns every bucket blob of a run.
type bucketWriter struct {
	p       *Partitioner
	buckets map[word.Word]*openBucket
}

func newBucketWriter(p *Partitioner) *bucketWriter {
	return &bucketWriter{p: p, buckets: make(map[word.Word]*openBucket)}
}

func (w *bucketWriter) run(ctx context.Context, blocks <-chan block) error {
	for b := range blocks {
		err := w.write(ctx, b)
		w.p.opts.controller.ReleaseBuffer(int64(len(b.data)))
		if err != nil {
			return err
		}
	}
	return nil
}

func (w *bucketWriter) write(ctx context.Context, b block) error {
	ob, ok := w.buckets[b.key]
	if !ok {
		name := w.p.opts.name("buckets", fmt.Sprintf("%016x.blk", uint64(b.key)))
		blob, err := w.p.store.Create(ctx, name)
		if err != nil {
			return fmt.Errorf("bulk: create bucket %s: %w", name, err)
		}
		symbols := make([]int, w.p.cfg.PrefixLength)
		for i := range symbols {
			symbols[i] = int(w.p.packer.Symbol(b.key, i))
		}
		ob = &openBucket{
			info: BucketInfo{Key: uint64(b.key), Symbols: symbols, Path: name},
			blob: blob,
			w:    resource.NewRateLimitedWriter(ctx, blob, w.p.opts.controller),
		}
		w.buckets[b.key] = ob
	}
	if _, err := ob.w.Write(b.data); err != nil {
		return fmt.Errorf("bulk: write bucket %s: %w", ob.info.Path, err)
	}
	ob.info.Blocks++
	ob.info.Records += int64(b.records)
	ob.info.Bytes += int64(len(b.data))
	return nil
}

func (w *bucketWriter) closeAll() error {
	var errs []error
	for _, ob := range w.buckets {
		if err := ob.blob.Close(); err != nil {
			errs = append(errs, fmt.Errorf("bulk: close bucket %s: %w", ob.info.Path, err))
		}
	}
	return errors.Join(errs...)
}

func (w *bucketWriter) manifest() *Manifest {
	m := &Manifest{
		Version:      ManifestVersion,
		WordLength:   w.p.cfg.WordLength,
		AlphabetSize: w.p.cfg.AlphabetSize,
		PrefixLength: w.p.cfg.PrefixLength,
		Coefficients: w.p.cfg.WordLength,
		Compression:  w.p.opts.compression.String(),
	}
	for _, ob := range w.buckets {
		m.Buckets = append(m.Buckets, ob.info)
		m.Records += ob.info.Records
	}
	slices.SortFunc(m.Buckets, func(a, b BucketInfo) int {
		return cmp.Compare(a.Key, b.Key)
	})
	return m
}
