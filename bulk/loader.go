package bulk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hupe1980/sfatrie/blobstore"
	"github.com/hupe1980/sfatrie/compress"
	"github.com/hupe1980/sfatrie/resource"
	"github.com/hupe1980/sfatrie/trie"
)

// Loader rebuilds a trie from the buckets of a partitioning run.
type Loader struct {
	store blobstore.BlobStore
	opts  options
}

// NewLoader creates a loader reading from store.
func NewLoader(store blobstore.BlobStore, opts ...Option) *Loader {
	return &Loader{store: store, opts: applyOptions(opts)}
}

// Load builds one trie per bucket over storage, merges them in key order
// and checks the result. trieOpts configure every bucket trie; storage and
// minimum depth are set from the manifest.
func (l *Loader) Load(ctx context.Context, storage trie.Storage, trieOpts ...trie.Option) (*trie.Trie, *Manifest, error) {
	start := time.Now()
	m, err := ReadManifest(ctx, l.store, l.opts.dir)
	if err != nil {
		return nil, nil, err
	}
	kind, _ := compress.ParseKind(m.Compression)

	opts := append(append([]trie.Option(nil), trieOpts...),
		trie.WithStorage(storage),
		trie.WithMinDepth(m.PrefixLength),
	)
	newTrie := func() (*trie.Trie, error) {
		return trie.New(m.WordLength, m.AlphabetSize, opts...)
	}

	parts := make([]*trie.Trie, len(m.Buckets))
	build := func(ctx context.Context, i int) error {
		t, err := newTrie()
		if err != nil {
			return err
		}
		if err := l.loadBucket(ctx, t, m.Buckets[i], kind, m.WordLength); err != nil {
			return err
		}
		parts[i] = t
		return nil
	}
	if err := l.run(ctx, len(parts), build); err != nil {
		return nil, nil, err
	}

	merged, err := newTrie()
	if err != nil {
		return nil, nil, err
	}
	for i, part := range parts {
		if err := merged.Merge(part); err != nil {
			return nil, nil, fmt.Errorf("bulk: merge bucket %s: %w", m.Buckets[i].Path, err)
		}
	}
	if merged.Size() != int(m.Records) {
		return nil, nil, fmt.Errorf("%w: loaded %d of %d records", ErrCorruptBucket, merged.Size(), m.Records)
	}
	if err := merged.Check(); err != nil {
		return nil, nil, err
	}
	if l.opts.compress {
		merged.Compress()
	}

	l.opts.log("bulk load complete",
		slog.String("records", humanize.Comma(m.Records)),
		slog.Int("buckets", len(m.Buckets)),
		slog.Bool("compressed", merged.Compressed()),
		slog.Duration("elapsed", time.Since(start)),
	)
	return merged, m, nil
}

func (l *Loader) run(ctx context.Context, n int, fn func(context.Context, int) error) error {
	if l.opts.pool != nil {
		return l.opts.pool.Run(ctx, n, fn)
	}
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(ctx, i); err != nil {
			return &resource.TaskError{Index: i, Err: err}
		}
	}
	return nil
}

func (l *Loader) loadBucket(ctx context.Context, t *trie.Trie, info BucketInfo, kind compress.Kind, coeffs int) error {
	blob, err := l.store.Open(ctx, info.Path)
	if err != nil {
		return fmt.Errorf("bulk: open bucket %s: %w", info.Path, err)
	}
	defer blob.Close()

	rc, err := blobstore.NewReader(ctx, blob)
	if err != nil {
		return err
	}
	defer rc.Close()
	r := resource.NewRateLimitedReader(ctx, rc, l.opts.controller)

	blocks := 0
	for {
		data, err := compress.ReadBlock(r, kind)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: %s block %d: %w", ErrCorruptBucket, info.Path, blocks, err)
		}
		if err := decodeRecords(data, coeffs, t.Insert); err != nil {
			return fmt.Errorf("bulk: bucket %s block %d: %w", info.Path, blocks, err)
		}
		blocks++
	}
	if blocks != info.Blocks || int64(t.Size()) != info.Records {
		return fmt.Errorf("%w: %s holds %d blocks/%d records, manifest lists %d/%d",
			ErrCorruptBucket, info.Path, blocks, t.Size(), info.Blocks, info.Records)
	}
	return nil
}
