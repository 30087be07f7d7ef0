package sfatrie

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/sfatrie/distance"
	"github.com/hupe1980/sfatrie/mft"
	"github.com/hupe1980/sfatrie/resource"
	"github.com/hupe1980/sfatrie/sfa"
	"github.com/hupe1980/sfatrie/trie"
	"github.com/hupe1980/sfatrie/word"
)

// Matching modes.
const (
	WholeSeries = trie.WholeSeries
	Subsequence = trie.Subsequence
)

// Result is one match: a storage position (series index, or window offset
// in subsequence mode) and its squared Euclidean distance to the query.
type Result = trie.Result

// ctxCheckInterval is the number of inserts between context checks.
const ctxCheckInterval = 1024

// Index couples the Fourier transform, the quantizer and the trie.
//
// An Index is built once, optionally compressed, then searched. Searches
// may run concurrently with each other; builds and Compress are exclusive.
type Index struct {
	mu   sync.RWMutex
	cfg  Config
	opts options

	transform *mft.MFT
	quantizer *sfa.SFA
	packer    word.Packer
	trie      *trie.Trie
}

// NewIndex creates an unbuilt index.
func NewIndex(cfg Config, opts ...Option) (*Index, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	transform, err := mft.New(cfg.WindowSize, cfg.coefficients(), cfg.ZNormalize, true)
	if err != nil {
		return nil, translateError(err)
	}
	quantizer, err := sfa.New(cfg.Histogram, cfg.WordLength, cfg.AlphabetSize, sfa.WithSupervised(cfg.Supervised))
	if err != nil {
		return nil, translateError(err)
	}
	packer, err := word.NewPacker(cfg.WordLength, cfg.AlphabetSize)
	if err != nil {
		return nil, translateError(err)
	}
	return &Index{
		cfg:       cfg,
		opts:      applyOptions(opts),
		transform: transform,
		quantizer: quantizer,
		packer:    packer,
	}, nil
}

// Config returns the configuration the index was created with.
func (ix *Index) Config() Config { return ix.cfg }

// Quantizer returns the fitted quantizer, or an unfitted one before a build.
func (ix *Index) Quantizer() *sfa.SFA { return ix.quantizer }

// Transform returns the Fourier transform of the index.
func (ix *Index) Transform() *mft.MFT { return ix.transform }

// Built reports whether a build has completed.
func (ix *Index) Built() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.trie != nil
}

// Mode returns the matching mode of the built index.
func (ix *Index) Mode() trie.Mode {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.trie == nil {
		return WholeSeries
	}
	return ix.trie.Mode()
}

// BuildWholeSeries fits the quantizer on series and indexes one word per
// series. Every series must hold WindowSize samples. labels may be nil
// unless the quantizer is supervised or uses InformationGain.
func (ix *Index) BuildWholeSeries(ctx context.Context, series [][]float64, labels []float64) error {
	return ix.build(ctx, WholeSeries.String(), len(series), func() (*trie.Trie, error) {
		normalized, err := ix.prepareSeries(series)
		if err != nil {
			return nil, err
		}
		coeffs := make([][]float64, len(normalized))
		for i, s := range normalized {
			if coeffs[i], err = ix.transform.Transform(s); err != nil {
				return nil, err
			}
		}
		if err := ix.quantizer.Fit(coeffs, labels); err != nil {
			return nil, translateError(err)
		}

		t, err := ix.newTrie(trie.NewSeriesStorage(ix.cfg.WindowSize), ix.cfg.MinDepth)
		if err != nil {
			return nil, err
		}
		for i, s := range normalized {
			if i%ctxCheckInterval == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			a, err := ix.approximate(coeffs[i], 0)
			if err != nil {
				return nil, err
			}
			if _, err := t.InsertSeries(s, a.Word, a.Coeffs); err != nil {
				return nil, err
			}
		}
		return t, nil
	})
}

// BuildSubsequence fits the quantizer on every sliding window of series
// and indexes one word per window offset.
func (ix *Index) BuildSubsequence(ctx context.Context, series []float64) error {
	count := len(series) - ix.cfg.WindowSize + 1
	return ix.build(ctx, Subsequence.String(), max(count, 0), func() (*trie.Trie, error) {
		if count <= 0 {
			return nil, &ErrDimensionMismatch{Expected: ix.cfg.WindowSize, Actual: len(series)}
		}

		var storage *trie.WindowStorage
		var coeffs [][]float64
		var err error
		if ix.cfg.ZNormalize {
			if storage, err = trie.NewWindowStorage(series, ix.cfg.WindowSize); err != nil {
				return nil, err
			}
			means, invStds := storage.Stats()
			coeffs = ix.transform.TransformWindowingNormalized(series, means, invStds)
		} else {
			if storage, err = trie.NewRawWindowStorage(series, ix.cfg.WindowSize); err != nil {
				return nil, err
			}
			coeffs = ix.transform.TransformWindowing(series)
		}
		if err := ix.quantizer.Fit(coeffs, nil); err != nil {
			return nil, translateError(err)
		}

		t, err := ix.newTrie(storage, ix.cfg.MinDepth)
		if err != nil {
			return nil, err
		}
		for pos, c := range coeffs {
			if pos%ctxCheckInterval == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			a, err := ix.approximate(c, pos)
			if err != nil {
				return nil, err
			}
			if err := t.Insert(a); err != nil {
				return nil, err
			}
		}
		return t, nil
	})
}

// BuildPartitioned is BuildWholeSeries spread over pool: series are
// transformed and quantized in chunks, split by first symbol into disjoint
// partitions that are built concurrently with a minimum depth of at least
// one, then merged and checked. A nil pool uses the pool set by WithPool,
// or a temporary one.
func (ix *Index) BuildPartitioned(ctx context.Context, series [][]float64, labels []float64, pool *resource.Pool) error {
	if pool == nil {
		pool = ix.opts.pool
	}
	if pool == nil {
		pool = resource.NewPool(0, ix.opts.logger.Logger)
		defer pool.Close()
	}

	return ix.build(ctx, WholeSeries.String(), len(series), func() (*trie.Trie, error) {
		normalized, err := ix.prepareSeries(series)
		if err != nil {
			return nil, err
		}
		n := len(normalized)
		chunks := min(pool.Workers(), n)

		coeffs := make([][]float64, n)
		err = pool.Run(ctx, chunks, func(_ context.Context, c int) error {
			lo, hi := chunkRange(n, chunks, c)
			for i := lo; i < hi; i++ {
				var err error
				if coeffs[i], err = ix.transform.Transform(normalized[i]); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		if err := ix.quantizer.Fit(coeffs, labels); err != nil {
			return nil, translateError(err)
		}

		storage := trie.NewSeriesStorage(ix.cfg.WindowSize)
		for _, s := range normalized {
			if _, err := storage.Append(s); err != nil {
				return nil, err
			}
		}

		approx := make([]trie.Approximation, n)
		err = pool.Run(ctx, chunks, func(_ context.Context, c int) error {
			lo, hi := chunkRange(n, chunks, c)
			for i := lo; i < hi; i++ {
				var err error
				if approx[i], err = ix.approximate(coeffs[i], i); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		minDepth := max(ix.cfg.MinDepth, 1)
		buckets := make([][]trie.Approximation, ix.cfg.AlphabetSize)
		for _, a := range approx {
			s := ix.packer.Symbol(a.Word, 0)
			buckets[s] = append(buckets[s], a)
		}
		parts := make([]*trie.Trie, len(buckets))
		err = pool.Run(ctx, len(buckets), func(_ context.Context, b int) error {
			if len(buckets[b]) == 0 {
				return nil
			}
			t, err := ix.newTrie(storage, minDepth)
			if err != nil {
				return err
			}
			if err := t.BuildBulk([][]trie.Approximation{buckets[b]}); err != nil {
				return err
			}
			parts[b] = t
			return nil
		})
		if err != nil {
			return nil, err
		}

		return ix.mergeParts(ctx, storage, minDepth, parts)
	})
}

func (ix *Index) mergeParts(ctx context.Context, storage trie.Storage, minDepth int, parts []*trie.Trie) (*trie.Trie, error) {
	start := time.Now()
	merged, err := ix.newTrie(storage, minDepth)
	if err != nil {
		return nil, err
	}
	count := 0
	for _, p := range parts {
		if p == nil {
			continue
		}
		if err = merged.Merge(p); err != nil {
			break
		}
		count++
	}
	if err == nil {
		err = merged.Check()
	}
	ix.opts.metricsCollector.RecordMerge(count, time.Since(start), err)
	ix.opts.logger.LogMerge(ctx, count, merged.Size(), err)
	if err != nil {
		return nil, err
	}
	return merged, nil
}

// chunkRange returns the half-open range of chunk c when n items are split
// into chunks near-equal chunks.
func chunkRange(n, chunks, c int) (lo, hi int) {
	return c * n / chunks, (c + 1) * n / chunks
}

func (ix *Index) build(ctx context.Context, mode string, count int, fn func() (*trie.Trie, error)) error {
	start := time.Now()
	ix.mu.Lock()
	defer ix.mu.Unlock()

	var err error
	if ix.trie != nil {
		err = ErrAlreadyBuilt
	} else {
		var t *trie.Trie
		if t, err = fn(); err == nil {
			ix.trie = t
		}
	}
	ix.opts.metricsCollector.RecordBuild(mode, count, time.Since(start), err)
	ix.opts.logger.LogBuild(ctx, mode, count, err)
	return err
}

func (ix *Index) prepareSeries(series [][]float64) ([][]float64, error) {
	out := make([][]float64, len(series))
	for i, s := range series {
		if len(s) != ix.cfg.WindowSize {
			return nil, fmt.Errorf("series %d: %w", i, &ErrDimensionMismatch{Expected: ix.cfg.WindowSize, Actual: len(s)})
		}
		if ix.cfg.ZNormalize {
			out[i] = distance.ZNormalize(nil, s)
		} else {
			out[i] = s
		}
	}
	return out, nil
}

func (ix *Index) newTrie(storage trie.Storage, minDepth int) (*trie.Trie, error) {
	return trie.New(ix.cfg.WordLength, ix.cfg.AlphabetSize,
		trie.WithStorage(storage),
		trie.WithWeights(ix.weights()),
		trie.WithLeafThreshold(ix.cfg.LeafThreshold),
		trie.WithMinDepth(minDepth),
		trie.WithCompactChildren(ix.cfg.CompactChildren),
		trie.WithLogger(ix.opts.logger.Logger),
	)
}

// weights returns the lower-bound weight of every selected coefficient.
func (ix *Index) weights() []float64 {
	all := ix.transform.Weights()
	selected := ix.quantizer.Selected()
	out := make([]float64, len(selected))
	for i, dim := range selected {
		out[i] = all[dim]
	}
	return out
}

func (ix *Index) approximate(coeffs []float64, pos int) (trie.Approximation, error) {
	symbols, err := ix.quantizer.Quantize(coeffs)
	if err != nil {
		return trie.Approximation{}, translateError(err)
	}
	proj, err := ix.quantizer.Project(coeffs)
	if err != nil {
		return trie.Approximation{}, translateError(err)
	}
	return trie.Approximation{Word: ix.packer.Pack(symbols), Coeffs: proj, Pos: pos}, nil
}
