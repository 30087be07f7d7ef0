package sfatrie

import (
	"context"
	"time"

	"github.com/hupe1980/sfatrie/distance"
	"github.com/hupe1980/sfatrie/trie"
)

// Search returns the k nearest indexed series or windows, ascending by
// squared Euclidean distance. The result is exact.
func (ix *Index) Search(query []float64, k int, opts ...trie.SearchOption) ([]Result, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}
	return ix.search("knn", k, query, func(t *trie.Trie, q trie.Query) []Result {
		return t.SearchKNN(q, k, opts...)
	})
}

// SearchRange returns every indexed series or window within squared
// Euclidean distance eps of the query, ascending by distance.
func (ix *Index) SearchRange(query []float64, eps float64, opts ...trie.SearchOption) ([]Result, error) {
	if eps < 0 {
		return nil, ErrInvalidRadius
	}
	return ix.search("range", 0, query, func(t *trie.Trie, q trie.Query) []Result {
		return t.SearchRange(q, eps, opts...)
	})
}

// SearchApprox scans only the leaf the query's word descends to and returns
// its k nearest elements. The result is approximate: when the exact prefix
// has no leaf, a sibling leaf is scanned instead.
func (ix *Index) SearchApprox(query []float64, k int, opts ...trie.SearchOption) ([]Result, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}
	return ix.search("approx", k, query, func(t *trie.Trie, q trie.Query) []Result {
		return t.SearchLeaf(q, k, opts...)
	})
}

func (ix *Index) search(kind string, k int, query []float64, fn func(*trie.Trie, trie.Query) []Result) ([]Result, error) {
	start := time.Now()
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var results []Result
	q, err := ix.query(query)
	if err == nil {
		results = fn(ix.trie, q)
	}
	ix.opts.metricsCollector.RecordSearch(kind, k, time.Since(start), err)
	ix.opts.logger.LogSearch(context.Background(), kind, k, len(results), err)
	return results, err
}

// query prepares a raw query the way indexed elements were prepared.
func (ix *Index) query(raw []float64) (trie.Query, error) {
	if ix.trie == nil {
		return trie.Query{}, ErrNotBuilt
	}
	if len(raw) != ix.cfg.WindowSize {
		return trie.Query{}, &ErrDimensionMismatch{Expected: ix.cfg.WindowSize, Actual: len(raw)}
	}
	series := raw
	if ix.cfg.ZNormalize {
		series = distance.ZNormalize(nil, raw)
	}
	coeffs, err := ix.transform.Transform(series)
	if err != nil {
		return trie.Query{}, err
	}
	a, err := ix.approximate(coeffs, 0)
	if err != nil {
		return trie.Query{}, err
	}
	return trie.Query{Series: series, Coeffs: a.Coeffs, Word: a.Word}, nil
}

// Compress runs the one-time trie compression. Afterwards the index can
// no longer be extended. A second call does nothing.
func (ix *Index) Compress() error {
	start := time.Now()
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.trie == nil {
		return ErrNotBuilt
	}
	if ix.trie.Compressed() {
		return nil
	}
	before := ix.trie.Stats().Leaves
	ix.trie.Compress()
	after := ix.trie.Stats().Leaves
	ix.opts.metricsCollector.RecordCompress(after, time.Since(start))
	ix.opts.logger.LogCompress(context.Background(), before, after)
	return nil
}

// Compressed reports whether Compress has run.
func (ix *Index) Compressed() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.trie != nil && ix.trie.Compressed()
}

// Size returns the number of indexed series or windows.
func (ix *Index) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.trie == nil {
		return 0
	}
	return ix.trie.Size()
}

// Stats reports the shape of the trie.
func (ix *Index) Stats() trie.Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.trie == nil {
		return trie.Stats{}
	}
	return ix.trie.Stats()
}

// Check verifies the structural invariants of the trie.
func (ix *Index) Check() error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.trie == nil {
		return ErrNotBuilt
	}
	return ix.trie.Check()
}
