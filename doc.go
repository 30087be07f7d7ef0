// Package sfatrie provides an exact similarity-search index for time series
// built on Symbolic Fourier Approximation (SFA) and a prefix trie.
//
// Every series, or every sliding window of a long series, is transformed
// into a short vector of Fourier coefficients, quantized into a word of
// discrete symbols and inserted into a trie keyed by that word. Each trie
// node keeps a bounding box of the coefficients below it, which yields a
// lower bound on the Euclidean distance used to prune the search.
//
// # Quick Start
//
// Whole-series matching:
//
//	ix, _ := sfatrie.NewIndex(sfatrie.DefaultConfig(64))
//	_ = ix.BuildWholeSeries(ctx, series, nil)
//	results, _ := ix.Search(query, 5)
//
// Subsequence matching over one long series:
//
//	ix, _ := sfatrie.NewIndex(sfatrie.DefaultConfig(64))
//	_ = ix.BuildSubsequence(ctx, long)
//	results, _ := ix.Search(query, 1) // Result.Pos is the window offset
//
// # Search Kinds
//
//	ix.Search(query, k)        // exact k nearest neighbours
//	ix.SearchRange(query, eps) // every match within squared distance eps
//	ix.SearchApprox(query, k)  // one leaf only, fast but inexact
//
// Results are ordered by ascending squared distance; ties keep the smaller
// position first.
//
// # Parallel Builds
//
// BuildPartitioned splits the collection by the first symbol of every word,
// builds one trie per partition on a resource.Pool and merges them. The
// result answers queries exactly like a sequential build.
//
// Collections too big for one pass are partitioned to a blobstore by
// package bulk and loaded back bucket by bucket.
//
// # Persistence
//
//	_ = ix.SaveToFile("index.sfa")
//	ix, _ = sfatrie.LoadFromFile("index.sfa")
//
//	_ = ix.Save(ctx, store, "index.sfa") // any blobstore.BlobStore
//	ix, _ = sfatrie.Load(ctx, store, "index.sfa")
//
// Snapshots are block-compressed (ZSTD by default, see WithCompression)
// and carry a CRC32C trailer.
//
// # Observability
//
// Use WithLogger for structured slog output and WithMetricsCollector for
// metrics; NewPrometheusCollector exports them to Prometheus.
package sfatrie
