// Package bulk partitions approximations into prefix buckets on a blob
// store and loads them back as one merged trie.
//
// A Partitioner runs one producer goroutine per Source. Producers buffer
// records per bucket and flush full buffers as compressed blocks through a
// bounded channel to a single writer, which is the only goroutine touching
// bucket blobs. The run ends by writing manifest.json.
//
//	p, _ := bulk.NewPartitioner(store, bulk.Config{WordLength: 8, AlphabetSize: 8, PrefixLength: 1})
//	m, _ := p.Partition(ctx, bulk.SliceSource(approx))
//
// A Loader reads the manifest, builds one trie per bucket on a
// resource.Pool and merges them:
//
//	t, _, _ := bulk.NewLoader(store, bulk.WithPool(pool)).Load(ctx, storage)
package bulk
