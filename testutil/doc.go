// Package testutil provides testing utilities for sfatrie.
//
// This package is intended for use in tests and benchmarks only.
// It provides helpers for generating random series and computing exact
// nearest neighbors as ground truth.
//
// # Random Series Generation
//
//	rng := testutil.NewRNG(seed)
//	walk := rng.RandomWalk(1024)
//	dataset := rng.RandomWalks(1000, 64)
//
// # Exact Search (Ground Truth)
//
//	results := testutil.BruteForceSearch(dataset, query, k)
package testutil
