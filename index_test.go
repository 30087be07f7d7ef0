package sfatrie

import (
	"context"
	"errors"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/sfatrie/distance"
	"github.com/hupe1980/sfatrie/resource"
	"github.com/hupe1980/sfatrie/sfa"
	"github.com/hupe1980/sfatrie/testutil"
	"github.com/hupe1980/sfatrie/trie"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(windowSize int) Config {
	cfg := DefaultConfig(windowSize)
	cfg.WordLength = 4
	cfg.AlphabetSize = 8
	cfg.LeafThreshold = 10
	return cfg
}

func normalizeAll(series [][]float64) [][]float64 {
	out := make([][]float64, len(series))
	for i, s := range series {
		out[i] = distance.ZNormalize(nil, s)
	}
	return out
}

func rawWindows(series []float64, windowSize int) [][]float64 {
	out := make([][]float64, len(series)-windowSize+1)
	for off := range out {
		out[off] = series[off : off+windowSize]
	}
	return out
}

func assertMatchesBruteForce(t *testing.T, want []testutil.SearchResult, got []Result) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, want[i].Distance, got[i].Distance, 1e-6, "rank %d", i)
	}
}

func TestIndex_WholeSeries(t *testing.T) {
	rng := testutil.NewRNG(1)
	series := rng.RandomWalks(500, 64)
	normalized := normalizeAll(series)

	ix, err := NewIndex(testConfig(64))
	require.NoError(t, err)
	assert.False(t, ix.Built())
	require.NoError(t, ix.BuildWholeSeries(context.Background(), series, nil))
	require.NoError(t, ix.Check())
	assert.True(t, ix.Built())
	assert.Equal(t, WholeSeries, ix.Mode())
	assert.Equal(t, 500, ix.Size())
	assert.Equal(t, 500, ix.Stats().Elements)

	for _, query := range rng.RandomWalks(10, 64) {
		got, err := ix.Search(query, 5)
		require.NoError(t, err)
		want := testutil.BruteForceSearch(normalized, distance.ZNormalize(nil, query), 5)
		assertMatchesBruteForce(t, want, got)
	}

	t.Run("Self", func(t *testing.T) {
		got, err := ix.Search(series[42], 1)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, 42, got[0].Pos)
		assert.InDelta(t, 0, got[0].Distance, 1e-9)
	})

	t.Run("Range", func(t *testing.T) {
		query := rng.RandomWalk(64)
		nearest := testutil.BruteForceSearch(normalized, distance.ZNormalize(nil, query), 10)
		eps := nearest[9].Distance
		got, err := ix.SearchRange(query, eps)
		require.NoError(t, err)
		want := testutil.BruteForceRange(normalized, distance.ZNormalize(nil, query), eps)
		assertMatchesBruteForce(t, want, got)
		for _, r := range got {
			assert.LessOrEqual(t, r.Distance, eps)
		}
	})

	t.Run("Approx", func(t *testing.T) {
		got, err := ix.SearchApprox(series[7], 3)
		require.NoError(t, err)
		require.NotEmpty(t, got)
		assert.LessOrEqual(t, len(got), 3)
		for i := 1; i < len(got); i++ {
			assert.LessOrEqual(t, got[i-1].Distance, got[i].Distance)
		}
	})

	t.Run("Filter", func(t *testing.T) {
		var stats trie.SearchStats
		allowed := roaring.New()
		for i := uint32(0); i < 500; i += 2 {
			allowed.Add(i)
		}
		got, err := ix.Search(series[3], 5, trie.WithFilter(allowed), trie.WithStats(&stats))
		require.NoError(t, err)
		require.Len(t, got, 5)
		for _, r := range got {
			assert.Zero(t, r.Pos%2)
		}
		assert.Positive(t, stats.NodesVisited)
	})
}

func TestIndex_Subsequence(t *testing.T) {
	const window = 64
	rng := testutil.NewRNG(2)
	series := rng.RandomWalk(1000 + window - 1)

	ix, err := NewIndex(testConfig(window))
	require.NoError(t, err)
	require.NoError(t, ix.BuildSubsequence(context.Background(), series))
	require.NoError(t, ix.Check())
	assert.Equal(t, Subsequence, ix.Mode())
	assert.Equal(t, 1000, ix.Size())

	for _, off := range []int{0, 17, 500, 999} {
		got, err := ix.Search(series[off:off+window], 1)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, off, got[0].Pos)
		assert.InDelta(t, 0, got[0].Distance, 1e-9)
	}

	windows := testutil.Windows(series, window)
	query := rng.RandomWalk(window)
	got, err := ix.Search(query, 5)
	require.NoError(t, err)
	assertMatchesBruteForce(t, testutil.BruteForceSearch(windows, distance.ZNormalize(nil, query), 5), got)
}

func TestIndex_SubsequenceRaw(t *testing.T) {
	const window = 32
	rng := testutil.NewRNG(3)
	series := rng.RandomWalk(400 + window - 1)

	cfg := testConfig(window)
	cfg.ZNormalize = false
	ix, err := NewIndex(cfg)
	require.NoError(t, err)
	require.NoError(t, ix.BuildSubsequence(context.Background(), series))
	require.NoError(t, ix.Check())

	query := rng.RandomWalk(window)
	got, err := ix.Search(query, 3)
	require.NoError(t, err)
	assertMatchesBruteForce(t, testutil.BruteForceSearch(rawWindows(series, window), query, 3), got)

	got, err = ix.Search(series[123:123+window], 1)
	require.NoError(t, err)
	assert.Equal(t, 123, got[0].Pos)
}

func TestIndex_Supervised(t *testing.T) {
	rng := testutil.NewRNG(4)
	series, labels := rng.LabeledSeries(300, 64, 3, 0.3)

	cfg := testConfig(64)
	cfg.Supervised = true
	cfg.Coefficients = 16
	cfg.Histogram = sfa.InformationGain
	ix, err := NewIndex(cfg)
	require.NoError(t, err)

	err = ix.BuildWholeSeries(context.Background(), series, nil)
	require.ErrorIs(t, err, sfa.ErrLabelsRequired)
	assert.False(t, ix.Built())

	require.NoError(t, ix.BuildWholeSeries(context.Background(), series, labels))
	require.NoError(t, ix.Check())
	assert.Len(t, ix.Quantizer().Selected(), 4)

	normalized := normalizeAll(series)
	query := series[10]
	got, err := ix.Search(query, 4)
	require.NoError(t, err)
	assertMatchesBruteForce(t, testutil.BruteForceSearch(normalized, distance.ZNormalize(nil, query), 4), got)
}

func TestIndex_Partitioned(t *testing.T) {
	rng := testutil.NewRNG(5)
	series := rng.RandomWalks(800, 32)
	pool := resource.NewPool(4, nil)
	defer pool.Close()

	metrics := &BasicMetricsCollector{}
	part, err := NewIndex(testConfig(32), WithMetricsCollector(metrics))
	require.NoError(t, err)
	require.NoError(t, part.BuildPartitioned(context.Background(), series, nil, pool))
	require.NoError(t, part.Check())

	whole, err := NewIndex(testConfig(32))
	require.NoError(t, err)
	require.NoError(t, whole.BuildWholeSeries(context.Background(), series, nil))

	assert.Equal(t, whole.Size(), part.Size())
	assert.Equal(t, whole.Quantizer().Bins(), part.Quantizer().Bins())
	assert.GreaterOrEqual(t, part.Stats().MaxDepth, 1)

	for _, query := range rng.RandomWalks(10, 32) {
		want, err := whole.Search(query, 5)
		require.NoError(t, err)
		got, err := part.Search(query, 5)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	st := metrics.GetStats()
	assert.Equal(t, int64(1), st.BuildCount)
	assert.Equal(t, int64(800), st.BuildItems)
	assert.Equal(t, int64(1), st.MergeCount)
	assert.Positive(t, st.MergePartitions)
}

func TestIndex_PartitionedDefaultPool(t *testing.T) {
	rng := testutil.NewRNG(6)
	series := rng.RandomWalks(200, 32)

	ix, err := NewIndex(testConfig(32))
	require.NoError(t, err)
	require.NoError(t, ix.BuildPartitioned(context.Background(), series, nil, nil))
	got, err := ix.Search(series[5], 1)
	require.NoError(t, err)
	assert.Equal(t, 5, got[0].Pos)
}

func TestIndex_Compress(t *testing.T) {
	rng := testutil.NewRNG(7)
	series := rng.RandomWalks(400, 32)

	cfg := testConfig(32)
	cfg.CompactChildren = true
	ix, err := NewIndex(cfg)
	require.NoError(t, err)
	assert.ErrorIs(t, ix.Compress(), ErrNotBuilt)
	require.NoError(t, ix.BuildWholeSeries(context.Background(), series, nil))

	query := rng.RandomWalk(32)
	before, err := ix.Search(query, 5)
	require.NoError(t, err)

	require.NoError(t, ix.Compress())
	assert.True(t, ix.Compressed())
	require.NoError(t, ix.Compress(), "second compress is a no-op")
	require.NoError(t, ix.Check())

	after, err := ix.Search(query, 5)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestIndex_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("InvalidConfig", func(t *testing.T) {
		for field, mutate := range map[string]func(*Config){
			"WindowSize":    func(c *Config) { c.WindowSize = 0 },
			"WordLength":    func(c *Config) { c.WordLength = 0 },
			"Coefficients":  func(c *Config) { c.Coefficients = 2 },
			"LeafThreshold": func(c *Config) { c.LeafThreshold = 0 },
			"MinDepth":      func(c *Config) { c.MinDepth = 5 },
			"AlphabetSize":  func(c *Config) { c.AlphabetSize = 1 },
		} {
			cfg := testConfig(32)
			mutate(&cfg)
			_, err := NewIndex(cfg)
			var target *ErrInvalidConfig
			require.True(t, errors.As(err, &target), field)
			assert.Equal(t, field, target.Field)
		}
	})

	ix, err := NewIndex(testConfig(32))
	require.NoError(t, err)

	t.Run("NotBuilt", func(t *testing.T) {
		_, err := ix.Search(make([]float64, 32), 1)
		assert.ErrorIs(t, err, ErrNotBuilt)
		assert.ErrorIs(t, ix.Check(), ErrNotBuilt)
		assert.Zero(t, ix.Size())
	})

	t.Run("DimensionMismatch", func(t *testing.T) {
		err := ix.BuildWholeSeries(ctx, [][]float64{make([]float64, 31)}, nil)
		var target *ErrDimensionMismatch
		require.True(t, errors.As(err, &target))
		assert.Equal(t, 32, target.Expected)
		assert.Equal(t, 31, target.Actual)

		err = ix.BuildSubsequence(ctx, make([]float64, 10))
		assert.True(t, errors.As(err, &target))
	})

	t.Run("Empty", func(t *testing.T) {
		assert.ErrorIs(t, ix.BuildWholeSeries(ctx, nil, nil), sfa.ErrNoSamples)
	})

	t.Run("Canceled", func(t *testing.T) {
		canceled, cancel := context.WithCancel(ctx)
		cancel()
		err := ix.BuildWholeSeries(canceled, testutil.NewRNG(8).RandomWalks(10, 32), nil)
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, ix.Built())
	})

	series := testutil.NewRNG(9).RandomWalks(50, 32)
	require.NoError(t, ix.BuildWholeSeries(ctx, series, nil))

	t.Run("AlreadyBuilt", func(t *testing.T) {
		assert.ErrorIs(t, ix.BuildWholeSeries(ctx, series, nil), ErrAlreadyBuilt)
		assert.ErrorIs(t, ix.BuildSubsequence(ctx, series[0]), ErrAlreadyBuilt)
	})

	t.Run("InvalidArguments", func(t *testing.T) {
		_, err := ix.Search(series[0], 0)
		assert.ErrorIs(t, err, ErrInvalidK)
		_, err = ix.SearchApprox(series[0], -1)
		assert.ErrorIs(t, err, ErrInvalidK)
		_, err = ix.SearchRange(series[0], -0.5)
		assert.ErrorIs(t, err, ErrInvalidRadius)
		_, err = ix.Search(series[0][:16], 1)
		var target *ErrDimensionMismatch
		assert.True(t, errors.As(err, &target))
	})
}
