package trie

import (
	"math"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/sfatrie/distance"
	"github.com/hupe1980/sfatrie/mft"
	"github.com/hupe1980/sfatrie/sfa"
	"github.com/hupe1980/sfatrie/testutil"
	"github.com/hupe1980/sfatrie/word"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertSameNeighbors(t *testing.T, expected []testutil.SearchResult, got []Result) {
	t.Helper()
	require.Len(t, got, len(expected))
	for i := range expected {
		assert.InDelta(t, expected[i].Distance, got[i].Distance, 1e-9, "rank %d", i)
	}
}

func TestSearchKNN_MatchesBruteForce(t *testing.T) {
	f := newFixture(t, 10, 500, 32, 4, 8)
	rng := testutil.NewRNG(100)

	for _, compress := range []bool{false, true} {
		tr := f.build(t, WithLeafThreshold(10))
		if compress {
			tr.Compress()
		}
		for _, k := range []int{1, 5} {
			for iter := 0; iter < 20; iter++ {
				q := f.query(t, rng.RandomWalk(32))
				expected := testutil.BruteForceSearch(f.series, q.Series, k)

				var stats SearchStats
				got := tr.SearchKNN(q, k, WithStats(&stats))
				assertSameNeighbors(t, expected, got)
				assert.Greater(t, stats.NodesVisited, 0)
				assert.LessOrEqual(t, stats.Distances, len(f.series))
			}
		}
	}
}

func TestSearchKNN_FindsIndexedSeries(t *testing.T) {
	f := newFixture(t, 11, 200, 32, 4, 8)
	tr := f.build(t, WithLeafThreshold(8))
	tr.Compress()

	for _, pos := range []int{0, 17, 199} {
		q := Query{Series: f.series[pos], Coeffs: f.approx[pos].Coeffs, Word: f.approx[pos].Word}
		got := tr.SearchKNN(q, 1)
		require.Len(t, got, 1)
		assert.Equal(t, pos, got[0].Pos)
		assert.InDelta(t, 0, got[0].Distance, 1e-12)
	}
}

func TestSearchKNN_EdgeCases(t *testing.T) {
	f := newFixture(t, 12, 20, 32, 4, 4)
	tr := f.build(t)
	q := f.query(t, testutil.NewRNG(1).RandomWalk(32))

	assert.Nil(t, tr.SearchKNN(q, 0))
	assert.Len(t, tr.SearchKNN(q, 100), 20, "k larger than the trie returns everything")

	empty := f.newTrie(t)
	assert.Nil(t, empty.SearchKNN(q, 3))
	assert.Nil(t, empty.SearchRange(q, 10))
	assert.Nil(t, empty.LeafFor(q.Word))
}

func TestSearchKNN_Filter(t *testing.T) {
	f := newFixture(t, 13, 300, 32, 4, 8)
	tr := f.build(t, WithLeafThreshold(10))
	tr.Compress()

	allowed := roaring.New()
	var allowedSeries [][]float64
	var allowedPos []int
	for i := 0; i < len(f.series); i += 2 {
		allowed.Add(uint32(i))
		allowedSeries = append(allowedSeries, f.series[i])
		allowedPos = append(allowedPos, i)
	}

	rng := testutil.NewRNG(7)
	for iter := 0; iter < 10; iter++ {
		q := f.query(t, rng.RandomWalk(32))
		got := tr.SearchKNN(q, 5, WithFilter(allowed))
		expected := testutil.BruteForceSearch(allowedSeries, q.Series, 5)
		assertSameNeighbors(t, expected, got)
		for i, r := range got {
			assert.Equal(t, 0, r.Pos%2)
			assert.Equal(t, allowedPos[expected[i].ID], r.Pos)
		}
	}
}

func TestSearchRange_MatchesBruteForce(t *testing.T) {
	f := newFixture(t, 14, 400, 32, 4, 8)
	tr := f.build(t, WithLeafThreshold(10))
	rng := testutil.NewRNG(8)

	for iter := 0; iter < 10; iter++ {
		q := f.query(t, rng.RandomWalk(32))
		// eps equal to the 10th neighbour's distance, so the boundary element
		// must be included
		eps := testutil.BruteForceSearch(f.series, q.Series, 10)[9].Distance

		expected := testutil.BruteForceRange(f.series, q.Series, eps)
		got := tr.SearchRange(q, eps)
		require.Len(t, got, len(expected))
		for i := range expected {
			assert.Equal(t, expected[i].ID, got[i].Pos)
			assert.LessOrEqual(t, got[i].Distance, eps)
		}
	}

	q := f.query(t, rng.RandomWalk(32))
	assert.Nil(t, tr.SearchRange(q, -1))
}

func TestSearchRange_Compressed(t *testing.T) {
	f := newFixture(t, 15, 300, 32, 4, 8)
	tr := f.build(t, WithLeafThreshold(10))
	tr.Compress()

	q := f.query(t, testutil.NewRNG(9).RandomWalk(32))
	got := tr.SearchRange(q, math.Inf(1))
	assert.Len(t, got, 300, "shared leaves are scanned once")
	seen := make(map[int]bool)
	for _, r := range got {
		assert.False(t, seen[r.Pos])
		seen[r.Pos] = true
	}
}

func TestLeafFor_FallsBackToSibling(t *testing.T) {
	store := NewSeriesStorage(1)
	tr, err := New(2, 4, WithStorage(store), WithLeafThreshold(1))
	require.NoError(t, err)
	for i, sym := range []uint8{0, 1} {
		w := tr.Packer().Pack([]uint8{sym, 0})
		_, err := tr.InsertSeries([]float64{float64(i)}, w, []float64{float64(sym), 0})
		require.NoError(t, err)
	}

	exact := tr.LeafFor(tr.Packer().Pack([]uint8{1, 0}))
	require.NotNil(t, exact)
	assert.Equal(t, []int{1}, exact.Elements())

	// no child for symbol 3: an arbitrary sibling leaf is returned
	fallback := tr.LeafFor(tr.Packer().Pack([]uint8{3, 3}))
	require.NotNil(t, fallback)
	assert.Equal(t, 1, fallback.Len())
}

func TestSearchLeaf(t *testing.T) {
	f := newFixture(t, 16, 300, 32, 4, 8)
	tr := f.build(t, WithLeafThreshold(20))

	q := Query{Series: f.series[42], Coeffs: f.approx[42].Coeffs, Word: f.approx[42].Word}
	got := tr.SearchLeaf(q, 3)
	require.NotEmpty(t, got)
	assert.Equal(t, 42, got[0].Pos)
	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i-1].Distance, got[i].Distance)
	}
	leaf := tr.LeafFor(q.Word)
	assert.LessOrEqual(t, len(got), leaf.Len())
}

// Subsequence scenario: 1000 z-normalised windows of length 64 from one random
// walk, word length 4, alphabet 8, leaf threshold 10.
func TestSubsequence_NearestWindow(t *testing.T) {
	const windowSize = 64
	rng := testutil.NewRNG(2024)
	series := rng.RandomWalk(1000 + windowSize - 1)

	store, err := NewWindowStorage(series, windowSize)
	require.NoError(t, err)
	require.Equal(t, 1000, store.Len())
	assert.Equal(t, Subsequence, store.Mode())

	m, err := mft.New(windowSize, 4, true, true)
	require.NoError(t, err)
	means, invStds := store.Stats()
	coeffs := m.TransformWindowingNormalized(series, means, invStds)

	q, err := sfa.New(sfa.EquiDepth, 4, 8)
	require.NoError(t, err)
	require.NoError(t, q.Fit(coeffs, nil))
	packer, err := word.NewPacker(4, 8)
	require.NoError(t, err)

	tr, err := New(4, 8, WithStorage(store), WithLeafThreshold(10), WithWeights(m.Weights()))
	require.NoError(t, err)
	for pos, c := range coeffs {
		symbols, err := q.Quantize(c)
		require.NoError(t, err)
		require.NoError(t, tr.Insert(Approximation{Word: packer.Pack(symbols), Coeffs: c, Pos: pos}))
	}
	require.NoError(t, tr.Check())
	tr.Compress()
	require.NoError(t, tr.Check())
	assert.Equal(t, 1000, tr.Size())

	windows := testutil.Windows(series, windowSize)
	for iter := 0; iter < 10; iter++ {
		query := distance.ZNormalize(nil, rng.RandomWalk(windowSize))
		qc, err := m.Transform(query)
		require.NoError(t, err)
		symbols, err := q.Quantize(qc)
		require.NoError(t, err)

		got := tr.SearchKNN(Query{Series: query, Coeffs: qc, Word: packer.Pack(symbols)}, 1)
		require.Len(t, got, 1)

		expected := testutil.BruteForceSearch(windows, query, 1)[0]
		assert.InEpsilon(t, expected.Distance, got[0].Distance, 1e-9)
	}
}
