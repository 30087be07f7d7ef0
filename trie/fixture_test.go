package trie

import (
	"testing"

	"github.com/hupe1980/sfatrie/distance"
	"github.com/hupe1980/sfatrie/mft"
	"github.com/hupe1980/sfatrie/sfa"
	"github.com/hupe1980/sfatrie/testutil"
	"github.com/hupe1980/sfatrie/word"
	"github.com/stretchr/testify/require"
)

// fixture is a whole-series pipeline: z-normalised random walks, MFT,
// equi-depth SFA and a SeriesStorage, ready to build tries from.
type fixture struct {
	series [][]float64
	approx []Approximation
	store  *SeriesStorage
	m      *mft.MFT
	q      *sfa.SFA
	packer word.Packer
}

func newFixture(t *testing.T, seed int64, n, length, wordLength, alphabetSize int) *fixture {
	t.Helper()
	rng := testutil.NewRNG(seed)

	raw := rng.RandomWalks(n, length)
	series := make([][]float64, n)
	for i, s := range raw {
		series[i] = distance.ZNormalize(nil, s)
	}

	m, err := mft.New(length, wordLength, true, true)
	require.NoError(t, err)

	coeffs := make([][]float64, n)
	for i, s := range series {
		coeffs[i], err = m.Transform(s)
		require.NoError(t, err)
	}

	q, err := sfa.New(sfa.EquiDepth, wordLength, alphabetSize)
	require.NoError(t, err)
	require.NoError(t, q.Fit(coeffs, nil))

	packer, err := word.NewPacker(wordLength, alphabetSize)
	require.NoError(t, err)

	f := &fixture{series: series, store: NewSeriesStorage(length), m: m, q: q, packer: packer}
	for i, s := range series {
		pos, err := f.store.Append(s)
		require.NoError(t, err)
		require.Equal(t, i, pos)

		symbols, err := q.Quantize(coeffs[i])
		require.NoError(t, err)
		proj, err := q.Project(coeffs[i])
		require.NoError(t, err)
		f.approx = append(f.approx, Approximation{Word: packer.Pack(symbols), Coeffs: proj, Pos: pos})
	}
	return f
}

func (f *fixture) weights() []float64 {
	w := f.m.Weights()
	return append([]float64(nil), w[:f.packer.Length()]...)
}

func (f *fixture) newTrie(t *testing.T, opts ...Option) *Trie {
	t.Helper()
	opts = append([]Option{WithStorage(f.store), WithWeights(f.weights())}, opts...)
	tr, err := New(f.packer.Length(), f.q.AlphabetSize(), opts...)
	require.NoError(t, err)
	return tr
}

func (f *fixture) build(t *testing.T, opts ...Option) *Trie {
	t.Helper()
	tr := f.newTrie(t, opts...)
	require.NoError(t, tr.BuildBulk([][]Approximation{f.approx}))
	return tr
}

func (f *fixture) query(t *testing.T, raw []float64) Query {
	t.Helper()
	series := distance.ZNormalize(nil, raw)
	coeffs, err := f.m.Transform(series)
	require.NoError(t, err)
	symbols, err := f.q.Quantize(coeffs)
	require.NoError(t, err)
	proj, err := f.q.Project(coeffs)
	require.NoError(t, err)
	return Query{Series: series, Coeffs: proj, Word: f.packer.Pack(symbols)}
}

// subtreeElements returns every storage position beneath n.
func subtreeElements(n Node) []int {
	var out []int
	walk(n, func(c Node) {
		if l, ok := c.(*Leaf); ok {
			out = append(out, l.Elements()...)
		}
	})
	return out
}
