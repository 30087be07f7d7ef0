package mft

import (
	"math"
	"testing"

	"github.com/hupe1980/sfatrie/distance"
	"github.com/hupe1980/sfatrie/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Validation(t *testing.T) {
	_, err := New(0, 4, false, true)
	assert.ErrorIs(t, err, ErrInvalidLength)

	_, err = New(16, 3, false, true)
	assert.ErrorIs(t, err, ErrInvalidLength)

	// Window of 8 has coefficients 0..4; normMean leaves 1..4.
	_, err = New(8, 8, true, true)
	require.NoError(t, err)
	_, err = New(8, 10, true, true)
	assert.ErrorIs(t, err, ErrInvalidLength)
}

func TestTransform_WindowSizeMismatch(t *testing.T) {
	m, err := New(8, 4, false, true)
	require.NoError(t, err)
	_, err = m.Transform(make([]float64, 7))
	assert.ErrorIs(t, err, ErrWindowSize)
}

func TestTransform_KnownValues(t *testing.T) {
	m, err := New(4, 4, false, false)
	require.NoError(t, err)

	// DFT of [1,2,3,4]: X0 = 10, X1 = -2 + 2i.
	out, err := m.Transform([]float64{1, 2, 3, 4})
	require.NoError(t, err)
	assert.InDelta(t, 10, out[0], 1e-9)
	assert.InDelta(t, 0, out[1], 1e-9)
	assert.InDelta(t, -2, out[2], 1e-9)
	assert.InDelta(t, 2, out[3], 1e-9)
}

func TestWeights(t *testing.T) {
	even, err := New(8, 10, false, true)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 2, 2, 2, 2, 2, 2, 1, 1}, even.Weights())

	odd, err := New(7, 6, true, true)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 2, 2, 2, 2, 2}, odd.Weights())
}

func TestTransformWindowing_MatchesTransform(t *testing.T) {
	rng := testutil.NewRNG(42)
	series := rng.RandomWalk(300)

	for _, windowSize := range []int{16, 17, 63, 64} {
		for _, normMean := range []bool{false, true} {
			m, err := New(windowSize, 8, normMean, true)
			require.NoError(t, err)

			sliding := m.TransformWindowing(series)
			require.Len(t, sliding, len(series)-windowSize+1)

			for off, got := range sliding {
				expected, err := m.Transform(series[off : off+windowSize])
				require.NoError(t, err)
				for i := range expected {
					assert.InDelta(t, expected[i], got[i], 1e-6,
						"window=%d normMean=%v offset=%d coeff=%d", windowSize, normMean, off, i)
				}
			}
		}
	}
}

func TestTransformWindowingNormalized_MatchesNormalizedWindows(t *testing.T) {
	rng := testutil.NewRNG(7)
	series := rng.RandomWalk(200)
	const windowSize = 32

	for _, normMean := range []bool{false, true} {
		m, err := New(windowSize, 6, normMean, true)
		require.NoError(t, err)

		means, invStds := RollingStats(series, windowSize)
		sliding := m.TransformWindowingNormalized(series, means, invStds)

		for off, got := range sliding {
			window := distance.ZNormalize(nil, series[off:off+windowSize])
			expected, err := m.Transform(window)
			require.NoError(t, err)
			for i := range expected {
				assert.InDelta(t, expected[i], got[i], 1e-6, "offset=%d coeff=%d", off, i)
			}
		}
	}
}

func TestTransformWindowing_ShortSeries(t *testing.T) {
	m, err := New(16, 4, true, true)
	require.NoError(t, err)
	assert.Nil(t, m.TransformWindowing(make([]float64, 15)))
	assert.Len(t, m.TransformWindowing(make([]float64, 16)), 1)
}

func TestLowerBounding_Parseval(t *testing.T) {
	rng := testutil.NewRNG(3)
	const windowSize = 32
	m, err := New(windowSize, 16, false, true)
	require.NoError(t, err)

	for iter := 0; iter < 50; iter++ {
		a := rng.GaussianSeries(windowSize)
		b := rng.GaussianSeries(windowSize)
		ca, _ := m.Transform(a)
		cb, _ := m.Transform(b)

		var bound float64
		for i, w := range m.Weights() {
			d := ca[i] - cb[i]
			bound += w * d * d
		}
		assert.LessOrEqual(t, bound, distance.SquaredL2(a, b)+1e-9)
	}
}

func TestRollingStats(t *testing.T) {
	series := []float64{1, 2, 3, 4, 4, 4, 4}
	means, invStds := RollingStats(series, 3)
	require.Len(t, means, 5)

	for off := range means {
		mean, std := distance.MeanStd(series[off : off+3])
		assert.InDelta(t, mean, means[off], 1e-9)
		assert.InDelta(t, distance.InvStd(std), invStds[off], 1e-6)
	}
	// constant window
	assert.Equal(t, 1.0, invStds[4])
	assert.False(t, math.IsInf(invStds[4], 1))

	m, i := RollingStats(series, 10)
	assert.Nil(t, m)
	assert.Nil(t, i)
}
