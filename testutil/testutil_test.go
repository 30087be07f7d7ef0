package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomWalks(t *testing.T) {
	rng := NewRNG(4711)

	v := rng.RandomWalks(8, 32)

	assert.Equal(t, 8, len(v))
	assert.Equal(t, 32, len(v[0]))
}

func TestRNG_Reset(t *testing.T) {
	rng := NewRNG(1)
	a := rng.RandomWalk(16)
	rng.Reset()
	b := rng.RandomWalk(16)
	assert.Equal(t, a, b)
	assert.Equal(t, int64(1), rng.Seed())
}

func TestLabeledSeries(t *testing.T) {
	rng := NewRNG(2)
	series, labels := rng.LabeledSeries(9, 20, 3, 0.1)
	require.Len(t, series, 9)
	require.Len(t, labels, 9)
	assert.Equal(t, []float64{0, 1, 2, 0, 1, 2, 0, 1, 2}, labels)
}

func TestBruteForceSearch(t *testing.T) {
	series := [][]float64{{0, 0}, {3, 4}, {1, 0}}
	got := BruteForceSearch(series, []float64{0, 0}, 2)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].ID)
	assert.Equal(t, 2, got[1].ID)
	assert.Equal(t, 1.0, got[1].Distance)

	inRange := BruteForceRange(series, []float64{0, 0}, 1)
	assert.Len(t, inRange, 2)
}

func TestWindows(t *testing.T) {
	w := Windows([]float64{1, 2, 3, 4}, 2)
	require.Len(t, w, 3)
	assert.InDelta(t, -1.0, w[0][0], 1e-12)
	assert.InDelta(t, 1.0, w[0][1], 1e-12)
	assert.Nil(t, Windows([]float64{1}, 2))
}
