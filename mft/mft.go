// Package mft implements the Momentary Fourier Transform used by SFA.
//
// Transform computes the first l real values (interleaved real/imaginary parts)
// of the DFT of one window. TransformWindowing computes the same coefficients
// for every sliding window of a series, updating each retained coefficient in
// O(1) per shift instead of recomputing the transform:
//
//	X'_k = (X_k - x_old + x_new) * e^{+2*pi*i*k/M}
//
// With lowerBounding enabled the coefficients are scaled by 1/sqrt(M), so that
// by Parseval's theorem the weighted squared distance between two coefficient
// vectors (see Weights) never exceeds the squared Euclidean distance between
// the windows they were computed from.
package mft

import (
	"errors"
	"fmt"
	"math"

	"github.com/hupe1980/sfatrie/distance"
)

var (
	// ErrInvalidLength is returned when the coefficient count does not fit the window.
	ErrInvalidLength = errors.New("mft: invalid coefficient count")

	// ErrWindowSize is returned when a window does not match the configured size.
	ErrWindowSize = errors.New("mft: window size mismatch")
)

// MFT transforms windows of a fixed size into Fourier coefficient vectors.
// An MFT is immutable after construction and safe for concurrent use.
type MFT struct {
	windowSize    int
	length        int
	start         int
	normMean      bool
	lowerBounding bool
	norm          float64
	phis          []float64 // cos, sin of 2*pi*k/M per retained coefficient
	weights       []float64
}

// New creates an MFT for windows of windowSize samples producing l values.
//
// l must be even. normMean drops the DC coefficient (the window mean), which is
// always zero for z-normalised windows. lowerBounding rescales by 1/sqrt(windowSize).
func New(windowSize, l int, normMean, lowerBounding bool) (*MFT, error) {
	if windowSize <= 0 {
		return nil, fmt.Errorf("%w: window size must be positive, got %d", ErrInvalidLength, windowSize)
	}
	if l <= 0 || l%2 != 0 {
		return nil, fmt.Errorf("%w: l must be positive and even, got %d", ErrInvalidLength, l)
	}
	start := 0
	if normMean {
		start = 1
	}
	if l/2+start > windowSize/2+1 {
		return nil, fmt.Errorf("%w: %d values need %d coefficients, window of %d has %d",
			ErrInvalidLength, l, l/2+start, windowSize, windowSize/2+1)
	}

	m := &MFT{
		windowSize:    windowSize,
		length:        l,
		start:         start,
		normMean:      normMean,
		lowerBounding: lowerBounding,
		norm:          1,
		phis:          make([]float64, l),
		weights:       make([]float64, l),
	}
	if lowerBounding {
		m.norm = 1 / math.Sqrt(float64(windowSize))
	}

	for c := 0; c < l/2; c++ {
		k := start + c
		theta := 2 * math.Pi * float64(k) / float64(windowSize)
		m.phis[2*c] = math.Cos(theta)
		m.phis[2*c+1] = math.Sin(theta)

		w := 2.0
		if k == 0 || (windowSize%2 == 0 && k == windowSize/2) {
			w = 1
		}
		m.weights[2*c] = w
		m.weights[2*c+1] = w
	}
	return m, nil
}

// WindowSize returns the configured window size.
func (m *MFT) WindowSize() int { return m.windowSize }

// Length returns the number of real values per coefficient vector.
func (m *MFT) Length() int { return m.length }

// NormMean reports whether the DC coefficient is dropped.
func (m *MFT) NormMean() bool { return m.normMean }

// LowerBounding reports whether coefficients are scaled by 1/sqrt(windowSize).
func (m *MFT) LowerBounding() bool { return m.lowerBounding }

// Weights returns the multiplicity of each output value in the squared
// distance: 2 for coefficients whose conjugate is not retained, 1 for the
// self-conjugate DC and Nyquist terms. The slice must not be modified.
func (m *MFT) Weights() []float64 { return m.weights }

// Transform computes the coefficient vector of a single window.
func (m *MFT) Transform(window []float64) ([]float64, error) {
	if len(window) != m.windowSize {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrWindowSize, m.windowSize, len(window))
	}
	out := make([]float64, m.length)
	m.dft(window, out)
	for i := range out {
		out[i] *= m.norm
	}
	return out, nil
}

// dft writes the unscaled retained coefficients of window into out.
func (m *MFT) dft(window []float64, out []float64) {
	n := float64(m.windowSize)
	for c := 0; c < m.length/2; c++ {
		k := float64(m.start + c)
		var re, im float64
		for t, x := range window {
			theta := 2 * math.Pi * k * float64(t) / n
			re += x * math.Cos(theta)
			im -= x * math.Sin(theta)
		}
		out[2*c] = re
		out[2*c+1] = im
	}
}

// TransformWindowing computes the coefficient vector of every sliding window
// of series. The result has len(series)-WindowSize+1 entries, or none when the
// series is shorter than one window.
func (m *MFT) TransformWindowing(series []float64) [][]float64 {
	return m.windowing(series, nil, nil)
}

// TransformWindowingNormalized is TransformWindowing for z-normalised windows:
// the coefficients of window t are those of (x - means[t]) * invStds[t].
func (m *MFT) TransformWindowingNormalized(series, means, invStds []float64) [][]float64 {
	return m.windowing(series, means, invStds)
}

func (m *MFT) windowing(series, means, invStds []float64) [][]float64 {
	count := len(series) - m.windowSize + 1
	if count <= 0 {
		return nil
	}

	// state holds the unscaled coefficients of the current window.
	state := make([]float64, m.length)
	m.dft(series[:m.windowSize], state)

	data := make([]float64, count*m.length)
	out := make([][]float64, count)
	for t := 0; t < count; t++ {
		if t > 0 {
			delta := series[t+m.windowSize-1] - series[t-1]
			for c := 0; c < m.length; c += 2 {
				re := state[c] + delta
				im := state[c+1]
				cos, sin := m.phis[c], m.phis[c+1]
				state[c] = re*cos - im*sin
				state[c+1] = re*sin + im*cos
			}
		}

		row := data[t*m.length : (t+1)*m.length]
		copy(row, state)
		scale := m.norm
		if invStds != nil {
			scale *= invStds[t]
			if m.start == 0 {
				row[0] -= float64(m.windowSize) * means[t]
			}
		}
		for i := range row {
			row[i] *= scale
		}
		out[t] = row
	}
	return out
}

// RollingStats returns the mean and inverse standard deviation of every
// sliding window of series. Windows whose standard deviation is at most
// distance.MinStd get an inverse standard deviation of 1.
func RollingStats(series []float64, windowSize int) (means, invStds []float64) {
	count := len(series) - windowSize + 1
	if windowSize <= 0 || count <= 0 {
		return nil, nil
	}
	means = make([]float64, count)
	invStds = make([]float64, count)

	var sum, sumSq float64
	for _, v := range series[:windowSize] {
		sum += v
		sumSq += v * v
	}
	n := float64(windowSize)
	for t := 0; t < count; t++ {
		if t > 0 {
			out, in := series[t-1], series[t+windowSize-1]
			sum += in - out
			sumSq += in*in - out*out
		}
		mean := sum / n
		variance := sumSq/n - mean*mean
		std := 0.0
		if variance > 0 {
			std = math.Sqrt(variance)
		}
		means[t] = mean
		invStds[t] = distance.InvStd(std)
	}
	return means, invStds
}
