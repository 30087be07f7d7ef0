// Package distance provides the exact distance functions used to verify trie
// candidates.
//
// All functions return squared Euclidean distances. The bounded variants
// abandon early: the moment the running sum reaches bestSoFar they return
// TooFar instead of finishing the computation.
//
// # Usage
//
//	d := distance.SquaredL2(a, b)
//	d = distance.SquaredL2Bounded(a, b, best) // TooFar if d >= best
//
//	// z-normalised window of a long series against a normalised query
//	d = distance.WindowSquaredL2Bounded(series[off:off+n], mean, invStd, q, best)
package distance

import "math"

// TooFar is the sentinel returned by the bounded functions when a candidate
// cannot beat the current best.
var TooFar = math.Inf(1)

// SquaredL2 calculates the squared L2 (Euclidean) distance between two series.
// Assumes equal lengths (caller's responsibility).
func SquaredL2(a, b []float64) float64 {
	if len(b) < len(a) {
		a = a[:len(b)]
	}
	b = b[:len(a)]
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// SquaredL2Bounded is SquaredL2 with early abandoning.
// It returns TooFar as soon as the partial sum reaches bestSoFar.
func SquaredL2Bounded(a, b []float64, bestSoFar float64) float64 {
	if len(b) < len(a) {
		a = a[:len(b)]
	}
	b = b[:len(a)]
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
		if sum >= bestSoFar {
			return TooFar
		}
	}
	return sum
}

// WindowSquaredL2Bounded compares a raw window, normalised on the fly with the
// given mean and inverse standard deviation, against an already z-normalised
// query. It abandons like SquaredL2Bounded.
func WindowSquaredL2Bounded(window []float64, mean, invStd float64, query []float64, bestSoFar float64) float64 {
	if len(query) < len(window) {
		window = window[:len(query)]
	}
	query = query[:len(window)]
	var sum float64
	for i := range window {
		d := (window[i]-mean)*invStd - query[i]
		sum += d * d
		if sum >= bestSoFar {
			return TooFar
		}
	}
	return sum
}

// MinStd is the standard deviation below which a window is treated as
// constant and left unscaled.
const MinStd = 1e-8

// MeanStd returns the mean and population standard deviation of x.
func MeanStd(x []float64) (mean, std float64) {
	if len(x) == 0 {
		return 0, 0
	}
	var sum, sumSq float64
	for _, v := range x {
		sum += v
		sumSq += v * v
	}
	n := float64(len(x))
	mean = sum / n
	variance := sumSq/n - mean*mean
	if variance <= 0 {
		return mean, 0
	}
	return mean, math.Sqrt(variance)
}

// InvStd returns 1/std, or 1 when std is too small to divide by.
func InvStd(std float64) float64 {
	if std <= MinStd {
		return 1
	}
	return 1 / std
}

// ZNormalize writes the z-normalised copy of src into dst and returns it.
// dst is allocated when it is too short.
func ZNormalize(dst, src []float64) []float64 {
	if cap(dst) < len(src) {
		dst = make([]float64, len(src))
	}
	dst = dst[:len(src)]
	mean, std := MeanStd(src)
	inv := InvStd(std)
	for i, v := range src {
		dst[i] = (v - mean) * inv
	}
	return dst
}
