package testutil

import (
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/hupe1980/sfatrie/distance"
)

// SearchResult represents a search result.
type SearchResult struct {
	ID       int
	Distance float64
}

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// RandomWalk generates a random walk of n steps with standard normal increments.
func (r *RNG) RandomWalk(n int) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]float64, n)
	var v float64
	for i := range out {
		v += r.rand.NormFloat64()
		out[i] = v
	}
	return out
}

// GaussianSeries generates n independent standard normal samples.
func (r *RNG) GaussianSeries(n int) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]float64, n)
	for i := range out {
		out[i] = r.rand.NormFloat64()
	}
	return out
}

// RandomWalks generates num random walks of length n.
// Uses a single backing array for efficiency.
func (r *RNG) RandomWalks(num, n int) [][]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float64, num*n)
	series := make([][]float64, num)
	for i := range num {
		s := data[i*n : (i+1)*n]
		var v float64
		for j := range s {
			v += r.rand.NormFloat64()
			s[j] = v
		}
		series[i] = s
	}
	return series
}

// LabeledSeries generates num series of length n in the given number of
// classes. Class c is a sine wave with frequency c+1 plus gaussian noise.
func (r *RNG) LabeledSeries(num, n, classes int, noise float64) ([][]float64, []float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	series := make([][]float64, num)
	labels := make([]float64, num)
	for i := range num {
		c := i % classes
		s := make([]float64, n)
		for j := range s {
			s[j] = math.Sin(2*math.Pi*float64(c+1)*float64(j)/float64(n)) + noise*r.rand.NormFloat64()
		}
		series[i] = s
		labels[i] = float64(c)
	}
	return series, labels
}

// BruteForceSearch performs an exact linear scan for ground truth.
// Distances are squared Euclidean.
func BruteForceSearch(series [][]float64, query []float64, k int) []SearchResult {
	results := make([]SearchResult, len(series))
	for i, s := range series {
		results[i] = SearchResult{ID: i, Distance: distance.SquaredL2(query, s)}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if len(results) > k {
		results = results[:k]
	}
	return results
}

// BruteForceRange returns every series within squared distance eps of query,
// sorted by distance.
func BruteForceRange(series [][]float64, query []float64, eps float64) []SearchResult {
	var results []SearchResult
	for i, s := range series {
		if d := distance.SquaredL2(query, s); d <= eps {
			results = append(results, SearchResult{ID: i, Distance: d})
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	return results
}

// Windows returns the z-normalised sliding windows of series.
func Windows(series []float64, windowSize int) [][]float64 {
	count := len(series) - windowSize + 1
	if count <= 0 {
		return nil
	}
	out := make([][]float64, count)
	for off := range out {
		out[off] = distance.ZNormalize(nil, series[off:off+windowSize])
	}
	return out
}
