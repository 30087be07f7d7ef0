package trie

import (
	"fmt"
	"slices"

	"github.com/hupe1980/sfatrie/distance"
	"github.com/hupe1980/sfatrie/mft"
)

// Mode is the matching mode of a trie.
type Mode uint8

const (
	// WholeSeries indexes one word per series.
	WholeSeries Mode = iota
	// Subsequence indexes one word per window offset of a long series.
	Subsequence
)

func (m Mode) String() string {
	switch m {
	case WholeSeries:
		return "WholeSeries"
	case Subsequence:
		return "Subsequence"
	default:
		return fmt.Sprintf("Mode(%d)", m)
	}
}

// Storage holds the raw values candidates are verified against.
// Implementations must be safe for concurrent reads.
type Storage interface {
	// Mode returns the matching mode the storage serves.
	Mode() Mode
	// Len returns the number of addressable positions.
	Len() int
	// Dim returns the length of one element.
	Dim() int
	// Distance returns the squared distance between query and the element at
	// pos, or distance.TooFar once the partial sum reaches best.
	Distance(pos int, query []float64, best float64) float64
	// Values returns the element at pos as it is compared.
	Values(pos int) []float64
}

// SeriesStorage stores one series per position.
type SeriesStorage struct {
	dim    int
	series [][]float64
}

// NewSeriesStorage creates an empty store for series of length dim.
func NewSeriesStorage(dim int) *SeriesStorage {
	return &SeriesStorage{dim: dim}
}

// Append stores a copy of s and returns its position.
func (s *SeriesStorage) Append(series []float64) (int, error) {
	if len(series) != s.dim {
		return 0, fmt.Errorf("%w: series of length %d, storage holds %d", ErrInvalidApproximation, len(series), s.dim)
	}
	s.series = append(s.series, slices.Clone(series))
	return len(s.series) - 1, nil
}

// Mode implements Storage.
func (s *SeriesStorage) Mode() Mode { return WholeSeries }

// Len implements Storage.
func (s *SeriesStorage) Len() int { return len(s.series) }

// Dim implements Storage.
func (s *SeriesStorage) Dim() int { return s.dim }

// Distance implements Storage.
func (s *SeriesStorage) Distance(pos int, query []float64, best float64) float64 {
	return distance.SquaredL2Bounded(s.series[pos], query, best)
}

// Values implements Storage.
func (s *SeriesStorage) Values(pos int) []float64 { return s.series[pos] }

// WindowStorage stores one long series and the rolling statistics of every
// window, so that windows are z-normalised on the fly.
type WindowStorage struct {
	windowSize int
	series     []float64
	means      []float64
	invStds    []float64
}

// NewWindowStorage computes the rolling statistics of series.
func NewWindowStorage(series []float64, windowSize int) (*WindowStorage, error) {
	if windowSize <= 0 || len(series) < windowSize {
		return nil, fmt.Errorf("%w: series of length %d has no window of %d", ErrInvalidApproximation, len(series), windowSize)
	}
	means, invStds := mft.RollingStats(series, windowSize)
	return &WindowStorage{
		windowSize: windowSize,
		series:     slices.Clone(series),
		means:      means,
		invStds:    invStds,
	}, nil
}

// NewRawWindowStorage is NewWindowStorage for windows compared without
// normalisation: every mean is 0 and every inverse standard deviation 1.
func NewRawWindowStorage(series []float64, windowSize int) (*WindowStorage, error) {
	if windowSize <= 0 || len(series) < windowSize {
		return nil, fmt.Errorf("%w: series of length %d has no window of %d", ErrInvalidApproximation, len(series), windowSize)
	}
	count := len(series) - windowSize + 1
	invStds := make([]float64, count)
	for i := range invStds {
		invStds[i] = 1
	}
	return &WindowStorage{
		windowSize: windowSize,
		series:     slices.Clone(series),
		means:      make([]float64, count),
		invStds:    invStds,
	}, nil
}

// Mode implements Storage.
func (s *WindowStorage) Mode() Mode { return Subsequence }

// Len implements Storage.
func (s *WindowStorage) Len() int { return len(s.means) }

// Dim implements Storage.
func (s *WindowStorage) Dim() int { return s.windowSize }

// Series returns the raw series.
func (s *WindowStorage) Series() []float64 { return s.series }

// Stats returns the rolling means and inverse standard deviations.
func (s *WindowStorage) Stats() (means, invStds []float64) { return s.means, s.invStds }

// Distance implements Storage.
func (s *WindowStorage) Distance(pos int, query []float64, best float64) float64 {
	return distance.WindowSquaredL2Bounded(s.series[pos:pos+s.windowSize], s.means[pos], s.invStds[pos], query, best)
}

// Values implements Storage. It returns a normalised copy of the window.
func (s *WindowStorage) Values(pos int) []float64 {
	out := make([]float64, s.windowSize)
	mean, inv := s.means[pos], s.invStds[pos]
	for i, v := range s.series[pos : pos+s.windowSize] {
		out[i] = (v - mean) * inv
	}
	return out
}
