// Package sfa implements Symbolic Fourier Approximation quantization.
//
// An SFA quantizer learns alphabetSize-1 boundaries ("bins") per coefficient
// from a training corpus and maps any coefficient vector to a word of
// wordLength symbols in [0, alphabetSize).
//
//	q, _ := sfa.New(sfa.EquiDepth, 4, 8)
//	_ = q.Fit(coeffs, nil)
//	symbols, _ := q.Quantize(coeffs[0])
//
// Three binning strategies are supported: EquiWidth and EquiDepth
// (unsupervised) and InformationGain (supervised, requires labels).
// WithSupervised additionally ranks coefficients by their ANOVA F-statistic
// and keeps the top wordLength instead of the first wordLength.
package sfa

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/hupe1980/sfatrie/distance"
	"github.com/hupe1980/sfatrie/mft"
)

var (
	// ErrNotFitted is returned when quantizing before Fit.
	ErrNotFitted = errors.New("sfa: quantizer not fitted")

	// ErrInvalidAlphabet is returned for alphabets outside [2, 256].
	ErrInvalidAlphabet = errors.New("sfa: alphabet size must be in [2, 256]")

	// ErrLabelsRequired is returned when a supervised fit has no labels.
	ErrLabelsRequired = errors.New("sfa: labels required")

	// ErrNoSamples is returned when fitting on an empty corpus.
	ErrNoSamples = errors.New("sfa: no training samples")

	// ErrDimensionMismatch is returned when a coefficient vector is too short.
	ErrDimensionMismatch = errors.New("sfa: coefficient vector too short")
)

// HistogramKind selects the binning strategy.
type HistogramKind uint8

const (
	// EquiDepth places boundaries so each bin holds about count/alphabetSize values.
	EquiDepth HistogramKind = iota
	// EquiWidth splits [min, max] into alphabetSize equal intervals.
	EquiWidth
	// InformationGain places boundaries by recursive entropy-maximising splits.
	InformationGain
)

func (k HistogramKind) String() string {
	switch k {
	case EquiDepth:
		return "EquiDepth"
	case EquiWidth:
		return "EquiWidth"
	case InformationGain:
		return "InformationGain"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// Option configures an SFA quantizer.
type Option func(*SFA)

// WithSupervised enables ANOVA coefficient selection. Fit then requires labels.
func WithSupervised(enabled bool) Option {
	return func(s *SFA) {
		s.supervised = enabled
	}
}

// SFA is a fitted (or unfitted) quantizer.
// After Fit it is safe for concurrent use by Quantize and Project.
type SFA struct {
	kind         HistogramKind
	wordLength   int
	alphabetSize int
	supervised   bool

	selected []int       // coefficient index per word position
	bins     [][]float64 // per word position, alphabetSize-1 ascending boundaries
	fitted   bool
}

// New creates an unfitted quantizer.
func New(kind HistogramKind, wordLength, alphabetSize int, opts ...Option) (*SFA, error) {
	if alphabetSize < 2 || alphabetSize > 256 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidAlphabet, alphabetSize)
	}
	if wordLength <= 0 {
		return nil, fmt.Errorf("sfa: word length must be positive, got %d", wordLength)
	}
	if kind > InformationGain {
		return nil, fmt.Errorf("sfa: unknown histogram kind %d", kind)
	}
	s := &SFA{
		kind:         kind,
		wordLength:   wordLength,
		alphabetSize: alphabetSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Kind returns the binning strategy.
func (s *SFA) Kind() HistogramKind { return s.kind }

// WordLength returns the number of symbols per word.
func (s *SFA) WordLength() int { return s.wordLength }

// AlphabetSize returns the number of distinct symbols.
func (s *SFA) AlphabetSize() int { return s.alphabetSize }

// Supervised reports whether ANOVA selection is enabled.
func (s *SFA) Supervised() bool { return s.supervised }

// Fitted reports whether Fit has completed.
func (s *SFA) Fitted() bool { return s.fitted }

// Selected returns the coefficient index used by each word position.
func (s *SFA) Selected() []int { return slices.Clone(s.selected) }

// Bins returns a copy of the learned boundaries, one row per word position.
func (s *SFA) Bins() [][]float64 {
	out := make([][]float64, len(s.bins))
	for i, row := range s.bins {
		out[i] = slices.Clone(row)
	}
	return out
}

// Fit learns the bins from coefficient vectors. labels may be nil unless the
// quantizer is supervised or uses InformationGain.
func (s *SFA) Fit(coeffs [][]float64, labels []float64) error {
	if len(coeffs) == 0 {
		return ErrNoSamples
	}
	needLabels := s.supervised || s.kind == InformationGain
	if needLabels && len(labels) != len(coeffs) {
		return fmt.Errorf("%w: got %d labels for %d samples", ErrLabelsRequired, len(labels), len(coeffs))
	}

	dims := len(coeffs[0])
	for i, c := range coeffs {
		if len(c) != dims {
			return fmt.Errorf("%w: sample %d has %d coefficients, expected %d", ErrDimensionMismatch, i, len(c), dims)
		}
	}
	if dims < s.wordLength {
		return fmt.Errorf("%w: %d coefficients for word length %d", ErrDimensionMismatch, dims, s.wordLength)
	}

	var selected []int
	if s.supervised {
		selected = topByFStatistic(coeffs, labels, s.wordLength)
	} else {
		selected = make([]int, s.wordLength)
		for i := range selected {
			selected[i] = i
		}
	}

	bins := make([][]float64, s.wordLength)
	for pos, dim := range selected {
		line := orderLine(coeffs, labels, dim)
		switch s.kind {
		case EquiWidth:
			bins[pos] = equiWidthBins(line, s.alphabetSize)
		case EquiDepth:
			bins[pos] = equiDepthBins(line, s.alphabetSize)
		case InformationGain:
			bins[pos] = informationGainBins(line, s.alphabetSize)
		}
	}

	s.selected = selected
	s.bins = bins
	s.fitted = true
	return nil
}

// FitWindowing fits on every sliding window of every training series.
// When zNormalize is set, each window is z-normalised with its rolling mean
// and standard deviation. labels holds one label per series.
func (s *SFA) FitWindowing(series [][]float64, m *mft.MFT, labels []float64, zNormalize bool) error {
	var coeffs [][]float64
	var windowLabels []float64
	for i, ts := range series {
		var windows [][]float64
		if zNormalize {
			means, invStds := mft.RollingStats(ts, m.WindowSize())
			windows = m.TransformWindowingNormalized(ts, means, invStds)
		} else {
			windows = m.TransformWindowing(ts)
		}
		coeffs = append(coeffs, windows...)
		if labels != nil {
			for range windows {
				windowLabels = append(windowLabels, labels[i])
			}
		}
	}
	return s.Fit(coeffs, windowLabels)
}

// Quantize maps a coefficient vector to its symbols.
func (s *SFA) Quantize(coeffs []float64) ([]uint8, error) {
	out := make([]uint8, s.wordLength)
	if err := s.QuantizeInto(out, coeffs); err != nil {
		return nil, err
	}
	return out, nil
}

// QuantizeInto is Quantize writing into dst, which must hold WordLength symbols.
func (s *SFA) QuantizeInto(dst []uint8, coeffs []float64) error {
	if !s.fitted {
		return ErrNotFitted
	}
	if len(dst) < s.wordLength {
		return fmt.Errorf("sfa: destination holds %d symbols, need %d", len(dst), s.wordLength)
	}
	for pos, dim := range s.selected {
		if dim >= len(coeffs) {
			return fmt.Errorf("%w: need coefficient %d, got %d", ErrDimensionMismatch, dim, len(coeffs))
		}
		dst[pos] = symbolFor(s.bins[pos], coeffs[dim])
	}
	return nil
}

// Project returns the coefficients each word position was built from.
func (s *SFA) Project(coeffs []float64) ([]float64, error) {
	if !s.fitted {
		return nil, ErrNotFitted
	}
	out := make([]float64, s.wordLength)
	for pos, dim := range s.selected {
		if dim >= len(coeffs) {
			return nil, fmt.Errorf("%w: need coefficient %d, got %d", ErrDimensionMismatch, dim, len(coeffs))
		}
		out[pos] = coeffs[dim]
	}
	return out, nil
}

// symbolFor returns the index of the first boundary greater than v, or
// len(bins) when v is at or above every boundary.
func symbolFor(bins []float64, v float64) uint8 {
	c := 0
	for ; c < len(bins); c++ {
		if v < bins[c] {
			break
		}
	}
	return uint8(c)
}

type valueLabel struct {
	value float64
	label float64
}

// orderLine returns the values of one coefficient sorted ascending, ties
// broken by label.
func orderLine(coeffs [][]float64, labels []float64, dim int) []valueLabel {
	line := make([]valueLabel, len(coeffs))
	for i, c := range coeffs {
		line[i].value = c[dim]
		if labels != nil {
			line[i].label = labels[i]
		}
	}
	slices.SortFunc(line, func(a, b valueLabel) int {
		if c := cmp.Compare(a.value, b.value); c != 0 {
			return c
		}
		return cmp.Compare(a.label, b.label)
	})
	return line
}

func newBins(alphabetSize int) []float64 {
	bins := make([]float64, alphabetSize-1)
	for i := range bins {
		bins[i] = math.Inf(1)
	}
	return bins
}

func equiWidthBins(line []valueLabel, alphabetSize int) []float64 {
	bins := newBins(alphabetSize)
	lo, hi := line[0].value, line[len(line)-1].value
	width := (hi - lo) / float64(alphabetSize)
	for i := range bins {
		bins[i] = lo + width*float64(i+1)
	}
	return bins
}

func equiDepthBins(line []valueLabel, alphabetSize int) []float64 {
	bins := newBins(alphabetSize)
	depth := float64(len(line)) / float64(alphabetSize)
	pos := 0
	for i, vl := range line {
		if pos >= len(bins) {
			break
		}
		// A repeated value never becomes a second boundary, so equal values
		// always share a bin.
		if float64(i+1) > math.Ceil(depth*float64(pos+1)) && (pos == 0 || bins[pos-1] != vl.value) {
			bins[pos] = vl.value
			pos++
		}
	}
	return bins
}

func informationGainBins(line []valueLabel, alphabetSize int) []float64 {
	var splits []int
	findBestSplit(line, 0, len(line), alphabetSize, &splits)

	slices.Sort(splits)
	splits = slices.Compact(splits)

	bins := newBins(alphabetSize)
	for i, p := range splits {
		if i >= len(bins) {
			break
		}
		bins[i] = line[p].value
	}
	return bins
}

// findBestSplit finds the split position in line[start:end] with maximal
// information gain and recurses into both halves with half the symbol budget.
// A split at p means values < line[p].value go left.
func findBestSplit(line []valueLabel, start, end, budget int, splits *[]int) {
	n := end - start
	if budget < 2 || n < 2 {
		return
	}

	right := make(map[float64]int)
	for _, vl := range line[start:end] {
		right[vl.label]++
	}
	left := make(map[float64]int, len(right))
	total := entropy(right, n)

	bestGain, bestPos := -1.0, -1
	for p := start + 1; p < end; p++ {
		prev := line[p-1]
		left[prev.label]++
		right[prev.label]--

		// Only label changes between distinct values can improve the gain.
		if prev.label == line[p].label || prev.value == line[p].value {
			continue
		}
		nl, nr := p-start, end-p
		gain := total -
			float64(nl)/float64(n)*entropy(left, nl) -
			float64(nr)/float64(n)*entropy(right, nr)
		if gain >= bestGain {
			bestGain, bestPos = gain, p
		}
	}
	if bestPos < 0 {
		return
	}

	*splits = append(*splits, bestPos)
	budget /= 2
	if budget < 2 {
		return
	}
	if bestPos-start > 2 {
		findBestSplit(line, start, bestPos, budget, splits)
	}
	if end-bestPos > 2 {
		findBestSplit(line, bestPos, end, budget, splits)
	}
}

func entropy(counts map[float64]int, total int) float64 {
	if total <= 0 {
		return 0
	}
	var h float64
	for _, c := range counts {
		if c <= 0 {
			continue
		}
		p := float64(c) / float64(total)
		h -= p * math.Log2(p)
	}
	return h
}

// FStatistics returns the one-way ANOVA F-statistic of every coefficient.
func FStatistics(coeffs [][]float64, labels []float64) []float64 {
	if len(coeffs) == 0 {
		return nil
	}
	dims := len(coeffs[0])

	type classStats struct {
		n     int
		sum   []float64
		sumSq []float64
	}
	classes := make(map[float64]*classStats)
	order := make([]float64, 0)
	for i, c := range coeffs {
		st, ok := classes[labels[i]]
		if !ok {
			st = &classStats{sum: make([]float64, dims), sumSq: make([]float64, dims)}
			classes[labels[i]] = st
			order = append(order, labels[i])
		}
		st.n++
		for d := 0; d < dims; d++ {
			st.sum[d] += c[d]
			st.sumSq[d] += c[d] * c[d]
		}
	}

	n := float64(len(coeffs))
	k := float64(len(classes))
	f := make([]float64, dims)
	for d := 0; d < dims; d++ {
		var grand float64
		for _, label := range order {
			grand += classes[label].sum[d]
		}
		grand /= n

		var ssb, ssw float64
		for _, label := range order {
			st := classes[label]
			cn := float64(st.n)
			mean := st.sum[d] / cn
			ssb += cn * (mean - grand) * (mean - grand)
			ssw += st.sumSq[d] - cn*mean*mean
		}

		dfb, dfw := k-1, n-k
		switch {
		case dfb <= 0 || dfw <= 0:
			f[d] = 0
		case ssw <= distance.MinStd:
			if ssb > 0 {
				f[d] = math.Inf(1)
			}
		default:
			f[d] = (ssb / dfb) / (ssw / dfw)
		}
	}
	return f
}

// topByFStatistic returns the indices of the n coefficients with the largest
// F-statistic, best first; ties keep the lower index.
func topByFStatistic(coeffs [][]float64, labels []float64, n int) []int {
	f := FStatistics(coeffs, labels)
	idx := make([]int, len(f))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		return cmp.Compare(f[b], f[a])
	})
	return idx[:n]
}
