package sfatrie

import (
	"github.com/hupe1980/sfatrie/sfa"
	"github.com/hupe1980/sfatrie/trie"
)

// Config describes the transform, the quantizer and the trie of an Index.
type Config struct {
	// WindowSize is the length of every indexed series, or of every window
	// in subsequence mode.
	WindowSize int
	// WordLength is the number of symbols per word and the maximum trie depth.
	WordLength int
	// AlphabetSize is the number of symbols per position, in [2, 256].
	AlphabetSize int
	// Coefficients is the number of Fourier values computed per window.
	// Supervised quantizers select WordLength of them. 0 means WordLength
	// rounded up to an even number.
	Coefficients int
	// Histogram selects the quantizer binning strategy.
	Histogram sfa.HistogramKind
	// LeafThreshold is the leaf size above which leaves split.
	LeafThreshold int
	// MinDepth forces internal nodes down to this depth.
	MinDepth int
	// ZNormalize compares z-normalised series and drops the DC coefficient.
	ZNormalize bool
	// Supervised ranks coefficients by ANOVA F-statistic. Builds then need labels.
	Supervised bool
	// CompactChildren makes Compress store sparse children as key tables.
	CompactChildren bool
}

// DefaultConfig returns a whole-series configuration for series of
// windowSize samples.
func DefaultConfig(windowSize int) Config {
	return Config{
		WindowSize:    windowSize,
		WordLength:    8,
		AlphabetSize:  8,
		Histogram:     sfa.EquiDepth,
		LeafThreshold: trie.DefaultLeafThreshold,
		ZNormalize:    true,
	}
}

func (c Config) coefficients() int {
	if c.Coefficients > 0 {
		return c.Coefficients
	}
	return c.WordLength + c.WordLength%2
}

func (c Config) validate() error {
	switch {
	case c.WindowSize <= 0:
		return &ErrInvalidConfig{Field: "WindowSize", Reason: "must be positive"}
	case c.WordLength <= 0:
		return &ErrInvalidConfig{Field: "WordLength", Reason: "must be positive"}
	case c.coefficients() < c.WordLength:
		return &ErrInvalidConfig{Field: "Coefficients", Reason: "fewer coefficients than symbols"}
	case c.LeafThreshold <= 0:
		return &ErrInvalidConfig{Field: "LeafThreshold", Reason: "must be positive"}
	case c.MinDepth < 0 || c.MinDepth > c.WordLength:
		return &ErrInvalidConfig{Field: "MinDepth", Reason: "outside [0, WordLength]"}
	}
	return nil
}
