package sfatrie

import (
	"errors"
	"fmt"

	"github.com/hupe1980/sfatrie/mft"
	"github.com/hupe1980/sfatrie/sfa"
	"github.com/hupe1980/sfatrie/word"
)

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("sfatrie: k must be positive")

	// ErrNotBuilt is returned when searching or saving an index before a build.
	ErrNotBuilt = errors.New("sfatrie: index not built")

	// ErrAlreadyBuilt is returned when building an index twice.
	ErrAlreadyBuilt = errors.New("sfatrie: index already built")

	// ErrInvalidRadius is returned for a negative range-search radius.
	ErrInvalidRadius = errors.New("sfatrie: radius must not be negative")

	// ErrInvalidSnapshot is returned when a snapshot decodes to an
	// inconsistent index.
	ErrInvalidSnapshot = errors.New("sfatrie: invalid snapshot")
)

// ErrDimensionMismatch indicates a series or query of the wrong length.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("sfatrie: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ErrInvalidConfig indicates a Config field that cannot be used.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrInvalidConfig struct {
	Field  string
	Reason string
	cause  error
}

func (e *ErrInvalidConfig) Error() string {
	return fmt.Sprintf("sfatrie: invalid config %s: %s", e.Field, e.Reason)
}

func (e *ErrInvalidConfig) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sfa.ErrNotFitted) {
		return fmt.Errorf("%w: %w", ErrNotBuilt, err)
	}

	var field string
	switch {
	case errors.Is(err, sfa.ErrInvalidAlphabet), errors.Is(err, word.ErrInvalidAlphabet):
		field = "AlphabetSize"
	case errors.Is(err, word.ErrWordTooWide):
		field = "WordLength"
	case errors.Is(err, mft.ErrInvalidLength):
		field = "Coefficients"
	default:
		return err
	}
	return &ErrInvalidConfig{Field: field, Reason: err.Error(), cause: err}
}
