package trie

import (
	"errors"
	"fmt"
)

var (
	// ErrDonorHasElements is returned by Merge when the donor root is a leaf.
	ErrDonorHasElements = errors.New("trie: donor root holds elements")

	// ErrCompressed is returned when mutating or reading the approximation
	// arena after Compress.
	ErrCompressed = errors.New("trie: trie is compressed")

	// ErrStorageMismatch is returned by Merge when the tries index different storage.
	ErrStorageMismatch = errors.New("trie: tries do not share storage")

	// ErrIncompatible is returned by Merge when word length or alphabet differ.
	ErrIncompatible = errors.New("trie: incompatible tries")

	// ErrInvalidApproximation is returned for approximations that do not fit the trie.
	ErrInvalidApproximation = errors.New("trie: invalid approximation")

	// ErrInvariant is matched by every *InvariantError.
	ErrInvariant = errors.New("trie: invariant violated")

	// ErrInvalidFormat is returned when decoding a malformed stream.
	ErrInvalidFormat = errors.New("trie: invalid format")
)

// InvariantError reports a structural defect found by Check.
type InvariantError struct {
	Path   string
	Reason string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("trie: invariant violated at %s: %s", e.Path, e.Reason)
}

// Unwrap returns ErrInvariant.
func (e *InvariantError) Unwrap() error {
	return ErrInvariant
}
