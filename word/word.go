// Package word packs SFA symbol sequences into a single 64-bit integer.
//
// Symbols are stored most-significant-first: symbol 0 occupies the top
// BitsPerSymbol bits of the word. Truncating a word to its first k symbols is
// therefore a mask of the top k*BitsPerSymbol bits, and two words share a
// prefix of length k exactly when their k-prefixes compare equal.
package word

import (
	"errors"
	"fmt"
	"math/bits"
)

// Word is a packed symbol sequence.
type Word uint64

// ErrWordTooWide is returned when wordLength * bitsPerSymbol exceeds 64.
var ErrWordTooWide = errors.New("word: packed word exceeds 64 bits")

// ErrInvalidAlphabet is returned for alphabets outside [2, 256].
var ErrInvalidAlphabet = errors.New("word: alphabet size must be in [2, 256]")

// Packer converts between symbol slices and packed words.
type Packer struct {
	length int
	bits   int
	mask   uint64
}

// BitsPerSymbol returns ceil(log2(alphabetSize)), at least 1.
func BitsPerSymbol(alphabetSize int) int {
	if alphabetSize <= 2 {
		return 1
	}
	return bits.Len(uint(alphabetSize - 1))
}

// NewPacker creates a packer for words of the given length over the given alphabet.
func NewPacker(wordLength, alphabetSize int) (Packer, error) {
	if alphabetSize < 2 || alphabetSize > 256 {
		return Packer{}, fmt.Errorf("%w: got %d", ErrInvalidAlphabet, alphabetSize)
	}
	if wordLength <= 0 {
		return Packer{}, fmt.Errorf("word: word length must be positive, got %d", wordLength)
	}
	b := BitsPerSymbol(alphabetSize)
	if wordLength*b > 64 {
		return Packer{}, fmt.Errorf("%w: %d symbols x %d bits", ErrWordTooWide, wordLength, b)
	}
	return Packer{
		length: wordLength,
		bits:   b,
		mask:   (1 << b) - 1,
	}, nil
}

// Length returns the number of symbols per word.
func (p Packer) Length() int { return p.length }

// BitsPerSymbol returns the number of bits per symbol.
func (p Packer) BitsPerSymbol() int { return p.bits }

// Pack packs up to Length symbols. Extra symbols are ignored.
func (p Packer) Pack(symbols []uint8) Word {
	var w uint64
	n := min(len(symbols), p.length)
	for i := 0; i < n; i++ {
		w |= (uint64(symbols[i]) & p.mask) << p.shift(i)
	}
	return Word(w)
}

// Unpack returns the Length symbols of w.
func (p Packer) Unpack(w Word) []uint8 {
	out := make([]uint8, p.length)
	for i := range out {
		out[i] = p.Symbol(w, i)
	}
	return out
}

// Symbol returns the i-th symbol of w.
func (p Packer) Symbol(w Word, i int) uint8 {
	return uint8((uint64(w) >> p.shift(i)) & p.mask)
}

// Prefix truncates w to its first k symbols.
func (p Packer) Prefix(w Word, k int) Word {
	if k <= 0 {
		return 0
	}
	if k >= p.length {
		k = p.length
	}
	keep := uint(k * p.bits)
	if keep >= 64 {
		return w
	}
	return w &^ Word((uint64(1)<<(64-keep))-1)
}

// SharePrefix reports whether a and b agree on their first k symbols.
func (p Packer) SharePrefix(a, b Word, k int) bool {
	return p.Prefix(a, k) == p.Prefix(b, k)
}

// String renders w as its symbol sequence, e.g. "[3 0 7 1]".
func (p Packer) String(w Word) string {
	return fmt.Sprint(p.Unpack(w))
}

func (p Packer) shift(i int) uint {
	return uint(64 - (i+1)*p.bits)
}
