package bulk

import (
	"bytes"
	"fmt"

	"github.com/hupe1980/sfatrie/internal/conv"
	"github.com/hupe1980/sfatrie/persistence"
	"github.com/hupe1980/sfatrie/trie"
	"github.com/hupe1980/sfatrie/word"
)

// Records are fixed-size little-endian triples:
//
//	word:u64 coeffs:f64 x l pos:i64
func recordSize(l int) int { return 8 + 8*l + 8 }

// recordBuffer accumulates the records of one bucket until the next flush.
type recordBuffer struct {
	buf   bytes.Buffer
	w     *persistence.Writer
	count int
}

func newRecordBuffer(l, capacity int) *recordBuffer {
	rb := &recordBuffer{}
	rb.buf.Grow(recordSize(l) * capacity)
	rb.w = persistence.NewWriter(&rb.buf)
	return rb
}

func (rb *recordBuffer) add(a trie.Approximation) {
	rb.w.Uint64(uint64(a.Word))
	rb.w.RawFloat64s(a.Coeffs)
	rb.w.Int64(int64(a.Pos))
	rb.count++
}

func (rb *recordBuffer) reset() {
	rb.buf.Reset()
	rb.count = 0
}

// decodeRecords decodes a block of records with l coefficients each.
func decodeRecords(data []byte, l int, fn func(trie.Approximation) error) error {
	size := recordSize(l)
	if len(data)%size != 0 {
		return fmt.Errorf("%w: block of %d bytes is not a multiple of %d", ErrCorruptBucket, len(data), size)
	}
	br := persistence.NewReader(bytes.NewReader(data))
	for range len(data) / size {
		w := word.Word(br.Uint64())
		coeffs := br.RawFloat64s(l)
		rawPos := br.Int64()
		if err := br.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrCorruptBucket, err)
		}
		pos, err := conv.Int64ToInt(rawPos)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCorruptBucket, err)
		}
		if err := fn(trie.Approximation{Word: w, Coeffs: coeffs, Pos: pos}); err != nil {
			return err
		}
	}
	return nil
}
