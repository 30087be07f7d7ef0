package persistence

import (
	"errors"
	"fmt"
	"hash"
	"io"

	ihash "github.com/hupe1980/sfatrie/internal/hash"
)

// ErrChecksumMismatch is matched by every *ChecksumMismatchError.
var ErrChecksumMismatch = errors.New("persistence: checksum mismatch")

// ChecksumMismatchError reports the trailer checksum and the checksum of
// the payload actually read.
type ChecksumMismatchError struct {
	Expected uint32
	Actual   uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("persistence: checksum mismatch: trailer 0x%08x, payload 0x%08x", e.Expected, e.Actual)
}

func (e *ChecksumMismatchError) Unwrap() error { return ErrChecksumMismatch }

// crcWriter checksums the bytes that reached w.
type crcWriter struct {
	w io.Writer
	h hash.Hash32
}

func newCRCWriter(w io.Writer) *crcWriter {
	return &crcWriter{w: w, h: ihash.NewCRC32C()}
}

func (cw *crcWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	_, _ = cw.h.Write(p[:n])
	return n, err
}

// crcReader checksums the bytes read from r.
type crcReader struct {
	r io.Reader
	h hash.Hash32
}

func newCRCReader(r io.Reader) *crcReader {
	return &crcReader{r: r, h: ihash.NewCRC32C()}
}

func (cr *crcReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	_, _ = cr.h.Write(p[:n])
	return n, err
}

// verify drains the reader and compares the checksum with expected.
func (cr *crcReader) verify(expected uint32) error {
	if _, err := io.Copy(io.Discard, cr); err != nil {
		return err
	}
	if actual := cr.h.Sum32(); actual != expected {
		return &ChecksumMismatchError{Expected: expected, Actual: actual}
	}
	return nil
}
