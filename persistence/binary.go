package persistence

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"unsafe"
)

// MaxSliceLen bounds the length of any slice decoded by Reader, so that a
// corrupt length prefix cannot trigger a huge allocation.
const MaxSliceLen = 1 << 30

// Writer writes little-endian primitives and length-prefixed slices.
// The first error is sticky: later writes are no-ops and Err reports it.
type Writer struct {
	w   io.Writer
	buf [8]byte
	n   int64
	err error
}

// NewWriter creates a Writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Err returns the first write error.
func (bw *Writer) Err() error { return bw.err }

// Written returns the number of bytes written.
func (bw *Writer) Written() int64 { return bw.n }

func (bw *Writer) write(p []byte) {
	if bw.err != nil {
		return
	}
	n, err := bw.w.Write(p)
	bw.n += int64(n)
	bw.err = err
}

// Uint8 writes one byte.
func (bw *Writer) Uint8(v uint8) {
	bw.buf[0] = v
	bw.write(bw.buf[:1])
}

// Bool writes a bool as one byte.
func (bw *Writer) Bool(v bool) {
	if v {
		bw.Uint8(1)
		return
	}
	bw.Uint8(0)
}

// Uint16 writes a uint16.
func (bw *Writer) Uint16(v uint16) {
	binary.LittleEndian.PutUint16(bw.buf[:2], v)
	bw.write(bw.buf[:2])
}

// Uint32 writes a uint32.
func (bw *Writer) Uint32(v uint32) {
	binary.LittleEndian.PutUint32(bw.buf[:4], v)
	bw.write(bw.buf[:4])
}

// Int32 writes an int32.
func (bw *Writer) Int32(v int32) {
	bw.Uint32(uint32(v))
}

// Uint64 writes a uint64.
func (bw *Writer) Uint64(v uint64) {
	binary.LittleEndian.PutUint64(bw.buf[:8], v)
	bw.write(bw.buf[:8])
}

// Int64 writes an int64.
func (bw *Writer) Int64(v int64) {
	bw.Uint64(uint64(v))
}

// Float64 writes a float64.
func (bw *Writer) Float64(v float64) {
	bw.Uint64(math.Float64bits(v))
}

// Len writes a slice length prefix.
func (bw *Writer) Len(n int) {
	if n < 0 || n > MaxSliceLen {
		if bw.err == nil {
			bw.err = fmt.Errorf("persistence: slice length %d out of range", n)
		}
		return
	}
	bw.Uint32(uint32(n))
}

// Float64s writes a length-prefixed float64 slice as raw bytes.
func (bw *Writer) Float64s(v []float64) {
	bw.Len(len(v))
	bw.RawFloat64s(v)
}

// RawFloat64s writes a float64 slice as raw bytes without a length prefix.
func (bw *Writer) RawFloat64s(v []float64) {
	if len(v) == 0 || bw.err != nil {
		return
	}
	if err := checkAligned(v); err != nil {
		bw.err = err
		return
	}
	bw.write(unsafe.Slice((*byte)(unsafe.Pointer(&v[0])), len(v)*8))
}

// Int32s writes a length-prefixed int32 slice as raw bytes.
func (bw *Writer) Int32s(v []int32) {
	bw.Len(len(v))
	if len(v) == 0 || bw.err != nil {
		return
	}
	if err := checkAligned(v); err != nil {
		bw.err = err
		return
	}
	bw.write(unsafe.Slice((*byte)(unsafe.Pointer(&v[0])), len(v)*4))
}

// Bytes writes a length-prefixed byte slice.
func (bw *Writer) Bytes(b []byte) {
	bw.Len(len(b))
	if len(b) > 0 {
		bw.write(b)
	}
}

// Reader reads what Writer writes. The first error is sticky: later reads
// return zero values and Err reports it.
type Reader struct {
	r   io.Reader
	buf [8]byte
	n   int64
	err error
}

// NewReader creates a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Err returns the first read error. A short read is io.ErrUnexpectedEOF.
func (br *Reader) Err() error { return br.err }

// Read returns the number of bytes consumed.
func (br *Reader) Read() int64 { return br.n }

// Fail records err unless an earlier error is already recorded.
func (br *Reader) Fail(err error) {
	if br.err == nil {
		br.err = err
	}
}

func (br *Reader) read(p []byte) bool {
	if br.err != nil {
		return false
	}
	n, err := io.ReadFull(br.r, p)
	br.n += int64(n)
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		br.err = err
		return false
	}
	return true
}

// Uint8 reads one byte.
func (br *Reader) Uint8() uint8 {
	if !br.read(br.buf[:1]) {
		return 0
	}
	return br.buf[0]
}

// Bool reads a bool.
func (br *Reader) Bool() bool {
	return br.Uint8() == 1
}

// Uint16 reads a uint16.
func (br *Reader) Uint16() uint16 {
	if !br.read(br.buf[:2]) {
		return 0
	}
	return binary.LittleEndian.Uint16(br.buf[:2])
}

// Uint32 reads a uint32.
func (br *Reader) Uint32() uint32 {
	if !br.read(br.buf[:4]) {
		return 0
	}
	return binary.LittleEndian.Uint32(br.buf[:4])
}

// Int32 reads an int32.
func (br *Reader) Int32() int32 {
	return int32(br.Uint32())
}

// Uint64 reads a uint64.
func (br *Reader) Uint64() uint64 {
	if !br.read(br.buf[:8]) {
		return 0
	}
	return binary.LittleEndian.Uint64(br.buf[:8])
}

// Int64 reads an int64.
func (br *Reader) Int64() int64 {
	return int64(br.Uint64())
}

// Float64 reads a float64.
func (br *Reader) Float64() float64 {
	return math.Float64frombits(br.Uint64())
}

// Len reads a slice length prefix.
func (br *Reader) Len() int {
	n := br.Uint32()
	if n > MaxSliceLen {
		br.Fail(fmt.Errorf("persistence: slice length %d exceeds limit", n))
		return 0
	}
	return int(n)
}

// Float64s reads a length-prefixed float64 slice. An empty slice reads as nil.
func (br *Reader) Float64s() []float64 {
	return br.RawFloat64s(br.Len())
}

// RawFloat64s reads n float64 values without a length prefix.
func (br *Reader) RawFloat64s(n int) []float64 {
	if n == 0 || br.err != nil {
		return nil
	}
	v := make([]float64, n)
	if !br.read(unsafe.Slice((*byte)(unsafe.Pointer(&v[0])), n*8)) {
		return nil
	}
	return v
}

// Int32s reads a length-prefixed int32 slice. An empty slice reads as nil.
func (br *Reader) Int32s() []int32 {
	n := br.Len()
	if n == 0 || br.err != nil {
		return nil
	}
	v := make([]int32, n)
	if !br.read(unsafe.Slice((*byte)(unsafe.Pointer(&v[0])), n*4)) {
		return nil
	}
	return v
}

// Bytes reads a length-prefixed byte slice.
func (br *Reader) Bytes() []byte {
	n := br.Len()
	if n == 0 || br.err != nil {
		return nil
	}
	b := make([]byte, n)
	if !br.read(b) {
		return nil
	}
	return b
}
