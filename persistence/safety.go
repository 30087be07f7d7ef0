package persistence

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unsafe"
)

var (
	// ErrBigEndian is returned on hosts whose memory layout differs from
	// the little-endian raw slice encoding.
	ErrBigEndian = errors.New("persistence: big-endian hosts are not supported")

	// ErrUnalignedAccess is returned when a slice cannot be reinterpreted
	// as raw bytes.
	ErrUnalignedAccess = errors.New("persistence: unaligned slice")
)

// Raw slices are copied byte for byte, so the host must be little-endian.
func init() {
	if !littleEndian() {
		panic("sfatrie/persistence: " + ErrBigEndian.Error())
	}
}

func littleEndian() bool {
	return binary.NativeEndian.Uint16([]byte{1, 0}) == 1
}

// checkAligned reports whether the backing array of v is aligned to its
// element size.
func checkAligned[T float64 | int32](v []T) error {
	if len(v) == 0 {
		return nil
	}
	ptr := uintptr(unsafe.Pointer(&v[0]))
	if size := unsafe.Sizeof(v[0]); ptr%size != 0 {
		return fmt.Errorf("%w: %T at 0x%x", ErrUnalignedAccess, v, ptr)
	}
	return nil
}
