package persistence

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/sfatrie/compress"
)

const (
	// MagicNumber identifies sfatrie snapshots (ASCII: "SFA1")
	MagicNumber = 0x53464131
	// Version is the current snapshot format version (v1.0)
	Version = 0x0100

	// HeaderSize is the size of the snapshot header in bytes.
	HeaderSize = 16
)

// Header flags.
const (
	// FlagCompressedTrie marks a snapshot of a compressed trie.
	FlagCompressedTrie uint8 = 1 << iota
	// FlagSubsequence marks a snapshot of a subsequence index.
	FlagSubsequence
)

var (
	ErrInvalidMagic   = errors.New("invalid magic number")
	ErrInvalidVersion = errors.New("unsupported version")
	ErrTruncated      = errors.New("truncated snapshot")
)

// FileHeader is the 16-byte header at the start of every snapshot.
type FileHeader struct {
	Magic       uint32 // 0x53464131 ("SFA1")
	Version     uint16 // Snapshot format version
	Codec       compress.Kind
	Flags       uint8
	PayloadSize uint64 // Size of the framed payload block
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (h FileHeader) MarshalBinary() ([]byte, error) {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:], h.Magic)
	binary.LittleEndian.PutUint16(b[4:], h.Version)
	b[6] = byte(h.Codec)
	b[7] = h.Flags
	binary.LittleEndian.PutUint64(b[8:], h.PayloadSize)
	return b, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. It validates the
// magic number and version.
func (h *FileHeader) UnmarshalBinary(b []byte) error {
	if len(b) < HeaderSize {
		return fmt.Errorf("%w: %d header bytes", ErrTruncated, len(b))
	}
	h.Magic = binary.LittleEndian.Uint32(b[0:])
	h.Version = binary.LittleEndian.Uint16(b[4:])
	h.Codec = compress.Kind(b[6])
	h.Flags = b[7]
	h.PayloadSize = binary.LittleEndian.Uint64(b[8:])

	if h.Magic != MagicNumber {
		return fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, h.Magic)
	}
	if h.Version != Version {
		return fmt.Errorf("%w: got 0x%04x", ErrInvalidVersion, h.Version)
	}
	return nil
}

// WriteHeader writes the header with the current magic number and version.
func WriteHeader(w io.Writer, h FileHeader) error {
	h.Magic = MagicNumber
	h.Version = Version
	b, _ := h.MarshalBinary()
	_, err := w.Write(b)
	return err
}

// ReadHeader reads and validates a header.
func ReadHeader(r io.Reader) (FileHeader, error) {
	b := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, b); err != nil {
		return FileHeader{}, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	var h FileHeader
	if err := h.UnmarshalBinary(b); err != nil {
		return FileHeader{}, err
	}
	return h, nil
}
