// Package compress provides the block codecs used by snapshots and bulk
// partition files.
//
// A block is framed as
//
//	[uncompressedSize:u32][compressedSize:u32][crc32c:u32][data...]
//
// where compressedSize 0 means data is stored raw because compression did not
// pay off. The checksum covers the uncompressed bytes.
package compress

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/hupe1980/sfatrie/internal/conv"
	"github.com/hupe1980/sfatrie/internal/hash"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Kind selects the compression algorithm.
type Kind uint8

const (
	// None stores blocks uncompressed.
	None Kind = 0
	// LZ4 uses LZ4 block compression.
	LZ4 Kind = 1
	// ZSTD uses ZSTD block compression.
	ZSTD Kind = 2
)

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case ZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// ParseKind parses the name returned by Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "none", "":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return ZSTD, nil
	}
	return None, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

var (
	// ErrUnknownKind is returned for an unsupported compression kind.
	ErrUnknownKind = errors.New("compress: unknown kind")
	// ErrCorrupt is returned when a block is truncated or fails to decode.
	ErrCorrupt = errors.New("compress: corrupt block")
	// ErrChecksum is returned when a decoded block does not match its checksum.
	ErrChecksum = errors.New("compress: checksum mismatch")
)

// HeaderSize is the size of a block header.
const HeaderSize = 12

// incompressibleRatio is the compressed/raw ratio above which a block is
// stored raw.
const incompressibleRatio = 0.9

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func putZstdEncoder(enc *zstd.Encoder) {
	zstdEncoderPool.Put(enc)
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

func putZstdDecoder(dec *zstd.Decoder) {
	zstdDecoderPool.Put(dec)
}

// Header describes one framed block.
type Header struct {
	UncompressedSize uint32
	CompressedSize   uint32 // 0 means stored raw
	Checksum         uint32
}

// StoredSize returns the number of payload bytes following the header.
func (h Header) StoredSize() int {
	if h.CompressedSize == 0 {
		return int(h.UncompressedSize)
	}
	return int(h.CompressedSize)
}

func (h Header) put(b []byte) {
	binary.LittleEndian.PutUint32(b[0:], h.UncompressedSize)
	binary.LittleEndian.PutUint32(b[4:], h.CompressedSize)
	binary.LittleEndian.PutUint32(b[8:], h.Checksum)
}

// ParseHeader decodes a block header.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d header bytes", ErrCorrupt, len(b))
	}
	return Header{
		UncompressedSize: binary.LittleEndian.Uint32(b[0:]),
		CompressedSize:   binary.LittleEndian.Uint32(b[4:]),
		Checksum:         binary.LittleEndian.Uint32(b[8:]),
	}, nil
}

// EncodeBlock compresses data with kind and returns the framed block.
func EncodeBlock(data []byte, kind Kind) ([]byte, error) {
	size, err := conv.IntToUint32(len(data))
	if err != nil {
		return nil, fmt.Errorf("compress: block too large: %w", err)
	}

	var compressed []byte
	switch kind {
	case None:
	case LZ4:
		compressed, err = compressLZ4(data)
	case ZSTD:
		compressed = compressZSTD(data)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, kind)
	}
	if err != nil {
		return nil, err
	}

	h := Header{UncompressedSize: size, Checksum: hash.CRC32C(data)}
	payload := data
	if len(compressed) > 0 && float64(len(compressed)) <= float64(len(data))*incompressibleRatio {
		h.CompressedSize = uint32(len(compressed))
		payload = compressed
	}

	out := make([]byte, HeaderSize+len(payload))
	h.put(out)
	copy(out[HeaderSize:], payload)
	return out, nil
}

// DecodeBlock decodes one framed block from the start of b and returns the
// decoded bytes and the number of bytes consumed.
func DecodeBlock(b []byte, kind Kind) ([]byte, int, error) {
	h, err := ParseHeader(b)
	if err != nil {
		return nil, 0, err
	}
	end := HeaderSize + h.StoredSize()
	if len(b) < end {
		return nil, 0, fmt.Errorf("%w: block needs %d bytes, have %d", ErrCorrupt, end, len(b))
	}
	data, err := decodePayload(h, b[HeaderSize:end], kind)
	if err != nil {
		return nil, 0, err
	}
	return data, end, nil
}

// ReadBlock reads and decodes one framed block from r. It returns io.EOF when
// r is exhausted before a header.
func ReadBlock(r io.Reader, kind Kind) ([]byte, error) {
	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	h, _ := ParseHeader(hdr[:])
	payload := make([]byte, h.StoredSize())
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return decodePayload(h, payload, kind)
}

func decodePayload(h Header, payload []byte, kind Kind) ([]byte, error) {
	var data []byte
	if h.CompressedSize == 0 {
		data = payload
	} else {
		data = make([]byte, h.UncompressedSize)
		switch kind {
		case LZ4:
			n, err := lz4.UncompressBlock(payload, data)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
			}
			data = data[:n]
		case ZSTD:
			dec := getZstdDecoder()
			decoded, err := dec.DecodeAll(payload, data[:0])
			putZstdDecoder(dec)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
			}
			data = decoded
		default:
			return nil, fmt.Errorf("%w: compressed block with kind %s", ErrUnknownKind, kind)
		}
		if uint32(len(data)) != h.UncompressedSize {
			return nil, fmt.Errorf("%w: decoded %d bytes, expected %d", ErrCorrupt, len(data), h.UncompressedSize)
		}
	}
	if got := hash.CRC32C(data); got != h.Checksum {
		return nil, fmt.Errorf("%w: expected 0x%08x, got 0x%08x", ErrChecksum, h.Checksum, got)
	}
	return data, nil
}

func compressLZ4(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	dst := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, dst, nil)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil // incompressible
	}
	return dst[:n], nil
}

func compressZSTD(data []byte) []byte {
	if len(data) == 0 {
		return nil
	}
	enc := getZstdEncoder()
	defer putZstdEncoder(enc)
	return enc.EncodeAll(data, nil)
}
