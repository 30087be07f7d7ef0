//go:build amd64 || arm64

// Package persistence provides the binary encoding and snapshot framing used
// to save and load indexes.
//
// Writer and Reader encode little-endian primitives and length-prefixed
// slices; float64 and int32 slices are copied as raw memory. A snapshot is
//
//	[header:16][payload block][crc32c:u32]
//
// where the header carries the magic "SFA1", the format version, the
// compression kind and flags, and the payload block is framed by the
// compress package. The trailer checksum covers the uncompressed payload.
//
// PLATFORM REQUIREMENTS:
// - Architecture: amd64 or arm64 only
// - Endianness: Little-endian (native on x86_64 and ARM64)
// - Alignment: 4-byte for int32, 8-byte for float64
//
// The unsafe operations in this package are verified at runtime with alignment checks
// and platform validation. See safety.go for implementation details.
package persistence
