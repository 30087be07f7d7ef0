// Package hash provides the CRC32-Castagnoli checksums used by snapshot
// trailers, compressed block headers and S3 upload checksums.
//
//	sum := hash.CRC32C(data)
//
//	h := hash.NewCRC32C()
//	h.Write(chunk1)
//	h.Write(chunk2)
//	sum = h.Sum32()
//
// The table is built once at init; hash/crc32 uses SSE4.2 or the ARM CRC
// extension when available.
package hash
