// Package blobstore stores index snapshots and bulk bucket files.
//
// BlobStore is the interface the index and the bulk pipeline write through.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: local directory, memory-mapped reads, atomic renames
//   - MemoryStore: in-process map, for tests and scratch builds
//   - s3.Store: Amazon S3 with range reads and multipart uploads
//   - minio.Store: MinIO and other S3-compatible services
//
// # Custom Implementations
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)
//	    Create(ctx, name) (WritableBlob, error)
//	    Put(ctx, name, data) error
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
//
// Blobs whose data is already in memory may implement Mappable so NewReader
// can skip the copy.
package blobstore
