package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist. It matches
// os.ErrNotExist so filesystem errors from LocalStore satisfy it directly.
var ErrNotFound = os.ErrNotExist

// CurrentName is the blob that names the published snapshot.
const CurrentName = "CURRENT"

// ErrClosed is returned when writing to a finished WritableBlob.
var ErrClosed = errors.New("blobstore: blob closed")

// BlobStore holds snapshots and bulk bucket files by name.
// Implementations must be safe for concurrent use.
type BlobStore interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// Create starts a streaming write. The blob becomes visible on Close.
	Create(ctx context.Context, name string) (WritableBlob, error)
	// Put writes a whole blob.
	Put(ctx context.Context, name string, data []byte) error
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns the sorted names starting with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a stored blob.
type Blob interface {
	io.Closer
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)
	// ReadRange streams length bytes from off, clipped to the blob size.
	// It returns io.EOF if off is at or past the end.
	ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error)
	Size() int64
}

// WritableBlob is a blob being written.
type WritableBlob interface {
	io.WriteCloser
	// Sync flushes buffered data where the backend supports it.
	Sync() error
}

// Mappable is implemented by blobs backed by memory the caller may read
// directly until Close.
type Mappable interface {
	Bytes() ([]byte, error)
}

// NewReader streams the whole blob.
func NewReader(ctx context.Context, b Blob) (io.ReadCloser, error) {
	if b.Size() == 0 {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	if m, ok := b.(Mappable); ok {
		data, err := m.Bytes()
		if err != nil {
			return nil, err
		}
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	return b.ReadRange(ctx, 0, b.Size())
}

// ReadAll opens name and returns its contents.
func ReadAll(ctx context.Context, s BlobStore, name string) ([]byte, error) {
	b, err := s.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	r, err := NewReader(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("blobstore: read %s: %w", name, err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

// clipRange bounds [off, off+length) to size.
func clipRange(off, length, size int64) (int64, int64, error) {
	if off < 0 || length < 0 {
		return 0, 0, fmt.Errorf("blobstore: invalid range %d+%d", off, length)
	}
	if off >= size {
		return 0, 0, io.EOF
	}
	end := off + length
	if end > size || end < off {
		end = size
	}
	return off, end, nil
}
