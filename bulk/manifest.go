package bulk

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/sfatrie/blobstore"
	"github.com/hupe1980/sfatrie/codec"
	"github.com/hupe1980/sfatrie/compress"
)

// ManifestVersion is the manifest schema written by Partition.
const ManifestVersion = 1

var (
	// ErrNoManifest is returned by Load when the directory holds no manifest.
	ErrNoManifest = errors.New("bulk: manifest not found")
	// ErrInvalidManifest is returned for manifests that cannot be loaded.
	ErrInvalidManifest = errors.New("bulk: invalid manifest")
	// ErrCorruptBucket is returned when a bucket blob does not decode.
	ErrCorruptBucket = errors.New("bulk: corrupt bucket")
)

// Manifest describes one partitioning run.
type Manifest struct {
	Version      int          `json:"version"`
	Codec        string       `json:"codec"`
	WordLength   int          `json:"word_length"`
	AlphabetSize int          `json:"alphabet_size"`
	PrefixLength int          `json:"prefix_length"`
	Coefficients int          `json:"coefficients"`
	Compression  string       `json:"compression"`
	Records      int64        `json:"records"`
	Buckets      []BucketInfo `json:"buckets"`
}

// BucketInfo describes one bucket blob.
type BucketInfo struct {
	Key     uint64 `json:"key"`
	Symbols []int  `json:"symbols"`
	Path    string `json:"path"`
	Blocks  int    `json:"blocks"`
	Records int64  `json:"records"`
	Bytes   int64  `json:"bytes"`
}

func (m *Manifest) validate() error {
	if m.Version != ManifestVersion {
		return fmt.Errorf("%w: version %d (expected %d)", ErrInvalidManifest, m.Version, ManifestVersion)
	}
	if m.PrefixLength < 1 || m.PrefixLength > m.WordLength {
		return fmt.Errorf("%w: prefix length %d for word length %d", ErrInvalidManifest, m.PrefixLength, m.WordLength)
	}
	if m.Coefficients != m.WordLength {
		return fmt.Errorf("%w: %d coefficients for word length %d", ErrInvalidManifest, m.Coefficients, m.WordLength)
	}
	if _, err := compress.ParseKind(m.Compression); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	return nil
}

// ReadManifest loads and validates the manifest stored under dir.
func ReadManifest(ctx context.Context, store blobstore.BlobStore, dir string) (*Manifest, error) {
	o := options{dir: dir}
	data, err := blobstore.ReadAll(ctx, store, o.name(ManifestName))
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrNoManifest, err)
		}
		return nil, err
	}

	var m Manifest
	if err := codec.Default.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	if m.Codec != "" && m.Codec != codec.Default.Name() {
		c, err := codec.Lookup(m.Codec)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
		}
		m = Manifest{}
		if err := c.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
		}
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func writeManifest(ctx context.Context, store blobstore.BlobStore, name string, m *Manifest) error {
	m.Codec = codec.Default.Name()
	data, err := codec.Default.MarshalIndent(m)
	if err != nil {
		return err
	}
	return store.Put(ctx, name, data)
}
