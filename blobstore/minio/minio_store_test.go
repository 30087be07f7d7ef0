package minio

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/hupe1980/sfatrie/blobstore"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMinioStore_Integration requires a running MinIO instance at
// MINIO_ENDPOINT (default localhost:9000).
func TestMinioStore_Integration(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:9000"
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx := context.Background()
	if _, err := client.ListBuckets(ctx); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	const bucket = "test-sfatrie"
	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	store := NewStore(client, bucket, "test-prefix/")

	data := []byte("hello minio world")
	require.NoError(t, store.Put(ctx, "manifest.json", data))

	blob, err := store.Open(ctx, "manifest.json")
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), blob.Size())

	buf := make([]byte, len(data))
	n, err := blob.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, data, buf)

	rc, err := blob.ReadRange(ctx, 6, 5)
	require.NoError(t, err)
	part, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "minio", string(part))
	require.NoError(t, rc.Close())
	require.NoError(t, blob.Close())

	w, err := store.Create(ctx, "buckets/0001.blk")
	require.NoError(t, err)
	_, err = w.Write([]byte("streamed data"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	names, err := store.List(ctx, "buckets/")
	require.NoError(t, err)
	assert.Equal(t, []string{"buckets/0001.blk"}, names)

	got, err := blobstore.ReadAll(ctx, store, "buckets/0001.blk")
	require.NoError(t, err)
	assert.Equal(t, "streamed data", string(got))

	require.NoError(t, store.Delete(ctx, "manifest.json"))
	require.NoError(t, store.Delete(ctx, "buckets/0001.blk"))
	_, err = store.Open(ctx, "manifest.json")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}
