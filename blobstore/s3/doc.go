// Package s3 stores blobs in Amazon S3 or an S3-compatible service.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("indexes/"),
//	    s3.WithRegion("us-east-1"),
//	)
//	if err != nil { ... }
//	err = idx.Save(ctx, store, "ecg.sfa")
//
// Reads use ranged GETs; Create streams through the multipart uploader of
// feature/s3/manager; Put sends a single request with a CRC32C checksum.
//
// # Versioned publishing
//
// CommitStore wraps a store and keeps the CURRENT pointer in a DynamoDB
// table. Each publish writes a new version with a conditional put, so two
// writers racing for the same version see ErrConcurrentModification:
//
//	cs := s3.NewCommitStore(store, dynamodb.NewFromConfig(cfg), "sfatrie-commits", "s3://my-bucket/indexes")
//	err = idx.Publish(ctx, cs, "ecg-v2.sfa")
package s3
