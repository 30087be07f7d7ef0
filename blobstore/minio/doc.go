// Package minio stores blobs through the MinIO client, for MinIO and other
// S3-compatible services (Ceph, Garage, SeaweedFS) without the AWS SDK.
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil { ... }
//	store := minioblob.NewStore(client, "indexes", "ecg/")
//	err = idx.Save(ctx, store, "index.sfa")
package minio
