package snapshotstore

import (
	"bytes"
	"context"
	"io"
	"log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore is the production Store, backed by any S3-compatible
// endpoint. No repo in the retrieved pack talks to an object store, so
// this dependency (github.com/minio/minio-go/v7) is new rather than
// grounded on the teacher — the standard Go client for the one external
// system spec.md §1 names that nothing else in the corpus provides.
type MinioStore struct {
	client *minio.Client
	bucket string
}

func NewMinioStore(endpoint, accessKey, secretKey, region, bucket string, secure bool) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
		Region: region,
	})
	if err != nil {
		return nil, err
	}
	return &MinioStore{client: client, bucket: bucket}, nil
}

func (s *MinioStore) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	return err
}

func (s *MinioStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return s.classify(key, err)
	}
	defer obj.Close()

	if _, err := obj.Stat(); err != nil {
		return s.classify(key, err)
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return s.classify(key, err)
	}
	return data, true, nil
}

func (s *MinioStore) Delete(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	return classifyDeleteError(err)
}

// classifyDeleteError treats "already gone" as success, matching Delete's
// idempotent contract.
func classifyDeleteError(err error) error {
	if err == nil {
		return nil
	}
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket":
		return nil
	default:
		return err
	}
}

func (s *MinioStore) classify(key string, err error) ([]byte, bool, error) {
	return classifyS3Error(key, err)
}

// classifyS3Error maps an S3 error response to spec.md §4.5's three-way
// outcome: not-found is absent, credential/permission failures are
// absent-and-logged, everything else propagates.
func classifyS3Error(key string, err error) ([]byte, bool, error) {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket":
		return nil, false, nil
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		log.Printf("snapshotstore: treating %q as absent after permission failure: %v", key, err)
		return nil, false, nil
	default:
		return nil, false, err
	}
}
