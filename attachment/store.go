package attachment

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"bapflow/config"
	"bapflow/document"
)

// BlobStore holds the file bytes referenced by attachment records. Faked in
// unit tests; backed by MinIO in production.
type BlobStore interface {
	Put(ctx context.Context, handle string, reader io.Reader, size int64, contentType string) error
	Remove(ctx context.Context, handle string) error
	PresignedURL(ctx context.Context, handle string) (string, error)
}

// MinioStore implements BlobStore on a MinIO (or S3-compatible) bucket.
type MinioStore struct {
	client *minio.Client
	cfg    config.MinioConfig
}

func NewMinioStore(cfg config.MinioConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("attachment: create minio client: %w", err)
	}
	return &MinioStore{client: client, cfg: cfg}, nil
}

// EnsureBucket creates the configured bucket when it does not exist yet.
// Called once at startup.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return document.WrapStorage("check bucket", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return document.WrapStorage("create bucket", err)
		}
	}
	return nil
}

func (s *MinioStore) Put(ctx context.Context, handle string, reader io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.cfg.Bucket, handle, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return document.WrapStorage("upload object", err)
	}
	return nil
}

func (s *MinioStore) Remove(ctx context.Context, handle string) error {
	if err := s.client.RemoveObject(ctx, s.cfg.Bucket, handle, minio.RemoveObjectOptions{}); err != nil {
		return document.WrapStorage("remove object", err)
	}
	return nil
}

func (s *MinioStore) PresignedURL(ctx context.Context, handle string) (string, error) {
	url, err := s.client.PresignedGetObject(ctx, s.cfg.Bucket, handle, s.cfg.URLExpiry, nil)
	if err != nil {
		return "", document.WrapStorage("presign object", err)
	}
	return url.String(), nil
}
