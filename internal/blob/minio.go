package blob

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/tahmid/notestack/internal/apperror"
)

// compile-time check that *MinioStore implements Store
var _ Store = (*MinioStore)(nil)

// MinioConfig holds the connection settings for an S3-compatible endpoint.
// Works against AWS S3, MinIO, or anything speaking the S3 API.
type MinioConfig struct {
	Endpoint  string // host[:port], no scheme
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// MinioStore implements Store on top of an S3-compatible bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore creates the client and verifies the bucket is reachable.
// The client is constructed once at process start and shared — there is no
// lazy init, so a misconfigured endpoint fails the boot instead of the first
// upload.
func NewMinioStore(ctx context.Context, cfg MinioConfig) (*MinioStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("blob: endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("blob: bucket is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("blob: creating client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("blob: checking bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		return nil, fmt.Errorf("blob: bucket %s does not exist", cfg.Bucket)
	}

	return &MinioStore{client: client, bucket: cfg.Bucket}, nil
}

// Put uploads the object bytes under key.
func (s *MinioStore) Put(ctx context.Context, key string, obj Object) error {
	_, err := s.client.PutObject(ctx, s.bucket, key,
		bytes.NewReader(obj.Data), int64(len(obj.Data)),
		minio.PutObjectOptions{
			ContentType:  obj.ContentType,
			UserMetadata: obj.Metadata,
		},
	)
	if err != nil {
		return apperror.Storage("put", err)
	}
	return nil
}

// Delete removes the blob at key. Removing a key that is already absent is
// not an error — the S3 API reports success either way, and callers rely on
// that.
func (s *MinioStore) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return apperror.Storage("delete", err)
	}
	return nil
}

// SignedURL generates a presigned GET URL valid for ttl. The file renders
// inline in the browser rather than forcing a download.
func (s *MinioStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	params := url.Values{}
	params.Set("response-content-disposition", "inline")

	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, params)
	if err != nil {
		return "", apperror.Storage("sign", err)
	}
	return u.String(), nil
}
