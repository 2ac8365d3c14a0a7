package objectstore

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Compile-time interface satisfaction checks.
var (
	_ Store         = (*MinioStore)(nil)
	_ BucketChecker = (*MinioStore)(nil)
)

// MinioStore implements Store with the MinIO client, which speaks the S3 API
// to both AWS and MinIO.
type MinioStore struct {
	client *minio.Client
}

// NewMinioStore builds a client. No request is made until the first Put.
func NewMinioStore(cfg Config) (*MinioStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	host, secure, err := ParseEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	creds := credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	if cfg.AccessKey == "" {
		creds = credentials.NewIAM("")
	}
	client, err := minio.New(host, &minio.Options{
		Creds:     creds,
		Secure:    secure,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client for %s: %w", host, err)
	}
	return &MinioStore{client: client}, nil
}

// Put uploads body as bucket/key.
func (s *MinioStore) Put(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) (Object, error) {
	info, err := s.client.PutObject(ctx, bucket, key, body, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return Object{}, fmt.Errorf("put %s: %w", URI(bucket, key), err)
	}
	return Object{Bucket: info.Bucket, Key: info.Key, ETag: info.ETag, Size: info.Size}, nil
}

// BucketExists reports whether bucket exists. A bucket the credentials may
// not access is an error, not a missing bucket.
func (s *MinioStore) BucketExists(ctx context.Context, bucket string) (bool, error) {
	ok, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return false, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	return ok, nil
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
