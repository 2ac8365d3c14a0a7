// Package objectstore writes snapshot payloads to S3-compatible storage.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// DefaultEndpoint is used when no endpoint URL is configured.
const DefaultEndpoint = "s3.amazonaws.com"

// Config holds connection settings. Endpoint is an optional URL such as
// http://localhost:9000 for MinIO; empty means AWS S3 over TLS.
type Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// Validate reports unusable configuration.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Region) == "" {
		return errors.New("region is required")
	}
	if (c.AccessKey == "") != (c.SecretKey == "") {
		return errors.New("access key and secret key must be set together")
	}
	if _, _, err := ParseEndpoint(c.Endpoint); err != nil {
		return err
	}
	return nil
}

// ParseEndpoint splits an endpoint URL into the host[:port] the client dials
// and whether TLS is used. A bare host is accepted and uses TLS.
func ParseEndpoint(raw string) (host string, secure bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultEndpoint, true, nil
	}
	if !strings.Contains(raw, "://") {
		return strings.TrimSuffix(raw, "/"), true, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("parse endpoint %q: %w", raw, err)
	}
	switch u.Scheme {
	case "http":
	case "https":
		secure = true
	default:
		return "", false, fmt.Errorf("endpoint %q: unsupported scheme %q", raw, u.Scheme)
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("endpoint %q: missing host", raw)
	}
	if u.Path != "" && u.Path != "/" {
		return "", false, fmt.Errorf("endpoint %q: path not allowed", raw)
	}
	return u.Host, secure, nil
}

// Object describes a stored object.
type Object struct {
	Bucket string
	Key    string
	ETag   string
	Size   int64
}

// URI returns the s3:// form of the object location.
func (o Object) URI() string {
	return URI(o.Bucket, o.Key)
}

// URI formats an s3:// location.
func URI(bucket, key string) string {
	return "s3://" + bucket + "/" + key
}

// Store writes objects.
type Store interface {
	Put(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) (Object, error)
}

// ErrNoSuchBucket is returned when the target bucket does not exist.
var ErrNoSuchBucket = errors.New("bucket does not exist")

// BucketChecker is implemented by stores that can confirm a bucket exists.
type BucketChecker interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
}

// CheckBucket returns an error wrapping ErrNoSuchBucket when s can tell that
// bucket is missing. Stores that cannot check always pass.
func CheckBucket(ctx context.Context, s Store, bucket string) error {
	c, ok := s.(BucketChecker)
	if !ok {
		return nil
	}
	exists, err := c.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrNoSuchBucket, bucket)
	}
	return nil
}
