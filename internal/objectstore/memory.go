package objectstore

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"sync"
)

var (
	_ Store         = (*MemoryStore)(nil)
	_ BucketChecker = (*MemoryStore)(nil)
)

// MemoryStore keeps objects in memory. It is used in tests and dry runs.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	dropped map[string]bool
	puts    int
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
		dropped: make(map[string]bool),
	}
}

// DropBucket makes bucket missing: BucketExists reports false and Put fails.
// Every other bucket exists.
func (m *MemoryStore) DropBucket(bucket string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped[bucket] = true
}

// BucketExists implements BucketChecker.
func (m *MemoryStore) BucketExists(ctx context.Context, bucket string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.dropped[bucket], nil
}

// Put stores a copy of body.
func (m *MemoryStore) Put(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	var buf bytes.Buffer
	n, err := io.Copy(&buf, body)
	if err != nil {
		return Object{}, fmt.Errorf("read body: %w", err)
	}
	if size >= 0 && n != size {
		return Object{}, fmt.Errorf("body is %d bytes, declared %d", n, size)
	}

	sum := md5.Sum(buf.Bytes())
	uri := URI(bucket, key)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dropped[bucket] {
		return Object{}, fmt.Errorf("put %s: %w", uri, ErrNoSuchBucket)
	}
	m.objects[uri] = buf.Bytes()
	m.types[uri] = contentType
	m.puts++
	return Object{Bucket: bucket, Key: key, ETag: hex.EncodeToString(sum[:]), Size: n}, nil
}

// Get returns the stored bytes and content type for bucket/key.
func (m *MemoryStore) Get(bucket, key string) ([]byte, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[URI(bucket, key)]
	return b, m.types[URI(bucket, key)], ok
}

// Keys returns the s3:// URIs of stored objects, sorted.
func (m *MemoryStore) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Puts returns how many Put calls succeeded.
func (m *MemoryStore) Puts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}
