// Package blobstore stores archived report documents. It defines the
// BlobStore interface with in-memory, local directory and S3 backends.
package blobstore

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	ErrBlobNotFound = errors.New("blob not found")
	ErrFileTooLarge = errors.New("blob exceeds maximum allowed size")
	ErrInvalidKey   = errors.New("invalid blob key")
)

// MaxBlobSize bounds a single archived document (32 MB).
const MaxBlobSize = 32 * 1024 * 1024

// BlobMetadata describes a stored blob.
type BlobMetadata struct {
	Key         string            `json:"key"`
	ContentType string            `json:"content_type"`
	Size        int64             `json:"size"`
	Hash        string            `json:"hash"`
	CreatedAt   time.Time         `json:"created_at"`
	Tags        map[string]string `json:"tags,omitempty"`
}

// BlobStore is the contract for archive backends. Keys are slash separated
// relative paths.
type BlobStore interface {
	Put(ctx context.Context, meta BlobMetadata, content []byte) (*BlobMetadata, error)
	Get(ctx context.Context, key string) ([]byte, *BlobMetadata, error)
	List(ctx context.Context, prefix string) ([]*BlobMetadata, error)
}

// CleanKey normalizes key and rejects absolute or escaping paths.
func CleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	clean := path.Clean(key)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return clean, nil
}

// prepare validates meta and fills size, hash and creation time.
func prepare(meta BlobMetadata, content []byte) (BlobMetadata, error) {
	key, err := CleanKey(meta.Key)
	if err != nil {
		return meta, err
	}
	if len(content) > MaxBlobSize {
		return meta, ErrFileTooLarge
	}
	meta.Key = key
	meta.Size = int64(len(content))
	meta.Hash = fmt.Sprintf("%x", sha256.Sum256(content))
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}
	if meta.ContentType == "" {
		meta.ContentType = "application/octet-stream"
	}
	return meta, nil
}

// Open returns the store addressed by rawURL: "mem://", "s3://bucket/prefix"
// or a local directory path (optionally "file://").
func Open(ctx context.Context, rawURL string) (BlobStore, error) {
	switch {
	case rawURL == "":
		return nil, fmt.Errorf("empty archive location")
	case strings.HasPrefix(rawURL, "mem://"):
		return NewInMemoryBlobStore(), nil
	case strings.HasPrefix(rawURL, "s3://"):
		u, err := url.Parse(rawURL)
		if err != nil {
			return nil, fmt.Errorf("parse archive url: %w", err)
		}
		return NewS3BlobStore(ctx, S3Config{Bucket: u.Host, Prefix: strings.TrimPrefix(u.Path, "/")})
	case strings.HasPrefix(rawURL, "file://"):
		return NewDirBlobStore(strings.TrimPrefix(rawURL, "file://"))
	default:
		return NewDirBlobStore(rawURL)
	}
}

type storedBlob struct {
	metadata BlobMetadata
	content  []byte
}

// InMemoryBlobStore is a thread-safe BlobStore for tests and development.
type InMemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string]*storedBlob
}

func NewInMemoryBlobStore() *InMemoryBlobStore {
	return &InMemoryBlobStore{blobs: make(map[string]*storedBlob)}
}

func (s *InMemoryBlobStore) Put(_ context.Context, meta BlobMetadata, content []byte) (*BlobMetadata, error) {
	meta, err := prepare(meta, content)
	if err != nil {
		return nil, err
	}
	data := append([]byte(nil), content...)

	s.mu.Lock()
	s.blobs[meta.Key] = &storedBlob{metadata: meta, content: data}
	s.mu.Unlock()

	out := meta
	return &out, nil
}

func (s *InMemoryBlobStore) Get(_ context.Context, key string) ([]byte, *BlobMetadata, error) {
	s.mu.RLock()
	blob, ok := s.blobs[key]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, ErrBlobNotFound
	}
	meta := blob.metadata
	return append([]byte(nil), blob.content...), &meta, nil
}

// List returns the blobs under prefix sorted by key.
func (s *InMemoryBlobStore) List(_ context.Context, prefix string) ([]*BlobMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*BlobMetadata, 0)
	for key, blob := range s.blobs {
		if strings.HasPrefix(key, prefix) {
			meta := blob.metadata
			out = append(out, &meta)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
