package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DirBlobStore keeps blobs as files under a root directory.
type DirBlobStore struct {
	root string
}

// NewDirBlobStore creates root if needed.
func NewDirBlobStore(root string) (*DirBlobStore, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &DirBlobStore{root: root}, nil
}

func (s *DirBlobStore) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

func (s *DirBlobStore) Put(_ context.Context, meta BlobMetadata, content []byte) (*BlobMetadata, error) {
	meta, err := prepare(meta, content)
	if err != nil {
		return nil, err
	}
	p := s.path(meta.Key)
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return nil, fmt.Errorf("create %s: %w", filepath.Dir(p), err)
	}

	// Write then rename so readers never see a partial document.
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, content, 0o640); err != nil {
		return nil, fmt.Errorf("write %s: %w", meta.Key, err)
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("write %s: %w", meta.Key, err)
	}
	return &meta, nil
}

func (s *DirBlobStore) Get(_ context.Context, key string) ([]byte, *BlobMetadata, error) {
	key, err := CleanKey(key)
	if err != nil {
		return nil, nil, err
	}
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, ErrBlobNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", key, err)
	}
	info, err := os.Stat(s.path(key))
	if err != nil {
		return nil, nil, fmt.Errorf("stat %s: %w", key, err)
	}
	meta, _ := prepare(BlobMetadata{Key: key, ContentType: contentTypeFor(key), CreatedAt: info.ModTime().UTC()}, data)
	return data, &meta, nil
}

func (s *DirBlobStore) List(_ context.Context, prefix string) ([]*BlobMetadata, error) {
	out := make([]*BlobMetadata, 0)
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(p, ".tmp") {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, &BlobMetadata{
			Key:         key,
			ContentType: contentTypeFor(key),
			Size:        info.Size(),
			CreatedAt:   info.ModTime().UTC(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list archive: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func contentTypeFor(key string) string {
	if ct := mime.TypeByExtension(filepath.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
