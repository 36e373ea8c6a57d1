package blob

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/docflow/internal/models"
)

const metaSuffix = ".meta.json"

// DiskStore implements Store on the local filesystem. Each object has a
// sidecar JSON file holding its content type and metadata.
type DiskStore struct {
	root    string
	baseURL string
}

type diskMeta struct {
	ContentType string            `json:"content_type"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// NewDiskStore creates the root directory if needed. When baseURL is empty,
// object URLs are file:// URLs.
func NewDiskStore(root, baseURL string) (*DiskStore, error) {
	if root == "" {
		return nil, fmt.Errorf("blob root directory is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve blob root: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &DiskStore{root: abs, baseURL: baseURL}, nil
}

func (d *DiskStore) path(key string) (string, error) {
	p := filepath.Join(d.root, filepath.FromSlash(key))
	if p != d.root && !strings.HasPrefix(p, d.root+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid blob key: %s", key)
	}
	return p, nil
}

func (d *DiskStore) url(key, p string) string {
	if d.baseURL != "" {
		return joinURL(d.baseURL, key)
	}
	return "file://" + filepath.ToSlash(p)
}

// Put writes content to key, replacing any existing object.
func (d *DiskStore) Put(ctx context.Context, key string, content []byte, contentType string, metadata map[string]string) (*PutResult, error) {
	p, err := d.path(key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	if contentType == "" {
		contentType = http.DetectContentType(content)
	}
	meta, err := json.Marshal(diskMeta{ContentType: contentType, Metadata: metadata})
	if err != nil {
		return nil, fmt.Errorf("marshal blob metadata: %w", err)
	}
	if err := os.WriteFile(p, content, 0644); err != nil {
		return nil, fmt.Errorf("write blob: %w", err)
	}
	if err := os.WriteFile(p+metaSuffix, meta, 0644); err != nil {
		return nil, fmt.Errorf("write blob metadata: %w", err)
	}
	return &PutResult{Key: key, URL: d.url(key, p)}, nil
}

// Get returns the object at key, or a *models.NotFoundError.
func (d *DiskStore) Get(ctx context.Context, key string) (*Object, error) {
	p, err := d.path(key)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &models.NotFoundError{Kind: "blob", ID: key}
		}
		return nil, fmt.Errorf("read blob: %w", err)
	}
	meta := d.readMeta(p)
	obj := &Object{Content: content, ContentType: meta.ContentType}
	if meta.Metadata != nil {
		obj.OriginalName = meta.Metadata[MetaOriginalName]
	}
	if obj.OriginalName == "" {
		obj.OriginalName = filepath.Base(p)
	}
	return obj, nil
}

func (d *DiskStore) readMeta(p string) diskMeta {
	var meta diskMeta
	if data, err := os.ReadFile(p + metaSuffix); err == nil {
		_ = json.Unmarshal(data, &meta)
	}
	if meta.ContentType == "" {
		meta.ContentType = "application/octet-stream"
	}
	return meta
}

// Delete removes the object at key. Deleting a missing object is not an error.
func (d *DiskStore) Delete(ctx context.Context, key string) error {
	p, err := d.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete blob: %w", err)
	}
	if err := os.Remove(p + metaSuffix); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete blob metadata: %w", err)
	}
	return nil
}

// List returns every object whose key starts with prefix.
func (d *DiskStore) List(ctx context.Context, prefix string) ([]*ObjectInfo, error) {
	var out []*ObjectInfo
	err := filepath.WalkDir(d.root, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || strings.HasSuffix(p, metaSuffix) {
			return nil
		}
		rel, err := filepath.Rel(d.root, p)
		if err != nil {
			return nil
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return nil
		}
		out = append(out, &ObjectInfo{
			Name:         key,
			URL:          d.url(key, p),
			Size:         info.Size(),
			LastModified: info.ModTime(),
			ContentType:  d.readMeta(p).ContentType,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list blobs: %w", err)
	}
	return out, nil
}

// Close is a no-op for DiskStore.
func (d *DiskStore) Close() error {
	return nil
}
