package blob

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/hyperjump/docflow/internal/models"
)

// GCSStore implements Store on Google Cloud Storage.
type GCSStore struct {
	client  *storage.Client
	bucket  *storage.BucketHandle
	name    string
	baseURL string
}

// NewGCSStore uses application default credentials.
func NewGCSStore(ctx context.Context, bucket, baseURL string) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &GCSStore{client: client, bucket: client.Bucket(bucket), name: bucket, baseURL: baseURL}, nil
}

// ObjectURL returns the public URL of key.
func (g *GCSStore) ObjectURL(key string) string {
	if g.baseURL != "" {
		return joinURL(g.baseURL, key)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", g.name, key)
}

// Put writes content to key.
func (g *GCSStore) Put(ctx context.Context, key string, content []byte, contentType string, metadata map[string]string) (*PutResult, error) {
	w := g.bucket.Object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = metadata
	if _, err := w.Write(content); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to write to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize GCS write: %w", err)
	}
	return &PutResult{Key: key, URL: g.ObjectURL(key)}, nil
}

// Get reads key, or returns a *models.NotFoundError.
func (g *GCSStore) Get(ctx context.Context, key string) (*Object, error) {
	obj := g.bucket.Object(key)
	attrs, err := obj.Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, &models.NotFoundError{Kind: "blob", ID: key}
		}
		return nil, fmt.Errorf("gcs attrs failed: %w", err)
	}
	r, err := obj.NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs read failed: %w", err)
	}
	defer r.Close()
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gcs read failed: %w", err)
	}
	return &Object{
		Content:      content,
		ContentType:  attrs.ContentType,
		OriginalName: attrs.Metadata[MetaOriginalName],
	}, nil
}

// Delete removes key. A missing object is not an error.
func (g *GCSStore) Delete(ctx context.Context, key string) error {
	if err := g.bucket.Object(key).Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("gcs delete failed: %w", err)
	}
	return nil
}

// List returns every object under prefix.
func (g *GCSStore) List(ctx context.Context, prefix string) ([]*ObjectInfo, error) {
	var out []*ObjectInfo
	it := g.bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("gcs list failed: %w", err)
		}
		out = append(out, &ObjectInfo{
			Name:         attrs.Name,
			URL:          g.ObjectURL(attrs.Name),
			Size:         attrs.Size,
			LastModified: attrs.Updated,
			ContentType:  attrs.ContentType,
		})
	}
	return out, nil
}

// Close closes the GCS client.
func (g *GCSStore) Close() error {
	return g.client.Close()
}
