// Package blob stores raw uploaded file bytes keyed by an opaque blob name.
package blob

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/hyperjump/docflow/internal/config"
)

// MetaOriginalName is the metadata key holding the uploaded file name.
const MetaOriginalName = "original-name"

// PutResult is the location of a stored object.
type PutResult struct {
	Key string
	URL string
}

// Object is a stored object's content.
type Object struct {
	Content      []byte
	ContentType  string
	OriginalName string
}

// ObjectInfo describes a listed object.
type ObjectInfo struct {
	Name         string
	URL          string
	Size         int64
	LastModified time.Time
	ContentType  string
}

// Store defines blob persistence operations.
type Store interface {
	Put(ctx context.Context, key string, content []byte, contentType string, metadata map[string]string) (*PutResult, error)
	Get(ctx context.Context, key string) (*Object, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]*ObjectInfo, error)
	Close() error
}

// NewKey builds the blob name for a document: owner/id/fileName.
func NewKey(owner, id, fileName string) string {
	return cleanSegment(owner) + "/" + id + "/" + cleanSegment(path.Base(strings.ReplaceAll(fileName, "\\", "/")))
}

// OwnerPrefix is the listing prefix of every blob owned by owner.
func OwnerPrefix(owner string) string {
	return cleanSegment(owner) + "/"
}

func cleanSegment(s string) string {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(s)
	if s == "" || s == "." {
		return "_"
	}
	return s
}

// New creates the blob store selected by cfg.Provider.
func New(ctx context.Context, cfg *config.BlobConfig) (Store, error) {
	switch cfg.Provider {
	case "disk", "":
		return NewDiskStore(cfg.DiskPath, cfg.PublicBaseURL)
	case "s3":
		return NewS3Store(ctx, &cfg.S3, cfg.PublicBaseURL)
	case "gcs":
		return NewGCSStore(ctx, cfg.GCSBucket, cfg.PublicBaseURL)
	default:
		return nil, fmt.Errorf("unknown blob provider: %s (supported: disk, s3, gcs)", cfg.Provider)
	}
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
