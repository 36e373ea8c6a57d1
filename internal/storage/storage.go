// Package storage defines the metadata store for document records.
package storage

import (
	"context"
	"fmt"

	"github.com/hyperjump/docflow/internal/config"
	"github.com/hyperjump/docflow/internal/models"
)

// Storage persists DocumentRecords. List and Stats exclude logically deleted
// records; lists are ordered newest first.
type Storage interface {
	Create(ctx context.Context, rec *models.DocumentRecord) error
	// Get returns the record even when it is logically deleted.
	Get(ctx context.Context, id string) (*models.DocumentRecord, error)
	// Update merges patch into the stored record and writes the whole record back.
	Update(ctx context.Context, id string, patch *models.DocumentPatch) (*models.DocumentRecord, error)
	LogicalDelete(ctx context.Context, id string) error

	ListAll(ctx context.Context) ([]*models.DocumentRecord, error)
	ListByOwner(ctx context.Context, owner string) ([]*models.DocumentRecord, error)
	ListByType(ctx context.Context, fileType string) ([]*models.DocumentRecord, error)
	ListByStatus(ctx context.Context, status models.DocumentStatus) ([]*models.DocumentRecord, error)
	Stats(ctx context.Context) (*models.Stats, error)

	Close() error
}

// New opens the metadata store selected by cfg.Driver.
func New(ctx context.Context, cfg *config.StorageConfig) (Storage, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return NewSQLiteStorage(cfg.DatabasePath)
	case "postgres":
		return NewPostgresStorage(ctx, cfg.PostgresDSN)
	case "firestore":
		return NewFirestoreStorage(ctx, cfg.FirestoreProject, cfg.FirestoreCollection)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s (supported: sqlite, postgres, firestore)", cfg.Driver)
	}
}

func notFound(id string) error {
	return &models.NotFoundError{Kind: "document", ID: id}
}
