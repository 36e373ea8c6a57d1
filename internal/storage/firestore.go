package storage

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hyperjump/docflow/internal/models"
)

// FirestoreStorage implements Storage on a Firestore collection keyed by document ID.
type FirestoreStorage struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreStorage connects to project using application default credentials.
func NewFirestoreStorage(ctx context.Context, project, collection string) (*FirestoreStorage, error) {
	if project == "" {
		return nil, fmt.Errorf("firestore project is required")
	}
	client, err := firestore.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	if collection == "" {
		collection = "documents"
	}
	return &FirestoreStorage{client: client, collection: collection}, nil
}

func (s *FirestoreStorage) docs() *firestore.CollectionRef {
	return s.client.Collection(s.collection)
}

func (s *FirestoreStorage) Create(ctx context.Context, rec *models.DocumentRecord) error {
	now := time.Now().UTC()
	if rec.UploadedAt.IsZero() {
		rec.UploadedAt = now
	}
	rec.CreatedAt = now
	rec.UpdatedAt = now
	if _, err := s.docs().Doc(rec.ID).Create(ctx, rec); err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

func (s *FirestoreStorage) Get(ctx context.Context, id string) (*models.DocumentRecord, error) {
	snap, err := s.docs().Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	var rec models.DocumentRecord
	if err := snap.DataTo(&rec); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return &rec, nil
}

// Update replaces the whole stored document with the merged record.
func (s *FirestoreStorage) Update(ctx context.Context, id string, patch *models.DocumentPatch) (*models.DocumentRecord, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(rec)
	rec.UpdatedAt = time.Now().UTC()
	if _, err := s.docs().Doc(id).Set(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to update document: %w", err)
	}
	return rec, nil
}

func (s *FirestoreStorage) LogicalDelete(ctx context.Context, id string) error {
	_, err := s.docs().Doc(id).Update(ctx, []firestore.Update{
		{Path: "isDeleted", Value: true},
		{Path: "updatedAt", Value: time.Now().UTC()},
	})
	if status.Code(err) == codes.NotFound {
		return notFound(id)
	}
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

func (s *FirestoreStorage) list(ctx context.Context, field string, value any) ([]*models.DocumentRecord, error) {
	q := s.docs().Where("isDeleted", "==", false)
	if field != "" {
		q = q.Where(field, "==", value)
	}
	snaps, err := q.OrderBy("uploadedAt", firestore.Desc).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	out := make([]*models.DocumentRecord, 0, len(snaps))
	for _, snap := range snaps {
		var rec models.DocumentRecord
		if err := snap.DataTo(&rec); err != nil {
			return nil, fmt.Errorf("failed to decode document %s: %w", snap.Ref.ID, err)
		}
		out = append(out, &rec)
	}
	return out, nil
}

func (s *FirestoreStorage) ListAll(ctx context.Context) ([]*models.DocumentRecord, error) {
	return s.list(ctx, "", nil)
}

func (s *FirestoreStorage) ListByOwner(ctx context.Context, owner string) ([]*models.DocumentRecord, error) {
	return s.list(ctx, "uploadedBy", owner)
}

func (s *FirestoreStorage) ListByType(ctx context.Context, fileType string) ([]*models.DocumentRecord, error) {
	return s.list(ctx, "fileType", fileType)
}

func (s *FirestoreStorage) ListByStatus(ctx context.Context, st models.DocumentStatus) ([]*models.DocumentRecord, error) {
	return s.list(ctx, "status", string(st))
}

// Stats is computed client-side from ListAll.
func (s *FirestoreStorage) Stats(ctx context.Context) (*models.Stats, error) {
	recs, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	stats := models.NewStats()
	for _, rec := range recs {
		stats.Add(rec)
	}
	return stats, nil
}

func (s *FirestoreStorage) Close() error {
	return s.client.Close()
}
