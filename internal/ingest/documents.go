package ingest

import (
	"context"

	"go.uber.org/zap"

	"github.com/hyperjump/docflow/internal/models"
)

// ListFilter selects records for List. Empty fields match everything.
type ListFilter struct {
	Owner    string
	FileType string
	Status   models.DocumentStatus
}

// Get returns a live record.
func (s *Service) Get(ctx context.Context, id string) (*models.DocumentRecord, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, models.NewAdapterError("metadata", "read", err)
	}
	if rec.IsDeleted {
		return nil, &models.NotFoundError{Kind: "document", ID: id}
	}
	return rec, nil
}

// List returns live records, newest first. The most selective filter is
// pushed to the store and the rest are applied here.
func (s *Service) List(ctx context.Context, f ListFilter) ([]*models.DocumentRecord, error) {
	var (
		recs []*models.DocumentRecord
		err  error
	)
	switch {
	case f.Owner != "":
		recs, err = s.store.ListByOwner(ctx, f.Owner)
	case f.Status != "":
		recs, err = s.store.ListByStatus(ctx, f.Status)
	case f.FileType != "":
		recs, err = s.store.ListByType(ctx, f.FileType)
	default:
		recs, err = s.store.ListAll(ctx)
	}
	if err != nil {
		return nil, models.NewAdapterError("metadata", "list", err)
	}
	out := recs[:0]
	for _, r := range recs {
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.FileType != "" && r.FileType != f.FileType {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Delete removes the blob, then the search index entry when one was written,
// then marks the record deleted. Blob and index failures are logged and do not
// stop the remaining steps; a failure to mark the record is returned.
func (s *Service) Delete(ctx context.Context, id string) error {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, rec.BlobName); err != nil {
		s.logger.Warn("blob delete failed",
			zap.String("document_id", id),
			zap.String("blob", rec.BlobName),
			zap.Error(err))
	}
	if rec.SearchIndexID != "" {
		if err := s.index.Delete(ctx, []string{rec.SearchIndexID}); err != nil {
			s.logger.Warn("search index delete failed",
				zap.String("document_id", id),
				zap.Error(err))
		}
	}
	if err := s.store.LogicalDelete(ctx, id); err != nil {
		return models.NewAdapterError("metadata", "delete", err)
	}
	s.logger.Info("document deleted", zap.String("document_id", id))
	return nil
}

// Download returns the stored bytes of a live document.
func (s *Service) Download(ctx context.Context, id string) (*models.Download, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	obj, err := s.blobs.Get(ctx, rec.BlobName)
	if err != nil {
		return nil, models.NewAdapterError("blob", "get", err)
	}
	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &models.Download{Content: obj.Content, ContentType: contentType, FileName: rec.FileName}, nil
}

// Search queries the document index.
func (s *Service) Search(ctx context.Context, q *models.SearchQuery) (*models.SearchResponse, error) {
	resp, err := s.index.Query(ctx, q)
	if err != nil {
		if models.IsValidation(err) {
			return nil, err
		}
		return nil, models.NewAdapterError("search", "query", err)
	}
	return resp, nil
}

// Stats aggregates live records and, when available, the index counts.
func (s *Service) Stats(ctx context.Context) (*models.Stats, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, models.NewAdapterError("metadata", "stats", err)
	}
	if idx, err := s.index.Count(ctx); err != nil {
		s.logger.Warn("search index count failed", zap.Error(err))
	} else {
		stats.IndexStats = idx
	}
	return stats, nil
}

// UpdateTags replaces the tags of a live record.
func (s *Service) UpdateTags(ctx context.Context, id string, tags []string) (*models.DocumentRecord, error) {
	return s.edit(ctx, id, &models.DocumentPatch{Tags: &tags})
}

// UpdateCategories replaces the categories of a live record.
func (s *Service) UpdateCategories(ctx context.Context, id string, categories []string) (*models.DocumentRecord, error) {
	return s.edit(ctx, id, &models.DocumentPatch{Categories: &categories})
}

// UpdateDescription replaces the description of a live record.
func (s *Service) UpdateDescription(ctx context.Context, id, description string) (*models.DocumentRecord, error) {
	return s.edit(ctx, id, &models.DocumentPatch{Description: &description})
}

// Edit applies the user-editable fields of patch. Status and processing
// fields are ignored.
func (s *Service) Edit(ctx context.Context, id string, patch *models.DocumentPatch) (*models.DocumentRecord, error) {
	return s.edit(ctx, id, &models.DocumentPatch{
		Tags:        patch.Tags,
		Categories:  patch.Categories,
		Description: patch.Description,
	})
}

// edit updates metadata and, when tags or categories change on an indexed
// record, the labels of its search index entry.
func (s *Service) edit(ctx context.Context, id string, patch *models.DocumentPatch) (*models.DocumentRecord, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	rec, err := s.store.Update(ctx, id, patch)
	if err != nil {
		return nil, models.NewAdapterError("metadata", "update", err)
	}
	if rec.SearchIndexID != "" && (patch.Tags != nil || patch.Categories != nil) {
		if err := s.index.UpdateLabels(ctx, rec.SearchIndexID, rec.Tags, rec.Categories); err != nil {
			return nil, models.NewAdapterError("search", "update labels", err)
		}
	}
	return rec, nil
}
