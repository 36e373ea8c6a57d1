package ingest

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/docflow/internal/models"
)

// Reconcile marks records left in uploaded or processing for longer than
// olderThan as error. Abandoned work is never retried. It returns the number
// of records marked.
func (s *Service) Reconcile(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.now().Add(-olderThan)
	marked := 0
	for _, status := range []models.DocumentStatus{models.StatusUploaded, models.StatusProcessing} {
		recs, err := s.store.ListByStatus(ctx, status)
		if err != nil {
			return marked, models.NewAdapterError("metadata", "list", err)
		}
		for _, rec := range recs {
			if !rec.UpdatedAt.Before(cutoff) {
				continue
			}
			st := models.StatusError
			msg := AbandonedMessage
			if _, err := s.store.Update(ctx, rec.ID, &models.DocumentPatch{Status: &st, ProcessingError: &msg}); err != nil {
				if isNotFound(err) {
					continue
				}
				return marked, models.NewAdapterError("metadata", "update", err)
			}
			marked++
			s.logger.Warn("stale document marked as error",
				zap.String("document_id", rec.ID),
				zap.String("status", string(status)),
				zap.Time("updated_at", rec.UpdatedAt))
		}
	}
	return marked, nil
}
