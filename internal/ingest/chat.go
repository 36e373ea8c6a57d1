package ingest

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/hyperjump/docflow/internal/indexer"
	"github.com/hyperjump/docflow/internal/models"
)

var errNoChatIndex = errors.New("chat index is not configured")

// UploadChatFile ingests a file attached to a chat thread on the request path:
// extract, chunk, embed the chunks that pass sanitization and index them under
// the thread. Nothing is written to the blob or metadata store.
func (s *Service) UploadChatFile(ctx context.Context, threadID, userID, fileName string, content []byte) (*models.ChatUploadResult, error) {
	if threadID == "" {
		return nil, &models.ValidationError{Code: "thread", Reason: "thread id is required"}
	}
	if err := s.chatPolicy.Validate(fileName, int64(len(content))); err != nil {
		return nil, err
	}
	if s.chatIndex == nil {
		return nil, models.NewAdapterError("search", "chat upsert", errNoChatIndex)
	}

	res, err := s.extractor.Extract(ctx, content, fileName)
	if err != nil {
		return nil, models.NewAdapterError("extraction", "extract", err)
	}
	chunks, skipped, err := s.indexer.BuildChatChunks(ctx, indexer.ChatFile{
		ThreadID:   threadID,
		UserID:     userID,
		FileName:   fileName,
		UploadedAt: s.now().UTC(),
	}, indexer.Plain(res.Content))
	if err != nil {
		return nil, models.NewAdapterError("embedding", "embed", err)
	}

	result := &models.ChatUploadResult{
		ThreadID:      threadID,
		FileName:      fileName,
		ChunkIDs:      make([]string, 0, len(chunks)),
		SkippedChunks: skipped,
	}
	if len(chunks) == 0 {
		return result, nil
	}
	docs := make([]*models.SearchIndexDocument, len(chunks))
	for i, ch := range chunks {
		docs[i] = indexer.ChunkDocument(ch)
		result.ChunkIDs = append(result.ChunkIDs, ch.ID)
	}
	if err := s.chatIndex.Upsert(ctx, docs); err != nil {
		return nil, models.NewAdapterError("search", "chat upsert", err)
	}
	s.logger.Info("chat file indexed",
		zap.String("thread_id", threadID),
		zap.String("file", fileName),
		zap.Int("chunks", len(chunks)),
		zap.Int("skipped", skipped))
	return result, nil
}

// SearchChat queries the chunks of one thread.
func (s *Service) SearchChat(ctx context.Context, threadID string, q *models.SearchQuery) (*models.SearchResponse, error) {
	if threadID == "" {
		return nil, &models.ValidationError{Code: "thread", Reason: "thread id is required"}
	}
	if s.chatIndex == nil {
		return nil, models.NewAdapterError("search", "chat query", errNoChatIndex)
	}
	q.Filters.ThreadID = threadID
	resp, err := s.chatIndex.Query(ctx, q)
	if err != nil {
		if models.IsValidation(err) {
			return nil, err
		}
		return nil, models.NewAdapterError("search", "chat query", err)
	}
	return resp, nil
}
