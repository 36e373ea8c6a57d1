package indexer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/docflow/internal/embedding"
	"github.com/hyperjump/docflow/internal/models"
	"github.com/hyperjump/docflow/pkg/utils"
)

// Metadata keys set on chat chunks.
const (
	MetaSource     = "source"
	MetaFileType   = "fileType"
	MetaUploadedAt = "uploadedAt"
)

// Indexer builds search index documents from extracted text.
type Indexer struct {
	embedder embedding.Embedder
	chunker  *Chunker
	logger   *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for skipped content and chunking events.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// NewIndexer creates an indexer. A nil chunker uses the default size and overlap.
func NewIndexer(emb embedding.Embedder, chunker *Chunker, opts ...IndexerOption) *Indexer {
	if chunker == nil {
		chunker = NewChunker(DefaultChunkSize, DefaultChunkOverlap)
	}
	idx := &Indexer{embedder: emb, chunker: chunker}
	for _, opt := range opts {
		opt(idx)
	}
	idx.logger = utils.OrNop(idx.logger)
	return idx
}

// Chunker returns the chunker used for chat files.
func (idx *Indexer) Chunker() *Chunker { return idx.chunker }

// Extracted is the output of text extraction for one file.
type Extracted struct {
	Content    TextContent
	Pages      int
	Confidence float64
}

// BuildDocument returns the whole-document index entry for rec. Content that
// fails sanitization is still indexed for keywords, without a vector.
func (idx *Indexer) BuildDocument(ctx context.Context, rec *models.DocumentRecord, ex *Extracted, blobURL string) (*models.SearchIndexDocument, error) {
	aligned, err := EmbedAligned(ctx, idx.embedder, []TextContent{ex.Content})
	if err != nil {
		return nil, err
	}
	doc := &models.SearchIndexDocument{
		ID:         rec.ID,
		FileName:   rec.FileName,
		Content:    aligned.Texts[0],
		FileType:   rec.FileType,
		FileSize:   rec.FileSize,
		UploadedBy: rec.UploadedBy,
		UploadedAt: rec.UploadedAt,
		BlobURL:    blobURL,
		Pages:      ex.Pages,
		Confidence: utils.Clamp01(ex.Confidence),
		Categories: rec.Categories,
		Tags:       rec.Tags,
	}
	if len(aligned.Skipped) > 0 {
		if ex.Content != nil {
			doc.Content = Clean(ex.Content.String())
		}
		idx.logger.Warn("content not embeddable, indexing keywords only",
			zap.String("document_id", rec.ID))
		return doc, nil
	}
	doc.ContentVector = aligned.Vectors[0]
	return doc, nil
}

// ChatFile describes a file attached to a chat thread.
type ChatFile struct {
	ThreadID   string
	UserID     string
	FileName   string
	UploadedAt time.Time
}

// BuildChatChunks splits text into chunks, embeds those that pass sanitization
// and returns them in order with the number of skipped chunks.
func (idx *Indexer) BuildChatChunks(ctx context.Context, f ChatFile, text TextContent) ([]*models.ChatDocumentChunk, int, error) {
	var raw string
	if text != nil {
		raw = text.String()
	}
	pieces := idx.chunker.Split(raw)
	contents := make([]TextContent, len(pieces))
	for i, p := range pieces {
		contents[i] = Plain(p.Text)
	}
	aligned, err := EmbedAligned(ctx, idx.embedder, contents)
	if err != nil {
		return nil, 0, err
	}

	uploadedAt := f.UploadedAt
	if uploadedAt.IsZero() {
		uploadedAt = time.Now().UTC()
	}
	chunks := make([]*models.ChatDocumentChunk, 0, len(pieces)-len(aligned.Skipped))
	for i, p := range pieces {
		if aligned.Vectors[i] == nil {
			continue
		}
		chunks = append(chunks, &models.ChatDocumentChunk{
			ID:          uuid.New().String(),
			ThreadID:    f.ThreadID,
			UserID:      f.UserID,
			ChunkIndex:  p.Index,
			PageContent: aligned.Texts[i],
			Metadata: map[string]string{
				MetaSource:     f.FileName,
				MetaFileType:   models.FileTypeOf(f.FileName),
				MetaUploadedAt: uploadedAt.Format(time.RFC3339Nano),
			},
			Embedding: aligned.Vectors[i],
		})
	}
	if len(aligned.Skipped) > 0 {
		idx.logger.Debug("chat chunks skipped",
			zap.String("thread_id", f.ThreadID),
			zap.String("file", f.FileName),
			zap.Ints("chunks", aligned.Skipped))
	}
	return chunks, len(aligned.Skipped), nil
}

// ChunkDocument projects a chat chunk into a search index document.
func ChunkDocument(ch *models.ChatDocumentChunk) *models.SearchIndexDocument {
	doc := &models.SearchIndexDocument{
		ID:            ch.ID,
		FileName:      ch.Metadata[MetaSource],
		Content:       ch.PageContent,
		ContentVector: ch.Embedding,
		FileType:      ch.Metadata[MetaFileType],
		FileSize:      int64(len(ch.PageContent)),
		UploadedBy:    ch.UserID,
		ThreadID:      ch.ThreadID,
		Pages:         1,
		Confidence:    1,
	}
	if t, err := time.Parse(time.RFC3339Nano, ch.Metadata[MetaUploadedAt]); err == nil {
		doc.UploadedAt = t
	}
	return doc
}
