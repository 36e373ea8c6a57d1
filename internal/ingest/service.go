// Package ingest coordinates uploads across the blob store, the metadata store
// and the search index. An upload returns once the bytes and the record are
// stored; extraction, embedding and indexing run in a detached task that
// records its outcome only in the record's status.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/docflow/internal/blob"
	"github.com/hyperjump/docflow/internal/config"
	"github.com/hyperjump/docflow/internal/extract"
	"github.com/hyperjump/docflow/internal/indexer"
	"github.com/hyperjump/docflow/internal/models"
	"github.com/hyperjump/docflow/internal/storage"
	"github.com/hyperjump/docflow/internal/validator"
	"github.com/hyperjump/docflow/pkg/utils"
)

// AbandonedMessage is the processing error set by Reconcile.
const AbandonedMessage = "abandoned by restart"

// SearchIndex is the search index the service writes to and queries.
type SearchIndex interface {
	EnsureIndexExists(ctx context.Context) error
	Upsert(ctx context.Context, docs []*models.SearchIndexDocument) error
	Delete(ctx context.Context, ids []string) error
	// UpdateLabels replaces the tags and categories of an indexed document.
	UpdateLabels(ctx context.Context, id string, tags, categories []string) error
	Query(ctx context.Context, q *models.SearchQuery) (*models.SearchResponse, error)
	Count(ctx context.Context) (*models.IndexStats, error)
}

// Deps are the collaborators of a Service, constructed once at startup.
type Deps struct {
	Blobs     blob.Store
	Store     storage.Storage
	Extractor extract.TextExtractor
	Indexer   *indexer.Indexer
	Index     SearchIndex
	// ChatIndex holds chat file chunks. Chat operations fail when it is nil.
	ChatIndex SearchIndex
}

// Service implements document upload, processing and the query surface.
type Service struct {
	blobs      blob.Store
	store      storage.Storage
	extractor  extract.TextExtractor
	indexer    *indexer.Indexer
	index      SearchIndex
	chatIndex  SearchIndex
	docPolicy  *validator.Policy
	chatPolicy *validator.Policy
	exec       *Executor
	compensate bool
	logger     *zap.Logger
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithExecutor replaces the executor built from the config.
func WithExecutor(e *Executor) Option {
	return func(s *Service) { s.exec = e }
}

// WithClock sets the time source used for timestamps and staleness.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a service. cfg supplies the upload policies, the concurrency
// bound of background processing and the compensation switch.
func New(deps Deps, cfg *config.IngestConfig, opts ...Option) *Service {
	s := &Service{
		blobs:      deps.Blobs,
		store:      deps.Store,
		extractor:  deps.Extractor,
		indexer:    deps.Indexer,
		index:      deps.Index,
		chatIndex:  deps.ChatIndex,
		docPolicy:  validator.NewPolicy("document", cfg.MaxUploadBytes, cfg.AllowedExtensions),
		chatPolicy: validator.NewPolicy("chat", cfg.ChatMaxUploadBytes, cfg.AllowedExtensions),
		compensate: cfg.CompensateOnFailure,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = utils.OrNop(s.logger)
	if s.exec == nil {
		s.exec = NewExecutor(cfg.MaxConcurrent, s.logger)
	}
	return s
}

// EnsureIndexes bootstraps the document and chat search indexes.
func (s *Service) EnsureIndexes(ctx context.Context) error {
	if err := s.index.EnsureIndexExists(ctx); err != nil {
		return models.NewAdapterError("search", "ensure index", err)
	}
	if s.chatIndex != nil {
		if err := s.chatIndex.EnsureIndexExists(ctx); err != nil {
			return models.NewAdapterError("search", "ensure chat index", err)
		}
	}
	return nil
}

// Upload validates the file, stores its bytes and an uploaded record, and
// schedules background processing. It returns before processing starts.
func (s *Service) Upload(ctx context.Context, owner, fileName string, content []byte, contentType string) (*models.UploadResult, error) {
	if err := s.docPolicy.Validate(fileName, int64(len(content))); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	key := blob.NewKey(owner, id, fileName)
	sg := newSaga(s.compensate, s.logger)

	put, err := s.blobs.Put(ctx, key, content, contentType, map[string]string{blob.MetaOriginalName: fileName})
	if err != nil {
		return nil, models.NewAdapterError("blob", "put", err)
	}
	sg.add("delete blob", func(ctx context.Context) error { return s.blobs.Delete(ctx, key) })

	now := s.now().UTC()
	rec := &models.DocumentRecord{
		ID:         id,
		FileName:   fileName,
		FileType:   models.FileTypeOf(fileName),
		FileSize:   int64(len(content)),
		UploadedBy: owner,
		UploadedAt: now,
		BlobName:   put.Key,
		BlobURL:    put.URL,
		Status:     models.StatusUploaded,
		Tags:       []string{},
		Categories: []string{},
	}
	if err := s.store.Create(ctx, rec); err != nil {
		sg.compensate(context.WithoutCancel(ctx), id)
		return nil, models.NewAdapterError("metadata", "create", err)
	}

	err = s.exec.Submit("process "+id, func(bg context.Context) {
		s.process(bg, rec, content)
	})
	if err != nil {
		s.markError(context.WithoutCancel(ctx), id, "schedule", err)
		return &models.UploadResult{
			Success:    false,
			DocumentID: id,
			Message:    "File stored but processing could not be scheduled",
			Error:      err.Error(),
		}, nil
	}
	s.logger.Info("document uploaded",
		zap.String("document_id", id),
		zap.String("file", fileName),
		zap.Int64("size", rec.FileSize),
		zap.String("owner", owner))

	return &models.UploadResult{
		Success:    true,
		DocumentID: id,
		Message:    "File uploaded successfully and is being processed",
	}, nil
}

// process moves rec from uploaded through processing to completed, or to
// error on the first failing step. There is no retry.
func (s *Service) process(ctx context.Context, rec *models.DocumentRecord, content []byte) {
	sg := newSaga(s.compensate, s.logger)
	fail := func(step string, err error) {
		sg.compensate(ctx, rec.ID)
		s.markError(ctx, rec.ID, step, err)
	}
	defer func() {
		if r := recover(); r != nil {
			fail("panic", fmt.Errorf("%v", r))
		}
	}()

	// A record deleted or reconciled while the task waited is left alone.
	if cur, err := s.store.Get(ctx, rec.ID); err == nil && (cur.IsDeleted || cur.Status.Terminal()) {
		s.logger.Info("document no longer pending, skipping",
			zap.String("document_id", rec.ID),
			zap.String("status", string(cur.Status)),
			zap.Bool("deleted", cur.IsDeleted))
		return
	}
	current, err := s.store.Update(ctx, rec.ID, models.StatusPatch(models.StatusProcessing))
	if err != nil {
		fail("status", models.NewAdapterError("metadata", "update", err))
		return
	}

	res, err := s.extractor.Extract(ctx, content, current.FileName)
	if err != nil {
		fail("extract", models.NewAdapterError("extraction", "extract", err))
		return
	}

	doc, err := s.indexer.BuildDocument(ctx, current, &indexer.Extracted{
		Content:    indexer.Plain(res.Content),
		Pages:      res.Pages,
		Confidence: res.Confidence,
	}, s.resolveBlobURL(ctx, current))
	if err != nil {
		fail("embed", models.NewAdapterError("embedding", "embed", err))
		return
	}

	if err := s.index.Upsert(ctx, []*models.SearchIndexDocument{doc}); err != nil {
		fail("index", models.NewAdapterError("search", "upsert", err))
		return
	}
	sg.add("delete index entry", func(ctx context.Context) error {
		return s.index.Delete(ctx, []string{doc.ID})
	})

	// A delete or reconcile that ran during extraction saw no index entry,
	// so the one just written is withdrawn here.
	if s.abandoned(ctx, rec.ID) {
		s.withdraw(ctx, rec.ID, doc.ID)
		return
	}

	completed := models.StatusCompleted
	indexID := doc.ID
	pages := res.Pages
	confidence := doc.Confidence
	final, err := s.store.Update(ctx, rec.ID, &models.DocumentPatch{
		Status:        &completed,
		SearchIndexID: &indexID,
		Pages:         &pages,
		Confidence:    &confidence,
	})
	if err != nil {
		fail("complete", models.NewAdapterError("metadata", "update", err))
		return
	}
	if final.IsDeleted {
		s.withdraw(ctx, rec.ID, doc.ID)
		return
	}
	// Labels edited while the document was processing.
	if !slices.Equal(final.Tags, doc.Tags) || !slices.Equal(final.Categories, doc.Categories) {
		if err := s.index.UpdateLabels(ctx, doc.ID, final.Tags, final.Categories); err != nil {
			s.logger.Warn("failed to sync labels to search index",
				zap.String("document_id", rec.ID),
				zap.Error(err))
		}
	}
	s.logger.Info("document processed",
		zap.String("document_id", rec.ID),
		zap.Int("pages", pages),
		zap.Float64("confidence", confidence),
		zap.Bool("embedded", len(doc.ContentVector) > 0))
}

// abandoned reports whether the record was deleted or reached a terminal
// status outside this pipeline.
func (s *Service) abandoned(ctx context.Context, id string) bool {
	cur, err := s.store.Get(ctx, id)
	if isNotFound(err) {
		return true
	}
	if err != nil {
		return false
	}
	return cur.IsDeleted || cur.Status.Terminal()
}

// withdraw removes the index entry of a document that must not complete.
func (s *Service) withdraw(ctx context.Context, id, indexID string) {
	s.logger.Info("document no longer pending, withdrawing index entry",
		zap.String("document_id", id))
	if err := s.index.Delete(ctx, []string{indexID}); err != nil {
		s.logger.Warn("failed to withdraw index entry",
			zap.String("document_id", id),
			zap.Error(err))
	}
}

// markError records a terminal failure of a document's pipeline.
func (s *Service) markError(ctx context.Context, id, step string, cause error) {
	s.logger.Error("document processing failed",
		zap.String("document_id", id),
		zap.String("step", step),
		zap.Error(cause))
	status := models.StatusError
	msg := step + ": " + cause.Error()
	if _, err := s.store.Update(ctx, id, &models.DocumentPatch{Status: &status, ProcessingError: &msg}); err != nil {
		s.logger.Error("failed to record processing error",
			zap.String("document_id", id),
			zap.Error(err))
	}
}

// resolveBlobURL returns the URL stored at upload. Records without one fall
// back to listing the owner's blobs and taking the newest with the same name.
func (s *Service) resolveBlobURL(ctx context.Context, rec *models.DocumentRecord) string {
	if rec.BlobURL != "" {
		return rec.BlobURL
	}
	objects, err := s.blobs.List(ctx, blob.OwnerPrefix(rec.UploadedBy))
	if err != nil {
		s.logger.Warn("blob listing failed", zap.String("document_id", rec.ID), zap.Error(err))
		return ""
	}
	var found *blob.ObjectInfo
	for _, o := range objects {
		if o.Name != rec.BlobName {
			continue
		}
		if found == nil || o.LastModified.After(found.LastModified) {
			found = o
		}
	}
	if found == nil {
		return ""
	}
	return found.URL
}

// Wait blocks until all background processing has finished.
func (s *Service) Wait() {
	s.exec.Wait()
}

// Shutdown stops accepting uploads for processing and waits for running
// tasks until ctx is done.
func (s *Service) Shutdown(ctx context.Context) error {
	return s.exec.Shutdown(ctx)
}

func isNotFound(err error) bool {
	return errors.Is(err, models.ErrNotFound)
}
