// Package search provides the hybrid (keyword + vector) search index.
package search

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/docflow/internal/config"
	"github.com/hyperjump/docflow/internal/embedding"
	"github.com/hyperjump/docflow/internal/keyword"
	"github.com/hyperjump/docflow/internal/models"
	"github.com/hyperjump/docflow/internal/storage"
	"github.com/hyperjump/docflow/internal/vector"
	"github.com/hyperjump/docflow/pkg/utils"
)

// HybridIndex stores SearchIndexDocuments in a keyword index and their content
// vectors in a vector index under the same id, and fuses both at query time.
type HybridIndex struct {
	keywordPath string
	vectorOpts  vector.Options

	mu       sync.Mutex
	keywords keyword.KeywordIndex
	vectors  vector.VectorIndex

	embedder embedding.Embedder
	config   *config.SearchConfig
	logger   *zap.Logger
}

// Option configures a HybridIndex.
type Option func(*HybridIndex)

// WithLogger sets a logger for index events.
func WithLogger(l *zap.Logger) Option {
	return func(h *HybridIndex) { h.logger = l }
}

// NewHybridIndex returns an index backed by a Bleve index at keywordPath and the
// vector index described by vectorOpts. Nothing is opened until EnsureIndexExists.
func NewHybridIndex(keywordPath string, vectorOpts vector.Options, emb embedding.Embedder, cfg *config.SearchConfig, opts ...Option) *HybridIndex {
	h := &HybridIndex{
		keywordPath: keywordPath,
		vectorOpts:  vectorOpts,
		embedder:    emb,
		config:      cfg,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = utils.OrNop(h.logger)
	return h
}

// NewHybridIndexFrom wraps already opened indexes.
func NewHybridIndexFrom(kw keyword.KeywordIndex, vec vector.VectorIndex, emb embedding.Embedder, cfg *config.SearchConfig, opts ...Option) *HybridIndex {
	h := NewHybridIndex("", vector.Options{}, emb, cfg, opts...)
	h.keywords = kw
	h.vectors = vec
	return h
}

// EnsureIndexExists opens both indexes, creating them with the document schema
// when absent. It is safe to call any number of times.
func (h *HybridIndex) EnsureIndexExists(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ensureLocked(ctx)
}

func (h *HybridIndex) ensureLocked(ctx context.Context) error {
	if h.keywords == nil {
		kw, err := keyword.NewBleveIndex(h.keywordPath)
		if err != nil {
			return err
		}
		h.keywords = kw
		h.logger.Info("keyword index ready", zap.String("path", h.keywordPath))
	}
	if h.vectors == nil {
		opts := h.vectorOpts
		if opts.Dimensions == 0 {
			opts.Dimensions = h.embedder.Dimensions()
		}
		vec, err := vector.NewVectorIndex(ctx, opts)
		if err != nil {
			return err
		}
		h.vectors = vec
		h.logger.Info("vector index ready",
			zap.String("type", opts.Type),
			zap.Int("dimensions", opts.Dimensions))
	}
	return nil
}

// Upsert writes docs whole. A document without a ContentVector drops any vector
// previously stored under its id.
func (h *HybridIndex) Upsert(ctx context.Context, docs []*models.SearchIndexDocument) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.ensureLocked(ctx); err != nil {
		return err
	}

	var (
		ids     []string
		vectors [][]float32
		bare    []string
	)
	for _, doc := range docs {
		if err := h.keywords.Index(ctx, doc); err != nil {
			return fmt.Errorf("index %s: %w", doc.ID, err)
		}
		if len(doc.ContentVector) > 0 {
			ids = append(ids, doc.ID)
			vectors = append(vectors, doc.ContentVector)
		} else {
			bare = append(bare, doc.ID)
		}
	}
	if len(ids) > 0 {
		if err := h.vectors.Upsert(ctx, ids, vectors); err != nil {
			return fmt.Errorf("upsert vectors: %w", err)
		}
	}
	if len(bare) > 0 {
		if err := h.vectors.Remove(ctx, bare); err != nil {
			return fmt.Errorf("remove stale vectors: %w", err)
		}
	}
	return h.persistLocked()
}

// Delete removes ids from both indexes. Unknown ids are ignored.
func (h *HybridIndex) Delete(ctx context.Context, ids []string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.ensureLocked(ctx); err != nil {
		return err
	}
	for _, id := range ids {
		if err := h.keywords.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete %s: %w", id, err)
		}
	}
	if err := h.vectors.Remove(ctx, ids); err != nil {
		return fmt.Errorf("remove vectors: %w", err)
	}
	return h.persistLocked()
}

// persistLocked saves a file-backed vector index after a write.
func (h *HybridIndex) persistLocked() error {
	if h.vectorOpts.Path == "" {
		return nil
	}
	if err := h.vectors.Save(h.vectorOpts.Path); err != nil {
		return fmt.Errorf("save vector index: %w", err)
	}
	return nil
}

func (h *HybridIndex) indexes(ctx context.Context) (keyword.KeywordIndex, vector.VectorIndex, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.ensureLocked(ctx); err != nil {
		return nil, nil, err
	}
	return h.keywords, h.vectors, nil
}

// Query runs keyword and vector search in parallel and fuses the normalized
// scores with the configured weights.
func (h *HybridIndex) Query(ctx context.Context, q *models.SearchQuery) (*models.SearchResponse, error) {
	start := time.Now()
	if err := q.Validate(); err != nil {
		return nil, err
	}
	kw, vec, err := h.indexes(ctx)
	if err != nil {
		return nil, err
	}

	var (
		keywordResults  []*keyword.KeywordResult
		semanticResults []*vector.VectorResult
		semanticDocs    map[string]*models.SearchIndexDocument
	)
	g, gctx := errgroup.WithContext(ctx)
	if q.KeywordEnabled {
		g.Go(func() error {
			results, err := kw.Search(gctx, q.Query, h.topK(), &keyword.SearchOptions{
				Filters:      q.Filters,
				FuzzyEnabled: q.FuzzyEnabled,
				PhraseBoost:  1.5,
				Highlight:    true,
			})
			if err != nil {
				return fmt.Errorf("keyword search failed: %w", err)
			}
			keywordResults = results
			return nil
		})
	}
	if q.SemanticEnabled {
		g.Go(func() error {
			queryVector, err := h.embedder.Embed(gctx, q.Query)
			if err != nil {
				return fmt.Errorf("embedding failed: %w", err)
			}
			results, loaded, err := h.vectorSearch(gctx, kw, vec, queryVector, q.Filters)
			if err != nil {
				return err
			}
			semanticResults, semanticDocs = results, loaded
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	docs := make(map[string]*models.SearchIndexDocument, len(keywordResults)+len(semanticResults))
	fragments := make(map[string][]string)
	for _, r := range keywordResults {
		docs[r.ID] = r.Doc
		fragments[r.ID] = r.Highlights
	}
	semanticScores := make(map[string]float64, len(semanticResults))
	for _, r := range semanticResults {
		if _, ok := docs[r.ID]; !ok {
			docs[r.ID] = semanticDocs[r.ID]
		}
		semanticScores[r.ID] = utils.Clamp01(r.Score)
	}

	kwWeight, semWeight := h.weights(q)
	fused := Fuse(NormalizeKeywordScores(keywordResults), semanticScores, kwWeight, semWeight)
	total := len(fused)
	if len(fused) > q.Top {
		fused = fused[:q.Top]
	}

	resp := &models.SearchResponse{
		Results: make([]*models.SearchResult, 0, len(fused)),
		Total:   total,
		Query:   q.Query,
	}
	for i, f := range fused {
		doc := docs[f.DocumentID]
		if doc == nil {
			continue
		}
		highlights := fragments[f.DocumentID]
		if len(highlights) == 0 {
			if snippet := Highlight(doc.Content, q.Query, h.config.HighlightLength); snippet != "" {
				highlights = []string{snippet}
			}
		}
		resp.Results = append(resp.Results, &models.SearchResult{
			ID:            doc.ID,
			FileName:      doc.FileName,
			FileType:      doc.FileType,
			UploadedBy:    doc.UploadedBy,
			UploadedAt:    doc.UploadedAt,
			BlobURL:       doc.BlobURL,
			Pages:         doc.Pages,
			Categories:    doc.Categories,
			Tags:          doc.Tags,
			ThreadID:      doc.ThreadID,
			Score:         f.Score,
			KeywordScore:  f.KeywordScore,
			SemanticScore: f.SemanticScore,
			Highlights:    highlights,
			Rank:          i + 1,
		})
	}
	resp.QueryTime = time.Since(start).Milliseconds()
	h.logger.Debug("search",
		zap.Stringer("query", q),
		zap.Int("keyword_hits", len(keywordResults)),
		zap.Int("semantic_hits", len(semanticScores)),
		zap.Int("results", len(resp.Results)))
	return resp, nil
}

// vectorSearch returns up to topK vector hits that pass filters, with their
// stored documents. The vector index holds no metadata, so hits are checked
// against the keyword index and the search widens until enough pass or the
// index is exhausted.
func (h *HybridIndex) vectorSearch(ctx context.Context, kw keyword.KeywordIndex, vec vector.VectorIndex, queryVector []float32, filters models.SearchFilters) ([]*vector.VectorResult, map[string]*models.SearchIndexDocument, error) {
	want := h.topK()
	for k := want; ; k *= 4 {
		results, err := vec.Search(ctx, queryVector, k)
		if err != nil {
			return nil, nil, fmt.Errorf("vector search failed: %w", err)
		}
		ids := make([]string, len(results))
		for i, r := range results {
			ids[i] = r.ID
		}
		loaded, err := kw.Documents(ctx, ids)
		if err != nil {
			return nil, nil, err
		}
		kept := make([]*vector.VectorResult, 0, len(results))
		for _, r := range results {
			if d, ok := loaded[r.ID]; ok && MatchesFilters(d, filters) {
				kept = append(kept, r)
			}
		}
		if len(kept) >= want || len(results) < k || filters.Empty() {
			if len(kept) > want {
				kept = kept[:want]
			}
			return kept, loaded, nil
		}
	}
}

// UpdateLabels replaces the tags and categories of a stored document. The
// keyword document is rewritten whole from its stored fields and the vector
// is left as is. Unknown ids are ignored.
func (h *HybridIndex) UpdateLabels(ctx context.Context, id string, tags, categories []string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.ensureLocked(ctx); err != nil {
		return err
	}
	docs, err := h.keywords.Documents(ctx, []string{id})
	if err != nil {
		return err
	}
	doc, ok := docs[id]
	if !ok {
		return nil
	}
	doc.Tags = tags
	doc.Categories = categories
	if err := h.keywords.Index(ctx, doc); err != nil {
		return fmt.Errorf("index %s: %w", id, err)
	}
	return nil
}

func (h *HybridIndex) topK() int {
	if h.config.TopKCandidates > 0 {
		return h.config.TopKCandidates
	}
	return 100
}

// weights returns the fusion weights, giving a disabled side zero weight.
func (h *HybridIndex) weights(q *models.SearchQuery) (float64, float64) {
	kw, sem := h.config.KeywordWeight, h.config.SemanticWeight
	if kw == 0 && sem == 0 {
		kw, sem = 0.5, 0.5
	}
	if !q.KeywordEnabled {
		kw = 0
	}
	if !q.SemanticEnabled {
		sem = 0
	}
	return kw, sem
}

// Count returns the number of keyword documents and stored vectors.
func (h *HybridIndex) Count(ctx context.Context) (*models.IndexStats, error) {
	kw, vec, err := h.indexes(ctx)
	if err != nil {
		return nil, err
	}
	docs, err := kw.DocCount()
	if err != nil {
		return nil, err
	}
	vectors, err := vec.Count(ctx)
	if err != nil {
		return nil, err
	}
	size, err := storage.DiskUsageBytes(h.keywordPath, h.vectorOpts.Path)
	if err != nil {
		h.logger.Warn("index disk usage", zap.Error(err))
	}
	return &models.IndexStats{DocumentCount: docs, VectorCount: vectors, DiskBytes: size}, nil
}

// Close persists and closes the underlying indexes.
func (h *HybridIndex) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	var errs []string
	if h.vectors != nil {
		if err := h.persistLocked(); err != nil {
			errs = append(errs, err.Error())
		}
		if err := h.vectors.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		h.vectors = nil
	}
	if h.keywords != nil {
		if err := h.keywords.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		h.keywords = nil
	}
	if len(errs) > 0 {
		return fmt.Errorf("close search index: %s", strings.Join(errs, "; "))
	}
	return nil
}

// MatchesFilters reports whether doc satisfies every set filter.
func MatchesFilters(doc *models.SearchIndexDocument, f models.SearchFilters) bool {
	if f.FileType != "" && !strings.EqualFold(strings.TrimPrefix(f.FileType, "."), doc.FileType) {
		return false
	}
	if f.UploadedBy != "" && f.UploadedBy != doc.UploadedBy {
		return false
	}
	if f.ThreadID != "" && f.ThreadID != doc.ThreadID {
		return false
	}
	if f.Category != "" && !contains(doc.Categories, f.Category) {
		return false
	}
	if f.Tag != "" && !contains(doc.Tags, f.Tag) {
		return false
	}
	return true
}

func contains(list []string, v string) bool {
	for _, e := range list {
		if e == v {
			return true
		}
	}
	return false
}
