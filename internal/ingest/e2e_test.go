package ingest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hyperjump/docflow/internal/blob"
	"github.com/hyperjump/docflow/internal/config"
	"github.com/hyperjump/docflow/internal/embedding"
	"github.com/hyperjump/docflow/internal/extract"
	"github.com/hyperjump/docflow/internal/indexer"
	"github.com/hyperjump/docflow/internal/keyword"
	"github.com/hyperjump/docflow/internal/models"
	"github.com/hyperjump/docflow/internal/search"
	"github.com/hyperjump/docflow/internal/storage"
	"github.com/hyperjump/docflow/internal/testutil"
	"github.com/hyperjump/docflow/internal/vector"
)

func TestPipeline_twoPagePDF(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	blobs, err := blob.NewDiskStore(filepath.Join(dir, "blobs"), "")
	require.NoError(t, err)
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "documents.db"))
	require.NoError(t, err)
	defer store.Close()

	emb := embedding.NewMockEmbedder(16)
	kw, err := keyword.NewMemoryBleveIndex()
	require.NoError(t, err)
	vec, err := vector.NewMemoryIndex(16)
	require.NoError(t, err)
	index := search.NewHybridIndexFrom(kw, vec, emb, &config.SearchConfig{
		TopKCandidates: 10, KeywordWeight: 0.5, SemanticWeight: 0.5, HighlightLength: 100,
	})
	defer index.Close()

	exec := NewExecutor(1, nil)
	release := make(chan struct{})
	require.NoError(t, exec.Submit("gate", func(context.Context) { <-release }))

	svc := New(Deps{
		Blobs:     blobs,
		Store:     store,
		Extractor: extract.NewLocalExtractor(zap.NewNop()),
		Indexer:   indexer.NewIndexer(emb, nil),
		Index:     index,
	}, &config.IngestConfig{
		MaxUploadBytes:    config.DefaultMaxUploadBytes,
		AllowedExtensions: config.DefaultAllowedExtensions,
	}, WithExecutor(exec), WithLogger(zap.NewNop()))
	require.NoError(t, svc.EnsureIndexes(ctx))

	pdf := testutil.MinimalPDF("Quarterly zebra migration report", "Appendix with tables")
	res, err := svc.Upload(ctx, "alice", "report.pdf", pdf, "application/pdf")
	require.NoError(t, err)
	require.True(t, res.Success)

	rec, err := svc.Get(ctx, res.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusUploaded, rec.Status)
	assert.Equal(t, int64(len(pdf)), rec.FileSize)
	assert.Zero(t, rec.Pages)
	assert.Zero(t, rec.Confidence)

	close(release)
	svc.Wait()

	rec, err = svc.Get(ctx, res.DocumentID)
	require.NoError(t, err)
	require.Equal(t, models.StatusCompleted, rec.Status, rec.ProcessingError)
	assert.Equal(t, 2, rec.Pages)
	assert.GreaterOrEqual(t, rec.Confidence, 0.0)
	assert.LessOrEqual(t, rec.Confidence, 1.0)
	assert.Equal(t, res.DocumentID, rec.SearchIndexID)

	resp, err := svc.Search(ctx, &models.SearchQuery{Query: "zebra migration"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, res.DocumentID, resp.Results[0].ID)
	assert.Equal(t, 2, resp.Results[0].Pages)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, uint64(1), stats.IndexStats.DocumentCount)
	assert.Equal(t, 1, stats.IndexStats.VectorCount)

	require.NoError(t, svc.Delete(ctx, res.DocumentID))
	stats, err = svc.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
	assert.Zero(t, stats.IndexStats.DocumentCount)
}

func TestPipeline_labelEditsReachFilters(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	blobs, err := blob.NewDiskStore(filepath.Join(dir, "blobs"), "")
	require.NoError(t, err)
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "documents.db"))
	require.NoError(t, err)
	defer store.Close()

	emb := embedding.NewMockEmbedder(16)
	kw, err := keyword.NewMemoryBleveIndex()
	require.NoError(t, err)
	vec, err := vector.NewMemoryIndex(16)
	require.NoError(t, err)
	index := search.NewHybridIndexFrom(kw, vec, emb, &config.SearchConfig{
		TopKCandidates: 10, KeywordWeight: 0.5, SemanticWeight: 0.5, HighlightLength: 100,
	})
	defer index.Close()

	svc := New(Deps{
		Blobs:     blobs,
		Store:     store,
		Extractor: extract.NewLocalExtractor(zap.NewNop()),
		Indexer:   indexer.NewIndexer(emb, nil),
		Index:     index,
	}, &config.IngestConfig{
		MaxUploadBytes:    config.DefaultMaxUploadBytes,
		AllowedExtensions: config.DefaultAllowedExtensions,
	}, WithLogger(zap.NewNop()))
	require.NoError(t, svc.EnsureIndexes(ctx))

	var ids []string
	for _, name := range []string{"a.txt", "b.txt"} {
		res, err := svc.Upload(ctx, "alice", name, []byte("quarterly revenue summary"), "text/plain")
		require.NoError(t, err)
		require.True(t, res.Success)
		ids = append(ids, res.DocumentID)
	}
	svc.Wait()

	_, err = svc.UpdateTags(ctx, ids[0], []string{"finance"})
	require.NoError(t, err)
	_, err = svc.UpdateCategories(ctx, ids[1], []string{"reports"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		filters models.SearchFilters
		want    string
	}{
		{"tag", models.SearchFilters{Tag: "finance"}, ids[0]},
		{"category", models.SearchFilters{Category: "reports"}, ids[1]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := svc.Search(ctx, &models.SearchQuery{Query: "quarterly revenue", Filters: tt.filters})
			require.NoError(t, err)
			require.Len(t, resp.Results, 1)
			assert.Equal(t, tt.want, resp.Results[0].ID)
		})
	}

	resp, err := svc.Search(ctx, &models.SearchQuery{Query: "quarterly revenue"})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 2, "label edits must keep content searchable")
}
