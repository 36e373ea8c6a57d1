package search

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/docflow/internal/config"
	"github.com/hyperjump/docflow/internal/embedding"
	"github.com/hyperjump/docflow/internal/keyword"
	"github.com/hyperjump/docflow/internal/models"
	"github.com/hyperjump/docflow/internal/vector"
)

const testDims = 8

func testConfig() *config.SearchConfig {
	return &config.SearchConfig{TopKCandidates: 20, KeywordWeight: 0.5, SemanticWeight: 0.5, HighlightLength: 80}
}

func newTestHybrid(t *testing.T) (*HybridIndex, embedding.Embedder) {
	t.Helper()
	kw, err := keyword.NewMemoryBleveIndex()
	require.NoError(t, err)
	vec, err := vector.NewMemoryIndex(testDims)
	require.NoError(t, err)
	emb := embedding.NewMockEmbedder(testDims)
	h := NewHybridIndexFrom(kw, vec, emb, testConfig())
	t.Cleanup(func() { _ = h.Close() })
	return h, emb
}

func embeddedDoc(t *testing.T, emb embedding.Embedder, doc *models.SearchIndexDocument) *models.SearchIndexDocument {
	t.Helper()
	v, err := emb.Embed(context.Background(), doc.Content)
	require.NoError(t, err)
	doc.ContentVector = v
	return doc
}

func TestHybridIndex_QueryFusesKeywordAndVector(t *testing.T) {
	h, emb := newTestHybrid(t)
	ctx := context.Background()
	require.NoError(t, h.Upsert(ctx, []*models.SearchIndexDocument{
		embeddedDoc(t, emb, &models.SearchIndexDocument{ID: "a", FileName: "a.txt", Content: "machine learning algorithms", FileType: "txt"}),
		embeddedDoc(t, emb, &models.SearchIndexDocument{ID: "b", FileName: "b.txt", Content: "gardening tips for spring", FileType: "txt"}),
	}))

	resp, err := h.Query(ctx, &models.SearchQuery{Query: "machine learning"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	top := resp.Results[0]
	assert.Equal(t, "a", top.ID)
	assert.Equal(t, 1, top.Rank)
	assert.Equal(t, 1.0, top.KeywordScore)
	assert.NotEmpty(t, top.Highlights)
	assert.Equal(t, "machine learning", resp.Query)
}

func TestHybridIndex_SemanticOnly(t *testing.T) {
	h, emb := newTestHybrid(t)
	ctx := context.Background()
	require.NoError(t, h.Upsert(ctx, []*models.SearchIndexDocument{
		embeddedDoc(t, emb, &models.SearchIndexDocument{ID: "x", Content: "exact query text"}),
		embeddedDoc(t, emb, &models.SearchIndexDocument{ID: "y", Content: "something unrelated"}),
	}))

	resp, err := h.Query(ctx, &models.SearchQuery{Query: "exact query text", SemanticEnabled: true})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "x", resp.Results[0].ID)
	assert.InDelta(t, 1.0, resp.Results[0].SemanticScore, 1e-5)
	assert.Zero(t, resp.Results[0].KeywordScore)
}

func TestHybridIndex_FiltersApplyToVectorHits(t *testing.T) {
	h, emb := newTestHybrid(t)
	ctx := context.Background()
	require.NoError(t, h.Upsert(ctx, []*models.SearchIndexDocument{
		embeddedDoc(t, emb, &models.SearchIndexDocument{ID: "t1-a", Content: "alpha", ThreadID: "t1"}),
		embeddedDoc(t, emb, &models.SearchIndexDocument{ID: "t2-a", Content: "alpha", ThreadID: "t2"}),
	}))

	resp, err := h.Query(ctx, &models.SearchQuery{Query: "alpha", Filters: models.SearchFilters{ThreadID: "t2"}})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "t2-a", resp.Results[0].ID)
}

func TestHybridIndex_TopLimitsResults(t *testing.T) {
	h, emb := newTestHybrid(t)
	ctx := context.Background()
	var docs []*models.SearchIndexDocument
	for _, id := range []string{"1", "2", "3", "4"} {
		docs = append(docs, embeddedDoc(t, emb, &models.SearchIndexDocument{ID: id, Content: "common word " + id}))
	}
	require.NoError(t, h.Upsert(ctx, docs))

	resp, err := h.Query(ctx, &models.SearchQuery{Query: "common", Top: 2, KeywordEnabled: true})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 2)
	assert.Equal(t, 4, resp.Total)
}

func TestHybridIndex_UpsertReplacesAndDelete(t *testing.T) {
	h, emb := newTestHybrid(t)
	ctx := context.Background()
	require.NoError(t, h.Upsert(ctx, []*models.SearchIndexDocument{
		embeddedDoc(t, emb, &models.SearchIndexDocument{ID: "r", Content: "first"}),
	}))
	// Replacing without a vector drops the stored one.
	require.NoError(t, h.Upsert(ctx, []*models.SearchIndexDocument{{ID: "r", Content: "second"}}))

	stats, err := h.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.DocumentCount)
	assert.Equal(t, 0, stats.VectorCount)

	require.NoError(t, h.Delete(ctx, []string{"r", "unknown"}))
	stats, err = h.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.DocumentCount)
}

func TestHybridIndex_QueryValidates(t *testing.T) {
	h, _ := newTestHybrid(t)
	_, err := h.Query(context.Background(), &models.SearchQuery{})
	assert.True(t, models.IsValidation(err))
}

func TestHybridIndex_FilteredVectorSearchLooksPastOtherThreads(t *testing.T) {
	h, emb := newTestHybrid(t)
	ctx := context.Background()
	// More exact matches in another thread than the candidate limit (20).
	var docs []*models.SearchIndexDocument
	for i := 0; i < 50; i++ {
		docs = append(docs, embeddedDoc(t, emb, &models.SearchIndexDocument{
			ID: fmt.Sprintf("busy-%02d", i), Content: "alpha beta", ThreadID: "busy",
		}))
	}
	docs = append(docs, embeddedDoc(t, emb, &models.SearchIndexDocument{
		ID: "quiet-1", Content: "alpha beta gamma delta", ThreadID: "quiet",
	}))
	require.NoError(t, h.Upsert(ctx, docs))

	resp, err := h.Query(ctx, &models.SearchQuery{
		Query:           "alpha beta",
		SemanticEnabled: true,
		Filters:         models.SearchFilters{ThreadID: "quiet"},
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "quiet-1", resp.Results[0].ID)
}

func TestHybridIndex_UpdateLabels(t *testing.T) {
	h, emb := newTestHybrid(t)
	ctx := context.Background()
	require.NoError(t, h.Upsert(ctx, []*models.SearchIndexDocument{
		embeddedDoc(t, emb, &models.SearchIndexDocument{ID: "d", FileName: "d.txt", Content: "quarterly revenue", Tags: []string{}}),
	}))
	require.NoError(t, h.UpdateLabels(ctx, "d", []string{"finance"}, []string{"reports"}))
	require.NoError(t, h.UpdateLabels(ctx, "unknown", []string{"x"}, nil))

	for _, q := range []*models.SearchQuery{
		{Query: "quarterly revenue", KeywordEnabled: true, Filters: models.SearchFilters{Tag: "finance"}},
		{Query: "quarterly revenue", SemanticEnabled: true, Filters: models.SearchFilters{Category: "reports"}},
	} {
		resp, err := h.Query(ctx, q)
		require.NoError(t, err)
		require.Len(t, resp.Results, 1, "query %s", q)
		assert.Equal(t, "d", resp.Results[0].ID)
		assert.Equal(t, []string{"finance"}, resp.Results[0].Tags)
	}

	stats, err := h.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.DocumentCount)
	assert.Equal(t, 1, stats.VectorCount)
}

func TestHybridIndex_EnsureIndexExistsPersists(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	emb := embedding.NewMockEmbedder(testDims)
	open := func() *HybridIndex {
		return NewHybridIndex(filepath.Join(dir, "docs.bleve"), vector.Options{
			Type: "memory",
			Path: filepath.Join(dir, "docs.vec"),
		}, emb, testConfig())
	}

	h := open()
	require.NoError(t, h.EnsureIndexExists(ctx))
	require.NoError(t, h.EnsureIndexExists(ctx))
	require.NoError(t, h.Upsert(ctx, []*models.SearchIndexDocument{
		embeddedDoc(t, emb, &models.SearchIndexDocument{ID: "p", Content: "persisted"}),
	}))
	require.NoError(t, h.Close())

	reopened := open()
	defer func() { _ = reopened.Close() }()
	stats, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.DocumentCount)
	assert.Equal(t, 1, stats.VectorCount)
	assert.Positive(t, stats.DiskBytes)
}

func TestMatchesFilters(t *testing.T) {
	doc := &models.SearchIndexDocument{FileType: "pdf", UploadedBy: "u", Tags: []string{"a"}, Categories: []string{"c"}}
	tests := []struct {
		name string
		f    models.SearchFilters
		want bool
	}{
		{"empty", models.SearchFilters{}, true},
		{"type with dot", models.SearchFilters{FileType: ".PDF"}, true},
		{"wrong owner", models.SearchFilters{UploadedBy: "v"}, false},
		{"tag", models.SearchFilters{Tag: "a"}, true},
		{"missing category", models.SearchFilters{Category: "z"}, false},
		{"thread", models.SearchFilters{ThreadID: "t"}, false},
	}
	for _, tt := range tests {
		if got := MatchesFilters(doc, tt.f); got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}
}
