package search

import (
	"context"
	"fmt"
	"testing"

	"github.com/hyperjump/docflow/internal/config"
	"github.com/hyperjump/docflow/internal/embedding"
	"github.com/hyperjump/docflow/internal/keyword"
	"github.com/hyperjump/docflow/internal/models"
	"github.com/hyperjump/docflow/internal/vector"
)

func BenchmarkFuse(b *testing.B) {
	kw := make(map[string]float64)
	sem := make(map[string]float64)
	for i := 0; i < 100; i++ {
		id := fmt.Sprintf("doc-%d", i)
		kw[id] = float64(i) / 100
		sem[id] = float64(100-i) / 100
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Fuse(kw, sem, 0.5, 0.5)
	}
}

func BenchmarkHybridIndex_Query(b *testing.B) {
	ctx := context.Background()
	emb := embedding.NewMockEmbedder(64)
	kw, err := keyword.NewMemoryBleveIndex()
	if err != nil {
		b.Fatal(err)
	}
	vec, err := vector.NewMemoryIndex(64)
	if err != nil {
		b.Fatal(err)
	}
	idx := NewHybridIndexFrom(kw, vec, emb, &config.SearchConfig{
		TopKCandidates: 100, KeywordWeight: 0.5, SemanticWeight: 0.5, HighlightLength: 200,
	})
	defer idx.Close()

	docs := make([]*models.SearchIndexDocument, 500)
	for i := range docs {
		content := fmt.Sprintf("quarterly report %d covering revenue, churn and migration topic %d", i, i%17)
		v, _ := emb.Embed(ctx, content)
		docs[i] = &models.SearchIndexDocument{
			ID: fmt.Sprintf("doc-%d", i), FileName: fmt.Sprintf("report-%d.pdf", i),
			FileType: "pdf", Content: content, ContentVector: v,
		}
	}
	if err := idx.Upsert(ctx, docs); err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := idx.Query(ctx, &models.SearchQuery{Query: "revenue migration", Top: 10}); err != nil {
			b.Fatal(err)
		}
	}
}
