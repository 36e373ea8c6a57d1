package indexer

import (
	"context"
	"fmt"

	"github.com/hyperjump/docflow/internal/embedding"
)

// Aligned holds per-input results of EmbedAligned. Texts[i] and Vectors[i]
// are empty for every i listed in Skipped.
type Aligned struct {
	Texts   []string
	Vectors [][]float32
	Skipped []int
}

// EmbedAligned sanitizes every input, embeds only those that pass in a single
// batch, and assigns each vector back to the position of its input.
func EmbedAligned(ctx context.Context, emb embedding.Embedder, contents []TextContent) (*Aligned, error) {
	out := &Aligned{
		Texts:   make([]string, len(contents)),
		Vectors: make([][]float32, len(contents)),
	}
	var (
		batch     []string
		positions []int
	)
	for i, c := range contents {
		text, err := Sanitize(c)
		if err != nil {
			out.Skipped = append(out.Skipped, i)
			continue
		}
		out.Texts[i] = text
		batch = append(batch, text)
		positions = append(positions, i)
	}
	if len(batch) == 0 {
		return out, nil
	}
	vectors, err := emb.EmbedBatch(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("embed batch: %w", err)
	}
	if len(vectors) != len(batch) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(batch))
	}
	for j, pos := range positions {
		out.Vectors[pos] = vectors[j]
	}
	return out, nil
}
