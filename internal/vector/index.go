// Package vector provides dense-vector similarity search.
package vector

import "context"

// VectorIndex stores one vector per ID and answers top-k similarity queries.
// Vectors are expected to be L2-normalized so inner product equals cosine similarity.
type VectorIndex interface {
	// Upsert stores vectors under ids, replacing any existing vector with the same ID.
	Upsert(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Remove(ctx context.Context, ids []string) error
	Count(ctx context.Context) (int, error)
	// Save and Load persist the index to path. Database-backed indexes ignore them.
	Save(path string) error
	Load(path string) error
	Close() error
}

// VectorResult is a single vector search hit.
type VectorResult struct {
	ID    string
	Score float64
}
