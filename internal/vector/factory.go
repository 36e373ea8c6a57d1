package vector

import (
	"context"
	"fmt"
)

// IndexType selects a VectorIndex implementation.
type IndexType string

const (
	// IndexTypeMemory is brute-force search persisted to a local file.
	IndexTypeMemory IndexType = "memory"
	// IndexTypePgVector stores vectors in PostgreSQL with the pgvector extension.
	IndexTypePgVector IndexType = "pgvector"
)

// Options configures NewVectorIndex.
type Options struct {
	Type       string
	Dimensions int
	// Path is the persistence file of a memory index.
	Path string
	// DSN and Table configure a pgvector index.
	DSN   string
	Table string
}

// NewVectorIndex creates the index selected by opts.Type and loads any persisted state.
func NewVectorIndex(ctx context.Context, opts Options) (VectorIndex, error) {
	switch IndexType(opts.Type) {
	case IndexTypeMemory, "":
		idx, err := NewMemoryIndex(opts.Dimensions)
		if err != nil {
			return nil, err
		}
		if err := idx.Load(opts.Path); err != nil {
			return nil, fmt.Errorf("load vector index: %w", err)
		}
		return idx, nil
	case IndexTypePgVector:
		table := opts.Table
		if table == "" {
			table = "document_vectors"
		}
		return NewPgVectorIndex(ctx, opts.DSN, table, opts.Dimensions)
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: memory, pgvector)", opts.Type)
	}
}
