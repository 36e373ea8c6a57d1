package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/docflow/internal/blob"
	"github.com/hyperjump/docflow/internal/config"
	"github.com/hyperjump/docflow/internal/embedding"
	"github.com/hyperjump/docflow/internal/extract"
	"github.com/hyperjump/docflow/internal/indexer"
	"github.com/hyperjump/docflow/internal/ingest"
	"github.com/hyperjump/docflow/internal/search"
	"github.com/hyperjump/docflow/internal/storage"
	"github.com/hyperjump/docflow/internal/vector"
)

// components holds the services built once at startup.
type components struct {
	Store     storage.Storage
	Blobs     blob.Store
	Embedder  embedding.Embedder
	Index     *search.HybridIndex
	ChatIndex *search.HybridIndex
	Service   *ingest.Service
}

// Close releases everything that was opened. Background work must already
// have been drained with Service.Shutdown.
func (c *components) Close() {
	if c.Index != nil {
		_ = c.Index.Close()
	}
	if c.ChatIndex != nil {
		_ = c.ChatIndex.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Blobs != nil {
		_ = c.Blobs.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

// vectorOptions describes the document (or chat) vector index. Only a memory
// index is persisted to a file.
func vectorOptions(cfg *config.Config, chat bool) vector.Options {
	opts := vector.Options{
		Type:       cfg.Search.VectorIndex,
		Dimensions: cfg.Embedding.Dimensions,
		DSN:        cfg.Storage.PostgresDSN,
		Table:      "document_vectors",
	}
	if chat {
		opts.Table = "chat_vectors"
	}
	if opts.Type == "" || opts.Type == string(vector.IndexTypeMemory) {
		opts.Path = cfg.Search.VectorIndexPath
		if chat {
			opts.Path = cfg.Search.ChatVectorPath
		}
	}
	return opts
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*components, error) {
	c := &components{}
	var err error

	c.Store, err = storage.New(ctx, &cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.Blobs, err = blob.New(ctx, &cfg.Blob)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize blob store: %w", err)
	}
	c.Embedder, err = embedding.New(ctx, &cfg.Embedding, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	extractor, err := extract.New(&cfg.Extraction, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize extractor: %w", err)
	}

	c.Index = search.NewHybridIndex(cfg.Search.BleveIndexPath, vectorOptions(cfg, false), c.Embedder, &cfg.Search, search.WithLogger(logger))
	c.ChatIndex = search.NewHybridIndex(cfg.Search.ChatBleveIndexPath, vectorOptions(cfg, true), c.Embedder, &cfg.Search, search.WithLogger(logger))

	chunker := indexer.NewChunker(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	c.Service = ingest.New(ingest.Deps{
		Blobs:     c.Blobs,
		Store:     c.Store,
		Extractor: extractor,
		Indexer:   indexer.NewIndexer(c.Embedder, chunker, indexer.WithLogger(logger)),
		Index:     c.Index,
		ChatIndex: c.ChatIndex,
	}, &cfg.Ingest, ingest.WithLogger(logger))
	return c, nil
}
