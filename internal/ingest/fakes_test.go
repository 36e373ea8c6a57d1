package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hyperjump/docflow/internal/blob"
	"github.com/hyperjump/docflow/internal/config"
	"github.com/hyperjump/docflow/internal/embedding"
	"github.com/hyperjump/docflow/internal/extract"
	"github.com/hyperjump/docflow/internal/indexer"
	"github.com/hyperjump/docflow/internal/models"
	"github.com/hyperjump/docflow/internal/storage"
)

// countingBlobs wraps a disk store and counts writes.
type countingBlobs struct {
	blob.Store
	mu        sync.Mutex
	puts      int
	deletes   []string
	putErr    error
	deleteErr error
}

func (b *countingBlobs) Put(ctx context.Context, key string, content []byte, contentType string, meta map[string]string) (*blob.PutResult, error) {
	b.mu.Lock()
	b.puts++
	b.mu.Unlock()
	if b.putErr != nil {
		return nil, b.putErr
	}
	return b.Store.Put(ctx, key, content, contentType, meta)
}

func (b *countingBlobs) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	b.deletes = append(b.deletes, key)
	b.mu.Unlock()
	if b.deleteErr != nil {
		return b.deleteErr
	}
	return b.Store.Delete(ctx, key)
}

// countingStore wraps a SQLite store and counts writes and status changes.
type countingStore struct {
	storage.Storage
	mu        sync.Mutex
	creates   int
	updates   int
	statuses  []models.DocumentStatus
	createErr error

	// failStatus makes updates to this status fail.
	failStatus models.DocumentStatus
}

func (s *countingStore) Create(ctx context.Context, rec *models.DocumentRecord) error {
	s.mu.Lock()
	s.creates++
	s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	return s.Storage.Create(ctx, rec)
}

func (s *countingStore) Update(ctx context.Context, id string, patch *models.DocumentPatch) (*models.DocumentRecord, error) {
	s.mu.Lock()
	s.updates++
	fail := false
	if patch.Status != nil {
		s.statuses = append(s.statuses, *patch.Status)
		fail = s.failStatus != "" && *patch.Status == s.failStatus
	}
	s.mu.Unlock()
	if fail {
		return nil, errors.New("update rejected")
	}
	return s.Storage.Update(ctx, id, patch)
}

func (s *countingStore) writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creates + s.updates
}

// fakeIndex records upserts and deletes.
type fakeIndex struct {
	mu        sync.Mutex
	docs      map[string]*models.SearchIndexDocument
	deleted   [][]string
	upsertErr error
	deleteErr error
	ensured   int
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{docs: make(map[string]*models.SearchIndexDocument)}
}

func (f *fakeIndex) EnsureIndexExists(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensured++
	return nil
}

func (f *fakeIndex) Upsert(_ context.Context, docs []*models.SearchIndexDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	for _, d := range docs {
		f.docs[d.ID] = d
	}
	return nil
}

func (f *fakeIndex) Delete(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ids)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for _, id := range ids {
		delete(f.docs, id)
	}
	return nil
}

func (f *fakeIndex) UpdateLabels(_ context.Context, id string, tags, categories []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.docs[id]; ok {
		d.Tags, d.Categories = tags, categories
	}
	return nil
}

func (f *fakeIndex) Query(_ context.Context, q *models.SearchQuery) (*models.SearchResponse, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	resp := &models.SearchResponse{Query: q.Query}
	for id, d := range f.docs {
		if q.Filters.ThreadID != "" && d.ThreadID != q.Filters.ThreadID {
			continue
		}
		resp.Results = append(resp.Results, &models.SearchResult{ID: id, ThreadID: d.ThreadID})
	}
	resp.Total = len(resp.Results)
	return resp, nil
}

func (f *fakeIndex) Count(context.Context) (*models.IndexStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &models.IndexStats{DocumentCount: uint64(len(f.docs))}, nil
}

func (f *fakeIndex) deleteCalls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.deleted...)
}

// fakeExtractor returns a fixed result or error.
type fakeExtractor struct {
	result *extract.Result
	err    error

	// When gate is set, Extract closes started and waits for gate to close.
	started chan struct{}
	gate    chan struct{}
}

// hold makes the next extraction block until the returned func is called.
func (f *fakeExtractor) hold() (started <-chan struct{}, release func()) {
	f.started = make(chan struct{})
	f.gate = make(chan struct{})
	return f.started, func() { close(f.gate) }
}

func (f *fakeExtractor) Extract(context.Context, []byte, string) (*extract.Result, error) {
	if f.gate != nil {
		close(f.started)
		<-f.gate
	}
	if f.err != nil {
		return nil, f.err
	}
	r := *f.result
	return &r, nil
}

type harness struct {
	svc       *Service
	blobs     *countingBlobs
	store     *countingStore
	index     *fakeIndex
	chat      *fakeIndex
	extractor *fakeExtractor
}

func testIngestConfig() *config.IngestConfig {
	return &config.IngestConfig{
		MaxUploadBytes:     1 << 20,
		ChatMaxUploadBytes: 64,
		AllowedExtensions:  []string{".txt", ".pdf", ".png"},
	}
}

func newHarness(t *testing.T, cfg *config.IngestConfig, opts ...Option) *harness {
	t.Helper()
	dir := t.TempDir()
	disk, err := blob.NewDiskStore(filepath.Join(dir, "blobs"), "")
	require.NoError(t, err)
	sqlStore, err := storage.NewSQLiteStorage(filepath.Join(dir, "db", "documents.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlStore.Close() })

	h := &harness{
		blobs:     &countingBlobs{Store: disk},
		store:     &countingStore{Storage: sqlStore},
		index:     newFakeIndex(),
		chat:      newFakeIndex(),
		extractor: &fakeExtractor{result: &extract.Result{Content: "extracted text body", Pages: 3, Confidence: 0.8}},
	}
	h.svc = New(Deps{
		Blobs:     h.blobs,
		Store:     h.store,
		Extractor: h.extractor,
		Indexer:   indexer.NewIndexer(embedding.NewMockEmbedder(8), indexer.NewChunker(40, 8)),
		Index:     h.index,
		ChatIndex: h.chat,
	}, cfg, opts...)
	return h
}

func (h *harness) upload(t *testing.T, owner, name, content string) string {
	t.Helper()
	res, err := h.svc.Upload(context.Background(), owner, name, []byte(content), "")
	require.NoError(t, err)
	require.True(t, res.Success)
	return res.DocumentID
}
