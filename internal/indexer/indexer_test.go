package indexer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/docflow/internal/models"
)

// recordingEmbedder returns a one-dimensional vector holding the text length
// and remembers every batch it was sent.
type recordingEmbedder struct {
	batches [][]string
	short   bool
	err     error
}

func (r *recordingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := r.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func (r *recordingEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	r.batches = append(r.batches, append([]string(nil), texts...))
	if r.err != nil {
		return nil, r.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	if r.short {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (r *recordingEmbedder) Dimensions() int { return 1 }
func (r *recordingEmbedder) Close() error    { return nil }

func TestEmbedAligned_skipsAndRealigns(t *testing.T) {
	emb := &recordingEmbedder{}
	got, err := EmbedAligned(context.Background(), emb, []TextContent{Plain("a"), Plain(""), Plain("bbb")})
	require.NoError(t, err)

	require.Len(t, emb.batches, 1)
	assert.Equal(t, []string{"a", "bbb"}, emb.batches[0])
	assert.Equal(t, []int{1}, got.Skipped)
	assert.Equal(t, []float32{1}, got.Vectors[0])
	assert.Nil(t, got.Vectors[1])
	assert.Equal(t, []float32{3}, got.Vectors[2])
	assert.Equal(t, "", got.Texts[1])
}

func TestEmbedAligned_allSkippedMakesNoCall(t *testing.T) {
	emb := &recordingEmbedder{}
	got, err := EmbedAligned(context.Background(), emb, []TextContent{Plain(" "), Plain("\x00")})
	require.NoError(t, err)
	assert.Empty(t, emb.batches)
	assert.Equal(t, []int{0, 1}, got.Skipped)
}

func TestEmbedAligned_countMismatch(t *testing.T) {
	emb := &recordingEmbedder{short: true}
	_, err := EmbedAligned(context.Background(), emb, []TextContent{Plain("a"), Plain("b")})
	assert.Error(t, err)
}

func TestEmbedAligned_embedderError(t *testing.T) {
	boom := errors.New("quota exceeded")
	_, err := EmbedAligned(context.Background(), &recordingEmbedder{err: boom}, []TextContent{Plain("a")})
	assert.ErrorIs(t, err, boom)
}

func testRecord() *models.DocumentRecord {
	return &models.DocumentRecord{
		ID:         "doc-1",
		FileName:   "report.pdf",
		FileType:   "pdf",
		FileSize:   1234,
		UploadedBy: "alice",
		UploadedAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Tags:       []string{"q1"},
	}
}

func TestIndexer_BuildDocument(t *testing.T) {
	idx := NewIndexer(&recordingEmbedder{}, nil)
	doc, err := idx.BuildDocument(context.Background(), testRecord(), &Extracted{
		Content:    Plain("  page one\npage two  "),
		Pages:      2,
		Confidence: 1.5,
	}, "https://blobs/report.pdf")
	require.NoError(t, err)

	assert.Equal(t, "doc-1", doc.ID)
	assert.Equal(t, "page one\npage two", doc.Content)
	assert.Equal(t, []float32{float32(len("page one\npage two"))}, doc.ContentVector)
	assert.Equal(t, 2, doc.Pages)
	assert.Equal(t, 1.0, doc.Confidence)
	assert.Equal(t, "https://blobs/report.pdf", doc.BlobURL)
	assert.Equal(t, "alice", doc.UploadedBy)
	assert.Equal(t, []string{"q1"}, doc.Tags)
}

func TestIndexer_BuildDocumentKeywordOnly(t *testing.T) {
	emb := &recordingEmbedder{}
	idx := NewIndexer(emb, nil)
	doc, err := idx.BuildDocument(context.Background(), testRecord(), &Extracted{
		Content: Plain("scanned\x00text"),
	}, "")
	require.NoError(t, err)
	assert.Empty(t, emb.batches)
	assert.Nil(t, doc.ContentVector)
	assert.Equal(t, "scannedtext", doc.Content)
}

func TestIndexer_BuildChatChunks(t *testing.T) {
	emb := &recordingEmbedder{}
	idx := NewIndexer(emb, NewChunker(20, 4))
	text := strings.Repeat("abcd ", 8) + "\x01" + strings.Repeat("z", 30)

	chunks, skipped, err := idx.BuildChatChunks(context.Background(), ChatFile{
		ThreadID: "t1",
		UserID:   "u1",
		FileName: "notes.TXT",
	}, Plain(text))
	require.NoError(t, err)

	all := idx.Chunker().Split(text)
	assert.Equal(t, len(all), len(chunks)+skipped)
	assert.Positive(t, skipped)
	require.NotEmpty(t, chunks)
	for i, ch := range chunks {
		assert.Equal(t, "t1", ch.ThreadID)
		assert.Equal(t, "u1", ch.UserID)
		assert.NotEmpty(t, ch.ID)
		assert.NotNil(t, ch.Embedding)
		assert.NotContains(t, ch.PageContent, "\x01")
		if i > 0 {
			assert.Greater(t, ch.ChunkIndex, chunks[i-1].ChunkIndex)
		}
	}

	doc := ChunkDocument(chunks[0])
	assert.Equal(t, chunks[0].ID, doc.ID)
	assert.Equal(t, "notes.TXT", doc.FileName)
	assert.Equal(t, "txt", doc.FileType)
	assert.Equal(t, "t1", doc.ThreadID)
	assert.Equal(t, "u1", doc.UploadedBy)
	assert.False(t, doc.UploadedAt.IsZero())
}
