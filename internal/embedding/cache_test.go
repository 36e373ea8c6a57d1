package embedding

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/docflow/internal/config"
)

// countingEmbedder records how many texts reach it.
type countingEmbedder struct {
	MockEmbedder
	texts atomic.Int64
	calls atomic.Int64
	fail  error
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(1)
	c.texts.Add(int64(len(texts)))
	if c.fail != nil {
		return nil, c.fail
	}
	return c.MockEmbedder.EmbedBatch(ctx, texts)
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	c.texts.Add(1)
	return c.MockEmbedder.Embed(ctx, text)
}

func TestEmbeddingCache_LRU(t *testing.T) {
	c := NewEmbeddingCache(2)
	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Set("a", []float32{1})
	c.Set("b", []float32{2})
	_, _ = c.Get("a") // a is now most recent
	c.Set("c", []float32{3})

	_, ok = c.Get("b")
	assert.False(t, ok, "b should be evicted")
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, []float32{1}, v)
	assert.Equal(t, 2, c.Len())

	c.Set("a", []float32{9})
	v, _ = c.Get("a")
	assert.Equal(t, []float32{9}, v)
}

func TestCachedEmbedder_onlyMissesReachBackend(t *testing.T) {
	inner := &countingEmbedder{MockEmbedder: *NewMockEmbedder(8)}
	e := NewCachedEmbedder(inner, 100)
	ctx := context.Background()

	first, err := e.EmbedBatch(ctx, []string{"alpha", "beta"})
	require.NoError(t, err)
	second, err := e.EmbedBatch(ctx, []string{"beta", "gamma", "alpha"})
	require.NoError(t, err)

	assert.Equal(t, int64(3), inner.texts.Load(), "alpha and beta should be served from cache")
	assert.Equal(t, first[0], second[2])
	assert.Equal(t, first[1], second[0])
	assert.Len(t, second[1], 8)

	_, err = e.Embed(ctx, "gamma")
	require.NoError(t, err)
	assert.Equal(t, int64(3), inner.texts.Load())
}

func TestCachedEmbedder_errorNotCached(t *testing.T) {
	boom := errors.New("quota exceeded")
	inner := &countingEmbedder{MockEmbedder: *NewMockEmbedder(4), fail: boom}
	e := NewCachedEmbedder(inner, 10)
	_, err := e.EmbedBatch(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, boom)

	inner.fail = nil
	_, err = e.EmbedBatch(context.Background(), []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), inner.calls.Load())
}

func TestMockEmbedder(t *testing.T) {
	e := NewMockEmbedder(16)
	ctx := context.Background()
	a1, err := e.Embed(ctx, "hello")
	require.NoError(t, err)
	a2, _ := e.Embed(ctx, "hello")
	b, _ := e.Embed(ctx, "world")
	assert.Equal(t, a1, a2)
	assert.NotEqual(t, a1, b)
	assert.Len(t, a1, 16)

	var norm float32
	for _, v := range a1 {
		norm += v * v
	}
	assert.InDelta(t, 1.0, norm, 1e-4)
	assert.Equal(t, 384, NewMockEmbedder(0).Dimensions())
}

func TestRateLimitedEmbedder(t *testing.T) {
	e := NewRateLimitedEmbedder(NewMockEmbedder(4), 1000)
	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)

	slow := NewRateLimitedEmbedder(NewMockEmbedder(4), 0.001)
	_, err = slow.Embed(context.Background(), "first")
	require.NoError(t, err, "burst allows the first call")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = slow.Embed(ctx, "second")
	assert.Error(t, err, "second call should not fit before the deadline")
}

func TestNew(t *testing.T) {
	ctx := context.Background()
	e, err := New(ctx, &config.EmbeddingConfig{Provider: "mock", Dimensions: 32, CacheSize: 10, RequestsPerSecond: 50}, nil)
	require.NoError(t, err)
	assert.Equal(t, 32, e.Dimensions())
	_, isCached := e.(*CachedEmbedder)
	assert.True(t, isCached)

	_, err = New(ctx, &config.EmbeddingConfig{Provider: "gemini"}, nil)
	assert.Error(t, err, "gemini without api key")
	_, err = New(ctx, &config.EmbeddingConfig{Provider: "word2vec"}, nil)
	assert.Error(t, err)
}
