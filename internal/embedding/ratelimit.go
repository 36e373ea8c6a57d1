package embedding

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitedEmbedder throttles calls to a remote embedder. A batch counts as one request.
type RateLimitedEmbedder struct {
	next    Embedder
	limiter *rate.Limiter
}

// NewRateLimitedEmbedder allows rps requests per second with a burst of one.
func NewRateLimitedEmbedder(next Embedder, rps float64) *RateLimitedEmbedder {
	return &RateLimitedEmbedder{next: next, limiter: rate.NewLimiter(rate.Limit(rps), 1)}
}

func (r *RateLimitedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.next.Embed(ctx, text)
}

func (r *RateLimitedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.next.EmbedBatch(ctx, texts)
}

func (r *RateLimitedEmbedder) Dimensions() int { return r.next.Dimensions() }

func (r *RateLimitedEmbedder) Close() error { return r.next.Close() }
