package embeddings

import (
	"context"
	"sync"
	"time"
)

// rateLimited spaces backend calls to at most rpm per minute with a token
// bucket that holds up to rpm tokens.
type rateLimited struct {
	Embedder
	rpm int

	mu       sync.Mutex
	tokens   float64
	lastFill time.Time
	now      func() time.Time
}

// RateLimited wraps e so that Embed is called at most rpm times per minute.
// rpm <= 0 returns e unchanged.
func RateLimited(e Embedder, rpm int) Embedder {
	if rpm <= 0 {
		return e
	}
	return &rateLimited{Embedder: e, rpm: rpm, tokens: float64(rpm), lastFill: time.Now(), now: time.Now}
}

func (r *rateLimited) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.Embedder.Embed(ctx, texts)
}

func (r *rateLimited) wait(ctx context.Context) error {
	for {
		delay := r.take()
		if delay == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// take consumes a token, or returns how long until one is available.
func (r *rateLimited) take() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	perToken := time.Minute / time.Duration(r.rpm)
	r.tokens = min(float64(r.rpm), r.tokens+float64(now.Sub(r.lastFill))/float64(perToken))
	r.lastFill = now

	if r.tokens >= 1 {
		r.tokens--
		return 0
	}
	return time.Duration((1 - r.tokens) * float64(perToken))
}
