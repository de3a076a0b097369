package embedder

import (
	"context"
	"slices"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cached wraps an Embedder with an in-process expiring LRU keyed by the
// exact text. Re-embedding identical text is common here (the same chunk
// re-added after an import, the same query issued twice in a session) and
// each hit skips a billable API round trip.
type Cached struct {
	inner Embedder
	cache *expirable.LRU[string, []float32]
}

// NewCached wraps inner with a cache of at most size entries expiring after
// ttl. When size or ttl is not positive, inner is returned unwrapped.
func NewCached(inner Embedder, size int, ttl time.Duration) Embedder {
	if size <= 0 || ttl <= 0 {
		return inner
	}
	return &Cached{
		inner: inner,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

// Embed returns the cached vector for text when present, otherwise delegates
// to the wrapped embedder and caches the result. Vectors are cloned on both
// sides of the cache so callers cannot mutate cached state.
func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, nil
	}
	if vec, ok := c.cache.Get(text); ok {
		return slices.Clone(vec), nil
	}
	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(text, slices.Clone(vec))
	return vec, nil
}

// Dims returns the wrapped embedder's dimensionality.
func (c *Cached) Dims() int {
	return c.inner.Dims()
}

// Model returns the wrapped embedder's model name.
func (c *Cached) Model() string {
	return c.inner.Model()
}

// Compile-time interface satisfaction check.
var _ Embedder = (*Cached)(nil)
