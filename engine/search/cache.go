package search

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedEmbedder memoizes embeddings by exact text.
type CachedEmbedder struct {
	inner Embedder
	cache *lru.Cache[string, []float32]
}

// NewCachedEmbedder wraps inner with an LRU cache holding up to size entries.
func NewCachedEmbedder(inner Embedder, size int) (*CachedEmbedder, error) {
	c, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("search: embedding cache: %w", err)
	}
	return &CachedEmbedder{inner: inner, cache: c}, nil
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		return v, nil
	}
	v, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(text, v)
	return v, nil
}

// EmbedBatch serves cached texts from memory and embeds the rest in one call.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []string
	var at []int
	for i, t := range texts {
		if v, ok := c.cache.Get(t); ok {
			out[i] = v
			continue
		}
		missing = append(missing, t)
		at = append(at, i)
	}
	if len(missing) == 0 {
		return out, nil
	}
	vecs, err := c.inner.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missing) {
		return nil, fmt.Errorf("search: embed batch: got %d vectors for %d texts", len(vecs), len(missing))
	}
	for j, v := range vecs {
		out[at[j]] = v
		c.cache.Add(missing[j], v)
	}
	return out, nil
}

// Len returns the number of cached embeddings.
func (c *CachedEmbedder) Len() int { return c.cache.Len() }
