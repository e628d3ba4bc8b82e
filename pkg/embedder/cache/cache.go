// Package cache memoises embeddings of another embedder.Provider in a
// ristretto cache, so repeated queries and duplicate contents are embedded once.
package cache

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"

	"github.com/Jerrylingj/MemoLite/pkg/embedder"
)

// Provider wraps an embedder.Provider with a bounded in-process cache.
// Each cached vector costs 1, so size is the maximum number of entries.
type Provider struct {
	inner embedder.Provider
	cache *ristretto.Cache
}

// New creates a caching provider holding at most size embeddings.
func New(inner embedder.Provider, size int64) (*Provider, error) {
	if inner == nil {
		return nil, fmt.Errorf("embedding cache: nil provider")
	}
	if size <= 0 {
		return nil, fmt.Errorf("embedding cache: size must be positive, got %d", size)
	}

	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: size * 10,
		MaxCost:     size,
		BufferItems: 64,

		// Cost is counted in entries, not bytes.
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding cache: %w", err)
	}

	return &Provider{inner: inner, cache: c}, nil
}

// Embed returns the cached embedding of text, computing it on a miss.
func (p *Provider) Embed(ctx context.Context, text string) ([]float64, error) {
	if v, ok := p.lookup(text); ok {
		return v, nil
	}

	v, err := p.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	p.store(text, v)
	return copyVector(v), nil
}

// EmbedBatch embeds only the texts missing from the cache, in one call to
// the wrapped provider, and returns vectors in input order.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	var (
		missing []string
		slots   []int
	)
	for i, text := range texts {
		if v, ok := p.lookup(text); ok {
			out[i] = v
			continue
		}
		missing = append(missing, text)
		slots = append(slots, i)
	}

	if len(missing) == 0 {
		return out, nil
	}

	vectors, err := p.inner.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missing) {
		return nil, fmt.Errorf("embedding cache: provider returned %d vectors for %d texts", len(vectors), len(missing))
	}

	for j, v := range vectors {
		p.store(missing[j], v)
		out[slots[j]] = copyVector(v)
	}
	return out, nil
}

func (p *Provider) lookup(text string) ([]float64, bool) {
	v, ok := p.cache.Get(text)
	if !ok {
		return nil, false
	}
	vec, ok := v.([]float64)
	if !ok {
		return nil, false
	}
	return copyVector(vec), true
}

func (p *Provider) store(text string, v []float64) {
	p.cache.Set(text, copyVector(v), 1)
	// Sets are buffered; wait so the next lookup sees this one.
	p.cache.Wait()
}

func copyVector(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}

// Dimensions returns the dimensions of the wrapped provider.
func (p *Provider) Dimensions() int {
	return p.inner.Dimensions()
}

// Close releases the cache and closes the wrapped provider.
func (p *Provider) Close() error {
	p.cache.Close()
	return p.inner.Close()
}
