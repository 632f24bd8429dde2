package memory

import (
	"fmt"
	"hash/fnv"
	"math"
	"slices"

	"github.com/dgraph-io/ristretto"
)

// HashEmbedder derives a deterministic unit vector from the bytes of a text.
// Equal texts map to equal vectors; similar texts do not map to close ones.
// It serves offline workspaces and tests.
type HashEmbedder struct {
	dimension int
}

func NewHashEmbedder(dimension int) *HashEmbedder {
	return &HashEmbedder{dimension: dimension}
}

func (e *HashEmbedder) Dimension() int { return e.dimension }

func (e *HashEmbedder) Embed(text string) ([]float32, error) {
	if e.dimension <= 0 {
		return nil, fmt.Errorf("%w: hash embedder has dimension %d", ErrEmbeddingUnavailable, e.dimension)
	}
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vector := make([]float32, e.dimension)
	var norm float64
	for i := range vector {
		seed = seed*6364136223846793005 + 1442695040888963407
		vector[i] = float32(int64(seed)) / float32(math.MaxInt64)
		norm += float64(vector[i]) * float64(vector[i])
	}
	if norm == 0 {
		return vector, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vector {
		vector[i] *= scale
	}
	return vector, nil
}

// CachedEmbedder memoizes another embedder by text.
type CachedEmbedder struct {
	embedder TextEmbedder
	cache    *ristretto.Cache
}

// NewCachedEmbedder keeps roughly maxEntries vectors in memory.
func NewCachedEmbedder(embedder TextEmbedder, maxEntries int64) (*CachedEmbedder, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
		// Cost counts entries, not bytes.
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	return &CachedEmbedder{embedder: embedder, cache: cache}, nil
}

func (e *CachedEmbedder) Embed(text string) ([]float32, error) {
	if v, ok := e.cache.Get(text); ok {
		return slices.Clone(v.([]float32)), nil
	}
	vector, err := e.embedder.Embed(text)
	if err != nil {
		return nil, err
	}
	if e.cache.Set(text, slices.Clone(vector), 1) {
		e.cache.Wait()
	}
	return vector, nil
}

// Wait blocks until pending cache writes are visible to Embed.
func (e *CachedEmbedder) Wait() { e.cache.Wait() }

func (e *CachedEmbedder) Close() { e.cache.Close() }
