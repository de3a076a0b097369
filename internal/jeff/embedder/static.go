package embedder

import (
	"context"
	"hash/fnv"
	"math"
)

const (
	defaultStaticDims = 256
	staticModelName   = "static-fnv"
)

// Static is a deterministic offline embedder: the vector is derived from an
// FNV-1a hash of the text fed through a 64-bit LCG, then normalized to unit
// length. Identical text always yields the identical vector, so exact
// re-queries rank their chunk at distance zero.
//
// It has no semantic awareness whatsoever. It exists for keyless setups and
// tests, where the engine's mechanics matter more than retrieval quality.
type Static struct {
	dims int
}

// NewStatic returns a Static embedder producing dims-length vectors. Values
// <= 0 use defaultStaticDims.
func NewStatic(dims int) *Static {
	if dims <= 0 {
		dims = defaultStaticDims
	}
	return &Static{dims: dims}
}

// Embed derives a unit-length vector from the text. Never fails and never
// leaves the process.
func (s *Static) Embed(_ context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, nil
	}

	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, s.dims)
	var norm float64
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		v := float32(int64(seed)) / float32(math.MaxInt64)
		vec[i] = v
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec, nil
}

// Dims returns the configured vector dimensionality.
func (s *Static) Dims() int {
	return s.dims
}

// Model returns the static embedder's pseudo-model name.
func (s *Static) Model() string {
	return staticModelName
}

// Compile-time interface satisfaction check.
var _ Embedder = (*Static)(nil)
