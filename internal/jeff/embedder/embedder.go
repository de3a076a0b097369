// Package embedder produces the vector representations the memory engine
// indexes and searches. Implementations cover the OpenAI embeddings API
// (production default), the Gemini API, and a deterministic offline embedder
// used for tests and keyless setups. Decorators add caching and retries.
//
// All embedders are safe for concurrent use.
package embedder

import (
	"context"
	"errors"

	"github.com/bdobrica/Jeff/internal/jeff/spend"
)

// ErrRateLimit is returned when the upstream embeddings API reports a
// rate-limiting condition (e.g. HTTP 429 Too Many Requests). The condition
// is transient; callers may retry after a backoff.
var ErrRateLimit = errors.New("embedder: upstream rate limit exceeded")

// Embedder produces a fixed-length vector embedding for a piece of text.
type Embedder interface {
	// Embed produces the embedding vector for text. Empty text yields a nil
	// vector with no error and no remote call.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dims is the dimensionality of every vector this embedder produces.
	Dims() int

	// Model names the underlying embedding model, used for spend metering
	// and diagnostics.
	Model() string
}

// Meter is the spend-guard hook consulted around every billable embedding
// call. Check runs before the remote request and may veto it; a non-nil
// error from RecordEmbedding (cap crossed by this call) aborts the operation
// that triggered the embedding, so nothing derived from it is persisted.
type Meter interface {
	Check(model string) error
	RecordEmbedding(model string, tokens int) (float64, error)
}

var _ Meter = (*spend.Guard)(nil)

// estimateTokens approximates the token count of text using the rough
// 4-characters-per-token heuristic. Used only when the upstream API does not
// report usage itself; precision does not matter for a throttle guard.
func estimateTokens(text string) int {
	n := len(text) / 4
	if n == 0 && len(text) > 0 {
		n = 1
	}
	return n
}
