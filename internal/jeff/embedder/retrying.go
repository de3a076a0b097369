package embedder

import (
	"context"
	"errors"
	"net/url"

	"github.com/bdobrica/Jeff/common/retry"
)

// Retrying wraps an Embedder with bounded exponential-backoff retries for
// transient failures. Spend-cap vetoes and API-level rejections are not
// retried: waiting does not refill a daily budget or fix a bad request.
type Retrying struct {
	inner Embedder
	cfg   retry.Config
}

// NewRetrying wraps inner with the given retry policy. A nil
// cfg.ShouldRetry installs the default transient-error predicate, which
// retries rate limits and transport-level failures only.
func NewRetrying(inner Embedder, cfg retry.Config) *Retrying {
	if cfg.ShouldRetry == nil {
		cfg.ShouldRetry = transientError
	}
	return &Retrying{inner: inner, cfg: cfg}
}

// transientError reports whether err is worth another attempt: an upstream
// rate limit or an HTTP transport failure (connection refused, timeout).
func transientError(err error) bool {
	if errors.Is(err, ErrRateLimit) {
		return true
	}
	var uerr *url.Error
	return errors.As(err, &uerr)
}

// Embed delegates to the wrapped embedder, retrying per the configured
// policy until the context is cancelled or attempts run out.
func (r *Retrying) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := retry.Do(ctx, r.cfg, func() error {
		var embedErr error
		vec, embedErr = r.inner.Embed(ctx, text)
		return embedErr
	})
	if err != nil {
		return nil, err
	}
	return vec, nil
}

// Dims returns the wrapped embedder's dimensionality.
func (r *Retrying) Dims() int {
	return r.inner.Dims()
}

// Model returns the wrapped embedder's model name.
func (r *Retrying) Model() string {
	return r.inner.Model()
}

// Compile-time interface satisfaction check.
var _ Embedder = (*Retrying)(nil)
