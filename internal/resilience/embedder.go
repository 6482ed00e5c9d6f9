package resilience

import (
	"context"
	"fmt"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/screener/internal/domain"
)

// Embedder guards an embedding provider with a circuit breaker. While the
// breaker is open, calls fail fast with domain.ErrUpstreamUnavailable.
type Embedder struct {
	inner domain.Embedder
	cb    *gobreaker.CircuitBreaker[domain.EmbeddingResult]
}

// NewEmbedder wraps inner with a breaker configured by s.
func NewEmbedder(inner domain.Embedder, s Settings, logger *zap.Logger) *Embedder {
	if s.Name == "" {
		s.Name = "embedding"
	}
	return &Embedder{inner: inner, cb: newBreaker[domain.EmbeddingResult](s, logger)}
}

// Embed delegates to the inner embedder unless the breaker is open.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := e.cb.Execute(func() (domain.EmbeddingResult, error) {
		return e.inner.Embed(ctx, text)
	})
	if err != nil {
		if isRejected(err) {
			return domain.EmbeddingResult{}, fmt.Errorf("%s: %w: %w: %w",
				e.cb.Name(), domain.ErrEmbeddingProviderError, domain.ErrUpstreamUnavailable, err)
		}
		return domain.EmbeddingResult{}, err //nolint:wrapcheck // transparent decorator
	}
	return res, nil
}

// HealthCheck reports an open breaker as unhealthy, otherwise forwards.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if e.cb.State() == gobreaker.StateOpen {
		return fmt.Errorf("%s: circuit open: %w", e.cb.Name(), domain.ErrUpstreamUnavailable)
	}
	if hc, ok := e.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
	}
	return nil
}

// State returns the breaker state.
func (e *Embedder) State() gobreaker.State { return e.cb.State() }
