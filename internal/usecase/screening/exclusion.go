package screening

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/screener/internal/domain"
	"github.com/kailas-cloud/screener/internal/domain/constraints"
	"github.com/kailas-cloud/screener/internal/domain/vector"
)

// ExclusionFilter removes candidates semantically close to the traveler's
// exclusion terms. All groups are embedded together as one text.
type ExclusionFilter struct {
	embedder   Embedder
	threshold  float64
	dimensions int
}

// NewExclusionFilter creates an ExclusionFilter. dimensions <= 0 disables the
// query dimension check.
func NewExclusionFilter(embedder Embedder, threshold float64, dimensions int) *ExclusionFilter {
	return &ExclusionFilter{embedder: embedder, threshold: threshold, dimensions: dimensions}
}

// Apply drops every candidate whose cosine similarity to the exclusion
// embedding exceeds the threshold. Candidates whose embedding is missing or
// has another dimension cannot be proven safe and are dropped too; their
// count is returned as unverifiable. An embedding failure is returned and
// the caller decides how to degrade.
func (f *ExclusionFilter) Apply(
	ctx context.Context, in []Candidate, ex constraints.SemanticExclusions,
) (out []Candidate, unverifiable int, err error) {
	text := ex.Text()
	if text == "" {
		return in, 0, nil
	}

	query, err := embedQuery(ctx, f.embedder, text, f.dimensions)
	if err != nil {
		return nil, 0, fmt.Errorf("exclusion embedding: %w", err)
	}

	out = make([]Candidate, 0, len(in))
	for _, c := range in {
		if len(c.Embedding) != len(query) {
			unverifiable++
			continue
		}
		if vector.Cosine(c.Embedding, query) > f.threshold {
			continue
		}
		out = append(out, c)
	}
	return out, unverifiable, nil
}

// embedQuery embeds text and rejects vectors of the wrong dimension.
func embedQuery(ctx context.Context, e Embedder, text string, dims int) ([]float32, error) {
	if e == nil {
		return nil, domain.ErrEmbeddingProviderError
	}
	res, err := e.Embed(ctx, text)
	if err != nil {
		return nil, err //nolint:wrapcheck // wrapped by callers
	}
	if len(res.Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding", domain.ErrEmbeddingProviderError)
	}
	if dims > 0 && len(res.Embedding) != dims {
		return nil, fmt.Errorf("%w: got %d, want %d", domain.ErrVectorDimMismatch, len(res.Embedding), dims)
	}
	return res.Embedding, nil
}
