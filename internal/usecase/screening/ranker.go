package screening

import (
	"context"
	"fmt"
	"sort"

	"github.com/kailas-cloud/screener/internal/domain/screening"
	"github.com/kailas-cloud/screener/internal/domain/vector"
)

// NeutralScore is assigned to every product when ranking falls back to
// distance and price ordering.
const NeutralScore = 0.5

// Ranker scores, deduplicates and truncates the surviving candidates.
type Ranker struct {
	embedder         Embedder
	similarityWeight float64
	priceWeight      float64
	topK             int
	dimensions       int
}

// NewRanker creates a Ranker.
func NewRanker(embedder Embedder, similarityWeight, priceWeight float64, topK, dimensions int) *Ranker {
	return &Ranker{
		embedder:         embedder,
		similarityWeight: similarityWeight,
		priceWeight:      priceWeight,
		topK:             topK,
		dimensions:       dimensions,
	}
}

type scored struct {
	Candidate
	score float64
}

// Rank orders candidates by combined preference similarity and price fit.
// An empty text ranks by distance then price. A failed preference embedding
// is returned alongside the fallback ordering so the caller can note it.
func (r *Ranker) Rank(
	ctx context.Context, in []Candidate, text string, priceMax *int64,
) ([]screening.Product, error) {
	if text == "" {
		return r.Fallback(in), nil
	}

	query, err := embedQuery(ctx, r.embedder, text, r.dimensions)
	if err != nil {
		return r.Fallback(in), fmt.Errorf("preference embedding: %w", err)
	}

	rows := make([]scored, len(in))
	for i, c := range in {
		sim := vector.Clamp(vector.Cosine(c.Embedding, query), 0, 1)
		combined := r.similarityWeight*sim + r.priceWeight*PriceScore(c.Price, priceMax)
		rows[i] = scored{Candidate: c, score: vector.Clamp(combined, 0, 1)}
	}
	return r.finish(rows), nil
}

// Fallback ranks by ascending distance (unknown last), then price, with a
// neutral score.
func (r *Ranker) Fallback(in []Candidate) []screening.Product {
	rows := make([]scored, len(in))
	for i, c := range in {
		rows[i] = scored{Candidate: c, score: NeutralScore}
	}
	return r.finish(rows)
}

// finish sorts, keeps the best row per product and truncates.
func (r *Ranker) finish(rows []scored) []screening.Product {
	sort.SliceStable(rows, func(i, j int) bool { return better(&rows[i], &rows[j]) })

	out := make([]screening.Product, 0, min(r.topK, len(rows)))
	seen := make(map[string]struct{}, len(rows))
	for i := range rows {
		if len(out) == r.topK {
			break
		}
		row := &rows[i]
		if _, dup := seen[row.ProductID]; dup {
			continue
		}
		seen[row.ProductID] = struct{}{}
		out = append(out, screening.Product{
			ProductID: row.ProductID,
			OptionID:  row.OptionID,
			UnitID:    row.UnitID,
			Score:     row.score,
		})
	}
	return out
}

// better orders by score desc, distance asc (unknown last), price asc, identity asc.
func better(a, b *scored) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	switch {
	case a.DistanceKm != nil && b.DistanceKm == nil:
		return true
	case a.DistanceKm == nil && b.DistanceKm != nil:
		return false
	case a.DistanceKm != nil && *a.DistanceKm != *b.DistanceKm:
		return *a.DistanceKm < *b.DistanceKm
	}
	if a.Price != b.Price {
		return a.Price < b.Price
	}
	return a.Identity.Less(b.Identity)
}

// PriceScore is 1 without a budget or for free items, 1-price/max within
// budget and 0 over budget.
func PriceScore(price int64, priceMax *int64) float64 {
	if priceMax == nil || *priceMax <= 0 || price <= 0 {
		return 1
	}
	if price > *priceMax {
		return 0
	}
	return vector.Clamp(1-float64(price)/float64(*priceMax), 0, 1)
}
