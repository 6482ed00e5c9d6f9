package screening

import (
	"context"

	"github.com/kailas-cloud/screener/internal/domain"
	"github.com/kailas-cloud/screener/internal/domain/catalog"
	"github.com/kailas-cloud/screener/internal/domain/geo"
)

// Catalog queries catalog items matching a compiled predicate.
// Stores may push the predicate's expression down; the service re-applies
// the in-process predicate to every returned item. A store that caps its
// result sets QueryResult.Truncated.
type Catalog interface {
	Query(ctx context.Context, pred catalog.Predicate) (catalog.QueryResult, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Geocoder resolves free-text locations to coordinates.
// ok=false with a nil error means the location is unknown.
type Geocoder interface {
	Resolve(ctx context.Context, location string) (p geo.Point, ok bool, err error)
}
