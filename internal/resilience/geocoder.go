package resilience

import (
	"context"
	"fmt"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/screener/internal/domain"
	"github.com/kailas-cloud/screener/internal/domain/geo"
)

// Resolver resolves free-text locations to coordinates.
type Resolver interface {
	Resolve(ctx context.Context, location string) (p geo.Point, ok bool, err error)
}

type resolution struct {
	point geo.Point
	ok    bool
}

// Geocoder guards a Resolver with a circuit breaker. Unknown locations are
// answers, not failures, and never count against the breaker.
type Geocoder struct {
	inner Resolver
	cb    *gobreaker.CircuitBreaker[resolution]
}

// NewGeocoder wraps inner with a breaker configured by s.
func NewGeocoder(inner Resolver, s Settings, logger *zap.Logger) *Geocoder {
	if s.Name == "" {
		s.Name = "geocoder"
	}
	return &Geocoder{inner: inner, cb: newBreaker[resolution](s, logger)}
}

// Resolve delegates to the inner resolver unless the breaker is open.
func (g *Geocoder) Resolve(ctx context.Context, location string) (geo.Point, bool, error) {
	res, err := g.cb.Execute(func() (resolution, error) {
		p, ok, err := g.inner.Resolve(ctx, location)
		return resolution{point: p, ok: ok}, err
	})
	if err != nil {
		if isRejected(err) {
			return geo.Point{}, false, fmt.Errorf("%s: %w: %w: %w",
				g.cb.Name(), domain.ErrGeocoderUnavailable, domain.ErrUpstreamUnavailable, err)
		}
		return geo.Point{}, false, err //nolint:wrapcheck // transparent decorator
	}
	return res.point, res.ok, nil
}

// State returns the breaker state.
func (g *Geocoder) State() gobreaker.State { return g.cb.State() }
