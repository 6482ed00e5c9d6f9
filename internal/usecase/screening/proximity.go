package screening

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/kailas-cloud/screener/internal/domain"
	"github.com/kailas-cloud/screener/internal/domain/catalog"
	"github.com/kailas-cloud/screener/internal/domain/geo"
)

// Candidate is a catalog item travelling through the pipeline.
type Candidate struct {
	catalog.Item
	// DistanceKm from the reference point; nil when proximity did not run.
	DistanceKm *float64
}

// ProximityFilter removes candidates farther than the radius from a reference point.
type ProximityFilter struct {
	geocoder Geocoder
	pool     *ants.Pool
	radiusKm float64
}

// NewProximityFilter creates a ProximityFilter. A nil pool resolves
// locations sequentially; a nil geocoder leaves coordinate-less items unresolved.
func NewProximityFilter(geocoder Geocoder, pool *ants.Pool, radiusKm float64) *ProximityFilter {
	return &ProximityFilter{geocoder: geocoder, pool: pool, radiusKm: radiusKm}
}

// RadiusKm returns the configured radius.
func (f *ProximityFilter) RadiusKm() float64 { return f.radiusKm }

// Apply keeps candidates within the radius of ref and records their distance.
// Candidates whose coordinates cannot be resolved are dropped. A geocoder
// failure is returned wrapped in domain.ErrGeocoderUnavailable and the input
// is left untouched.
func (f *ProximityFilter) Apply(ctx context.Context, in []Candidate, ref geo.Point) ([]Candidate, error) {
	resolved, err := f.resolveAll(ctx, in)
	if err != nil {
		return nil, err
	}

	out := make([]Candidate, 0, len(in))
	for _, c := range in {
		p, ok := coordinatesOf(&c.Item, resolved)
		if !ok {
			continue
		}
		d := geo.DistanceKm(ref, p)
		if d > f.radiusKm {
			continue
		}
		c.DistanceKm = &d
		out = append(out, c)
	}
	return out, nil
}

type resolution struct {
	point geo.Point
	ok    bool
}

func coordinatesOf(it *catalog.Item, resolved map[string]resolution) (geo.Point, bool) {
	if it.Coordinates != nil {
		return *it.Coordinates, true
	}
	r, found := resolved[it.Location]
	if !found {
		return geo.Point{}, false
	}
	return r.point, r.ok
}

// resolveAll geocodes each distinct location of coordinate-less candidates once.
func (f *ProximityFilter) resolveAll(ctx context.Context, in []Candidate) (map[string]resolution, error) {
	var locations []string
	seen := make(map[string]struct{})
	for i := range in {
		if in[i].Coordinates != nil || in[i].Location == "" {
			continue
		}
		if _, ok := seen[in[i].Location]; ok {
			continue
		}
		seen[in[i].Location] = struct{}{}
		locations = append(locations, in[i].Location)
	}

	resolved := make(map[string]resolution, len(locations))
	if len(locations) == 0 || f.geocoder == nil {
		return resolved, nil
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
	)
	lookup := func(loc string) {
		defer wg.Done()
		p, ok, err := f.geocoder.Resolve(ctx, loc)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("resolve %q: %w", loc, err)
			}
			return
		}
		resolved[loc] = resolution{point: p, ok: ok}
	}

	for _, loc := range locations {
		wg.Add(1)
		if f.pool == nil {
			lookup(loc)
			continue
		}
		if err := f.pool.Submit(func() { lookup(loc) }); err != nil {
			// Pool closed or overloaded: resolve inline.
			lookup(loc)
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrGeocoderUnavailable, firstErr)
	}
	return resolved, nil
}
