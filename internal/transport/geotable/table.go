package geotable

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/screener/internal/domain/geo"
)

// DefaultCities is the built-in tourism city table.
var DefaultCities = map[string][2]float64{
	"venice":    {45.4408, 12.3155},
	"rome":      {41.9028, 12.4964},
	"florence":  {43.7696, 11.2558},
	"milan":     {45.4642, 9.1900},
	"naples":    {40.8518, 14.2681},
	"barcelona": {41.3851, 2.1734},
	"madrid":    {40.4168, -3.7038},
	"paris":     {48.8566, 2.3522},
	"london":    {51.5074, -0.1278},
	"amsterdam": {52.3676, 4.9041},
	"berlin":    {52.5200, 13.4050},
	"vienna":    {48.2082, 16.3738},
	"prague":    {50.0755, 14.4378},
	"lisbon":    {38.7223, -9.1393},
	"athens":    {37.9838, 23.7275},
}

// Geocoder resolves city names from a static table. It never fails; lookups
// are pure map reads, safe for concurrent use.
type Geocoder struct {
	cities map[string]geo.Point
}

// New builds a table geocoder from DefaultCities overlaid with extra entries.
// Names are matched case-insensitively.
func New(extra map[string][2]float64) (*Geocoder, error) {
	g := &Geocoder{cities: make(map[string]geo.Point, len(DefaultCities)+len(extra))}
	for _, src := range []map[string][2]float64{DefaultCities, extra} {
		for name, ll := range src {
			p, ok := geo.NewPoint(ll[0], ll[1])
			if !ok {
				return nil, fmt.Errorf("city %q: coordinates out of range: %v", name, ll)
			}
			key := normalize(name)
			if key == "" {
				return nil, fmt.Errorf("empty city name")
			}
			g.cities[key] = p
		}
	}
	return g, nil
}

// Resolve looks the location up by full string, then by its first
// comma-separated segment ("Venice, Italy" resolves as "venice").
func (g *Geocoder) Resolve(_ context.Context, location string) (geo.Point, bool, error) {
	key := normalize(location)
	if p, ok := g.cities[key]; ok {
		return p, true, nil
	}
	if head, _, found := strings.Cut(key, ","); found {
		if p, ok := g.cities[strings.TrimSpace(head)]; ok {
			return p, true, nil
		}
	}
	return geo.Point{}, false, nil
}

// Len returns the number of known cities.
func (g *Geocoder) Len() int { return len(g.cities) }

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
