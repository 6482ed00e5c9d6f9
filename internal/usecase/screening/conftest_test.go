package screening

import (
	"context"
	"errors"
	"math"
	"sync"

	"github.com/kailas-cloud/screener/internal/domain"
	"github.com/kailas-cloud/screener/internal/domain/catalog"
	"github.com/kailas-cloud/screener/internal/domain/geo"
	"github.com/kailas-cloud/screener/internal/domain/search/filter"
	"github.com/kailas-cloud/screener/internal/domain/timeframe"
)

// --- Mocks ---

type mockCatalog struct {
	items  []catalog.Item
	err    error
	calls  int
	lastPr catalog.Predicate
}

// Query returns every item, ignoring the predicate, so tests prove the
// service re-applies it.
func (m *mockCatalog) Query(_ context.Context, pred catalog.Predicate) (catalog.QueryResult, error) {
	m.calls++
	m.lastPr = pred
	if m.err != nil {
		return catalog.QueryResult{}, m.err
	}
	out := make([]catalog.Item, len(m.items))
	copy(out, m.items)
	return catalog.QueryResult{Items: out, Total: len(out)}, nil
}

// cappedCatalog behaves like a search index: it honors the geo radius in the
// pushdown's should group, then returns at most max rows in stored order.
type cappedCatalog struct {
	items []catalog.Item
	max   int
}

func (c *cappedCatalog) Query(_ context.Context, pred catalog.Predicate) (catalog.QueryResult, error) {
	var matched []catalog.Item
	for i := range c.items {
		if matchesShould(pred.Expression().Should(), &c.items[i]) {
			matched = append(matched, c.items[i])
		}
	}
	res := catalog.QueryResult{Items: matched, Total: len(matched)}
	if len(matched) > c.max {
		res.Items = matched[:c.max]
		res.Truncated = true
	}
	return res, nil
}

func matchesShould(should []filter.Condition, it *catalog.Item) bool {
	if len(should) == 0 {
		return true
	}
	for _, cond := range should {
		switch {
		case cond.IsRadius():
			r := cond.Radius()
			if it.Coordinates != nil &&
				geo.Haversine(r.Lat(), r.Lon(), it.Coordinates.Latitude, it.Coordinates.Longitude) <= r.Km() {
				return true
			}
		case cond.IsMatch() && cond.Key() == catalog.FieldHasCoords:
			if (it.Coordinates == nil) == (cond.Match() == "0") {
				return true
			}
		}
	}
	return false
}

type mockEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	def     []float32
	errs    map[string]error
	err     error
	calls   []string
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, text)
	if err, ok := m.errs[text]; ok {
		return domain.EmbeddingResult{}, err
	}
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	if v, ok := m.vectors[text]; ok {
		return domain.EmbeddingResult{Embedding: v}, nil
	}
	return domain.EmbeddingResult{Embedding: m.def}, nil
}

func (m *mockEmbedder) called() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type mockGeocoder struct {
	mu     sync.Mutex
	points map[string]geo.Point
	err    error
	calls  map[string]int
}

func (m *mockGeocoder) Resolve(_ context.Context, location string) (geo.Point, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[location]++
	if m.err != nil {
		return geo.Point{}, false, m.err
	}
	p, ok := m.points[location]
	return p, ok, nil
}

var errProviderDown = errors.New("provider down")

// --- Fixtures ---

var (
	venice = geo.Point{Latitude: 45.4408, Longitude: 12.3155}
	rome   = geo.Point{Latitude: 41.9028, Longitude: 12.4964}
)

// unit vectors in 3 dimensions
var (
	vecX = []float32{1, 0, 0}
	vecY = []float32{0, 1, 0}
	vecZ = []float32{0, 0, 1}
)

func item(product, option string) catalog.Item {
	return catalog.Item{
		Identity: catalog.Identity{ProductID: product, OptionID: option, UnitID: "adult"},
		Title:    product + " " + option,
		Country:  "IT",
		Currency: "EUR",
	}
}

func withCoords(it catalog.Item, p geo.Point) catalog.Item {
	it.Coordinates = &p
	return it
}

func withEmbedding(it catalog.Item, v []float32) catalog.Item {
	it.Embedding = v
	return it
}

func withPrice(it catalog.Item, minor int64) catalog.Item {
	it.Price = minor
	return it
}

func withWindow(it catalog.Item, start, end timeframe.Date) catalog.Item {
	it.Availability = timeframe.Window{Start: &start, End: &end}
	return it
}

func candidates(items ...catalog.Item) []Candidate {
	out := make([]Candidate, len(items))
	for i, it := range items {
		out[i] = Candidate{Item: it}
	}
	return out
}

func distance(km float64) *float64 { return &km }

func intPtr(i int) *int       { return &i }
func int64Ptr(i int64) *int64 { return &i }
func strPtr(s string) *string { return &s }

// unitAt returns a 2-d unit vector whose cosine with [1, 0] is c.
func unitAt(c float64) []float32 {
	return []float32{float32(c), float32(math.Sqrt(1 - c*c))}
}

func ids(products []Candidate) []string {
	out := make([]string, len(products))
	for i, c := range products {
		out[i] = c.ProductID
	}
	return out
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Timeout = 0
	return cfg
}
