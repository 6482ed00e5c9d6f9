package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/kailas-cloud/screener/internal/db"
	domcat "github.com/kailas-cloud/screener/internal/domain/catalog"
	"github.com/kailas-cloud/screener/internal/domain/geo"
	"github.com/kailas-cloud/screener/internal/domain/timeframe"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hsetMultiFn   func(ctx context.Context, items []db.HashSetItem) error
	hgetAllFn     func(ctx context.Context, key string) (map[string]string, error)
	delFn         func(ctx context.Context, keys ...string) error
	scanFn        func(ctx context.Context, pattern string) ([]string, error)
	createIndexFn func(ctx context.Context, def *db.IndexDefinition) error
	dropIndexFn   func(ctx context.Context, name string) error
	indexExistsFn func(ctx context.Context, name string) (bool, error)
	searchFn      func(ctx context.Context, q *db.FilterQuery) (*db.SearchResult, error)

	queries []db.FilterQuery
}

func (m *mockStore) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if m.hsetMultiFn != nil {
		return m.hsetMultiFn(ctx, items)
	}
	return nil
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockStore) Del(ctx context.Context, keys ...string) error {
	if m.delFn != nil {
		return m.delFn(ctx, keys...)
	}
	return nil
}

func (m *mockStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	if m.scanFn != nil {
		return m.scanFn(ctx, pattern)
	}
	return nil, nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) DropIndex(ctx context.Context, name string) error {
	if m.dropIndexFn != nil {
		return m.dropIndexFn(ctx, name)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return false, nil
}

func (m *mockStore) SearchFiltered(ctx context.Context, q *db.FilterQuery) (*db.SearchResult, error) {
	m.queries = append(m.queries, *q)
	if m.searchFn != nil {
		return m.searchFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func newTestRedisStore(t *testing.T, cfg RedisConfig) (*RedisStore, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	if cfg.IndexName == "" {
		cfg.IndexName = "catalog"
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "screener:"
	}
	return NewRedisStore(ms, cfg), ms
}

func intPtr(v int) *int { return &v }

func datePtr(y int, m time.Month, d int) *timeframe.Date {
	dt := timeframe.NewDate(y, m, d)
	return &dt
}

func fullItem() domcat.Item {
	p := geo.Point{Latitude: 45.4408, Longitude: 12.3155}
	return domcat.Item{
		Identity:    domcat.Identity{ProductID: "p1", OptionID: "o1", UnitID: "u1"},
		Title:       "Gondola ride",
		Country:     "IT",
		Location:    "Venice",
		Coordinates: &p,
		Availability: timeframe.Window{
			Start: datePtr(2025, time.June, 1),
			End:   datePtr(2025, time.September, 30),
		},
		MinAge:    intPtr(6),
		MaxAge:    intPtr(99),
		MaxPax:    intPtr(4),
		Price:     8500,
		Currency:  "EUR",
		Embedding: []float32{0.25, -0.5, 1},
	}
}

func bareItem(pid string) domcat.Item {
	return domcat.Item{Identity: domcat.Identity{ProductID: pid, OptionID: "o", UnitID: "u"}}
}

// hashEntry builds a search entry as the store would return it.
func hashEntry(key string, it domcat.Item) db.SearchEntry {
	return db.SearchEntry{Key: key, Fields: buildHashFields(&it)}
}
