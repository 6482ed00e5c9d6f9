package catalog

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/screener/internal/db"
	domcat "github.com/kailas-cloud/screener/internal/domain/catalog"
	"github.com/kailas-cloud/screener/internal/logger"
)

const (
	defaultPageSize      = 500
	defaultMaxCandidates = 10000
	writeBatchSize       = 200
)

// store is the consumer interface for the catalog (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, keys ...string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchFiltered(ctx context.Context, q *db.FilterQuery) (*db.SearchResult, error)
}

// RedisConfig configures the Redis-backed catalog.
type RedisConfig struct {
	KeyPrefix     string
	IndexName     string
	PageSize      int
	MaxCandidates int
}

// RedisStore keeps catalog items as hashes under one FT index and pushes
// compiled predicates down as FT.SEARCH filters.
type RedisStore struct {
	store         store
	itemPrefix    string
	indexName     string
	pageSize      int
	maxCandidates int
}

// NewRedisStore creates a Redis-backed catalog store.
func NewRedisStore(s store, cfg RedisConfig) *RedisStore {
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = defaultMaxCandidates
	}
	return &RedisStore{
		store:         s,
		itemPrefix:    cfg.KeyPrefix + "item:",
		indexName:     cfg.IndexName,
		pageSize:      cfg.PageSize,
		maxCandidates: cfg.MaxCandidates,
	}
}

// IndexDefinition returns the FT schema covering every pushdown field.
func (r *RedisStore) IndexDefinition() *db.IndexDefinition {
	return db.NewIndex(r.indexName).
		Prefix(r.itemPrefix).
		Tag(domcat.FieldProductID, domcat.FieldOptionID, domcat.FieldUnitID, domcat.FieldCountry, domcat.FieldHasCoords).
		Numeric(domcat.FieldStartDay, domcat.FieldEndDay, domcat.FieldMinAge, domcat.FieldMaxAge, domcat.FieldMaxPax).
		Geo(domcat.FieldGeo).
		MustBuild()
}

// EnsureIndex creates the catalog index unless it already exists.
func (r *RedisStore) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, r.indexName)
	if err != nil {
		return fmt.Errorf("check index %s: %w", r.indexName, err)
	}
	if exists {
		return nil
	}
	if err := r.store.CreateIndex(ctx, r.IndexDefinition()); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index %s: %w", r.indexName, err)
	}
	return nil
}

// Reset drops the index and deletes every stored item.
func (r *RedisStore) Reset(ctx context.Context) error {
	if err := r.store.DropIndex(ctx, r.indexName); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop index %s: %w", r.indexName, err)
	}
	keys, err := r.store.Scan(ctx, r.itemPrefix+"*")
	if err != nil {
		return fmt.Errorf("scan items: %w", err)
	}
	for start := 0; start < len(keys); start += writeBatchSize {
		end := min(start+writeBatchSize, len(keys))
		if err := r.store.Del(ctx, keys[start:end]...); err != nil {
			return fmt.Errorf("delete items: %w", err)
		}
	}
	return nil
}

// Put writes items in pipelined batches. Existing rows are overwritten.
func (r *RedisStore) Put(ctx context.Context, items []domcat.Item) error {
	batch := make([]db.HashSetItem, 0, writeBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := r.store.HSetMulti(ctx, batch); err != nil {
			return fmt.Errorf("write items: %w", err)
		}
		batch = batch[:0]
		return nil
	}

	for i := range items {
		if err := items[i].Identity.Validate(); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
		batch = append(batch, db.HashSetItem{
			Key:    r.itemKey(items[i].Identity),
			Fields: buildHashFields(&items[i]),
		})
		if len(batch) == writeBatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

// Get returns a single item by identity.
func (r *RedisStore) Get(ctx context.Context, id domcat.Identity) (domcat.Item, error) {
	key := r.itemKey(id)
	m, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return domcat.Item{}, fmt.Errorf("hgetall %s: %w", key, err)
	}
	return parseHashFields(m)
}

// Query pages through FT.SEARCH with the predicate's pushdown expression.
// At most maxCandidates items are returned, in store order; the result says
// when more rows matched. Undecodable rows are skipped.
func (r *RedisStore) Query(ctx context.Context, pred domcat.Predicate) (domcat.QueryResult, error) {
	log := logger.FromContext(ctx)
	q := &db.FilterQuery{
		IndexName: r.indexName,
		Filters:   pred.Expression(),
		Limit:     min(r.pageSize, r.maxCandidates),
	}

	var out domcat.QueryResult
	for {
		res, err := r.store.SearchFiltered(ctx, q)
		if err != nil {
			return domcat.QueryResult{}, fmt.Errorf("search %s: %w", r.indexName, err)
		}
		out.Total = res.Total
		for _, e := range res.Entries {
			it, err := parseHashFields(e.Fields)
			if err != nil {
				log.Warn("skipping malformed catalog row", zap.String("key", e.Key), zap.Error(err))
				continue
			}
			out.Items = append(out.Items, it)
		}

		q.Offset += len(res.Entries)
		if len(res.Entries) == 0 || q.Offset >= res.Total {
			break
		}
		if q.Offset >= r.maxCandidates {
			out.Truncated = true
			break
		}
		q.Limit = min(r.pageSize, r.maxCandidates-q.Offset)
	}

	if len(out.Items) > r.maxCandidates {
		out.Items = out.Items[:r.maxCandidates]
		out.Truncated = true
	}
	if out.Truncated {
		log.Warn("catalog query truncated",
			zap.Int("total", out.Total), zap.Int("max_candidates", r.maxCandidates))
	}
	return out, nil
}

func (r *RedisStore) itemKey(id domcat.Identity) string {
	return r.itemPrefix + id.ProductID + ":" + id.OptionID + ":" + id.UnitID
}
