package catalog

import (
	"context"
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"

	domcat "github.com/kailas-cloud/screener/internal/domain/catalog"
)

// MemoryStore serves a catalog held entirely in memory. Items are immutable
// after construction, so concurrent queries need no locking.
type MemoryStore struct {
	items []domcat.Item
}

// NewMemoryStore creates a store over a copy of items, ordered by identity.
func NewMemoryStore(items []domcat.Item) *MemoryStore {
	cp := make([]domcat.Item, len(items))
	copy(cp, items)
	sort.SliceStable(cp, func(i, j int) bool { return cp[i].Identity.Less(cp[j].Identity) })
	return &MemoryStore{items: cp}
}

// LoadFile reads a JSON-lines catalog export into a MemoryStore. Rows whose
// embedding does not have dims components are dropped with a warning.
func LoadFile(path string, dims int, logger *zap.Logger) (*MemoryStore, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("open catalog file: %w", err)
	}
	defer func() { _ = f.Close() }()

	items, err := ReadItems(f)
	if err != nil {
		return nil, fmt.Errorf("read catalog file %s: %w", path, err)
	}
	items, skipped := KeepDimensions(items, dims, logger)
	if skipped > 0 {
		logger.Warn("Catalog rows dropped", zap.String("file", path), zap.Int("skipped", skipped))
	}
	return NewMemoryStore(items), nil
}

// Query evaluates the predicate in-process. The result is never truncated.
func (m *MemoryStore) Query(ctx context.Context, pred domcat.Predicate) (domcat.QueryResult, error) {
	if err := ctx.Err(); err != nil {
		return domcat.QueryResult{}, fmt.Errorf("query catalog: %w", err)
	}
	items := pred.Filter(m.items)
	return domcat.QueryResult{Items: items, Total: len(items)}, nil
}

// Len returns the number of items held.
func (m *MemoryStore) Len() int { return len(m.items) }

// Ping always succeeds; the catalog is in memory.
func (m *MemoryStore) Ping(context.Context) error { return nil }
