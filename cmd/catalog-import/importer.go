package main

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	domcat "github.com/kailas-cloud/screener/internal/domain/catalog"
	catalogrepo "github.com/kailas-cloud/screener/internal/repository/catalog"
)

// catalogWriter is the part of the Redis catalog the importer drives.
type catalogWriter interface {
	EnsureIndex(ctx context.Context) error
	Reset(ctx context.Context) error
	Put(ctx context.Context, items []domcat.Item) error
}

type importOptions struct {
	Reset      bool
	DryRun     bool
	BatchSize  int
	Dimensions int
}

type importStats struct {
	Read    int
	Skipped int
	Written int
}

// importCatalog reads JSON-lines rows from r and writes them to w.
// Rows whose embedding is missing or of the wrong dimension are skipped.
func importCatalog(
	ctx context.Context, r io.Reader, w catalogWriter, opts importOptions, logger *zap.Logger,
) (importStats, error) {
	var stats importStats

	items, err := catalogrepo.ReadItems(r)
	if err != nil {
		return stats, fmt.Errorf("read catalog: %w", err)
	}
	stats.Read = len(items)

	valid, skipped := catalogrepo.KeepDimensions(items, opts.Dimensions, logger)
	stats.Skipped = skipped

	if opts.DryRun {
		logger.Info("Dry run, nothing written", zap.Int("valid", len(valid)))
		return stats, nil
	}

	if opts.Reset {
		if err := w.Reset(ctx); err != nil {
			return stats, fmt.Errorf("reset catalog: %w", err)
		}
		logger.Info("Catalog reset")
	}
	if err := w.EnsureIndex(ctx); err != nil {
		return stats, fmt.Errorf("ensure index: %w", err)
	}

	batch := opts.BatchSize
	if batch <= 0 {
		batch = len(valid)
	}
	for start := 0; start < len(valid); start += batch {
		end := min(start+batch, len(valid))
		if err := w.Put(ctx, valid[start:end]); err != nil {
			return stats, fmt.Errorf("write rows %d-%d: %w", start, end-1, err)
		}
		stats.Written = end
		logger.Info("Rows written", zap.Int("written", stats.Written), zap.Int("total", len(valid)))
	}
	return stats, nil
}
