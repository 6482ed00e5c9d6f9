package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/screener/internal/config"
	dbRedis "github.com/kailas-cloud/screener/internal/db/redis"
	domcat "github.com/kailas-cloud/screener/internal/domain/catalog"
	logpkg "github.com/kailas-cloud/screener/internal/logger"
	catalogrepo "github.com/kailas-cloud/screener/internal/repository/catalog"
	"github.com/kailas-cloud/screener/internal/version"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "catalog-import",
		Usage:   "Load pre-embedded catalog rows into the screening index",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "JSON-lines file of flattened product/option/unit rows",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "env",
				Usage:   "Config environment (local, dev, prod)",
				Value:   config.GetEnv(),
				EnvVars: []string{"ENV"},
			},
			&cli.BoolFlag{
				Name:  "reset",
				Usage: "Drop the index and delete existing rows before loading",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Parse and validate rows without writing",
			},
			&cli.IntFlag{
				Name:  "batch-size",
				Usage: "Rows per write call",
				Value: 1000,
			},
		},
		Action: importAction,
	}
}

func importAction(c *cli.Context) error {
	if c.Int("batch-size") <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}

	env := c.String("env")
	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if len(cfg.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	path := filepath.Clean(c.String("file"))
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	ctx := context.Background()
	opts := importOptions{
		Reset:      c.Bool("reset"),
		DryRun:     c.Bool("dry-run"),
		BatchSize:  c.Int("batch-size"),
		Dimensions: cfg.Embedding.Dimensions,
	}

	var w catalogWriter = noopWriter{}
	if !opts.DryRun {
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
		if err != nil {
			return fmt.Errorf("create database store: %w", err)
		}
		defer store.Close()

		if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
			return fmt.Errorf("database not ready: %w", err)
		}
		w = catalogrepo.NewRedisStore(store, catalogrepo.RedisConfig{
			KeyPrefix: cfg.Database.KeyPrefix,
			IndexName: cfg.Catalog.IndexName,
		})
	}

	logger.Info("Importing catalog",
		zap.String("file", path),
		zap.String("index", cfg.Catalog.IndexName),
		zap.Bool("reset", opts.Reset),
		zap.Bool("dry_run", opts.DryRun),
	)

	start := time.Now()
	stats, err := importCatalog(ctx, f, w, opts, logger)
	if err != nil {
		return err
	}

	logger.Info("Catalog import finished",
		zap.Int("read", stats.Read),
		zap.Int("skipped", stats.Skipped),
		zap.Int("written", stats.Written),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// noopWriter backs dry runs.
type noopWriter struct{}

func (noopWriter) EnsureIndex(context.Context) error        { return nil }
func (noopWriter) Reset(context.Context) error              { return nil }
func (noopWriter) Put(context.Context, []domcat.Item) error { return nil }
