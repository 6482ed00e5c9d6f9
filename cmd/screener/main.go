package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/screener/internal/config"
	dbRedis "github.com/kailas-cloud/screener/internal/db/redis"
	"github.com/kailas-cloud/screener/internal/domain"
	logpkg "github.com/kailas-cloud/screener/internal/logger"
	"github.com/kailas-cloud/screener/internal/metrics"
	catalogrepo "github.com/kailas-cloud/screener/internal/repository/catalog"
	"github.com/kailas-cloud/screener/internal/repository/embcache"
	"github.com/kailas-cloud/screener/internal/repository/geocache"
	"github.com/kailas-cloud/screener/internal/resilience"
	chiTransport "github.com/kailas-cloud/screener/internal/transport/chi"
	"github.com/kailas-cloud/screener/internal/transport/geotable"
	openaiEmb "github.com/kailas-cloud/screener/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/screener/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/screener/internal/usecase/health"
	screeninguc "github.com/kailas-cloud/screener/internal/usecase/screening"
	"github.com/kailas-cloud/screener/internal/version"
)

// catalogSource is what the screening service and health check need from a catalog.
type catalogSource interface {
	screeninguc.Catalog
	healthuc.CatalogPinger
}

// redisCatalog pairs the Redis catalog with the connection it pings.
type redisCatalog struct {
	*catalogrepo.RedisStore
	conn *dbRedis.Store
}

func (c redisCatalog) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx) //nolint:wrapcheck // already wrapped by the store
}

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting screener API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("catalog_source", cfg.Catalog.Source),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterScreeningMetrics()

	ctx := context.Background()

	// Redis backs the catalog and/or the embedding cache.
	var store *dbRedis.Store
	if cfg.Catalog.Source == config.CatalogSourceRedis || cfg.Embedding.Cache {
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create database store", zap.Error(err))
		}
		defer store.Close()

		if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Database not ready", zap.Error(err))
		}
		logger.Info("Connected to database")
	}

	catalog, err := buildCatalog(ctx, &cfg, store, logger)
	if err != nil {
		logger.Fatal("Failed to create catalog", zap.Error(err))
	}

	embedder := buildEmbedder(&cfg, store, logger)
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.Bool("cache", cfg.Embedding.Cache),
	)

	geocoder, err := buildGeocoder(&cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create geocoder", zap.Error(err))
	}

	pool, err := ants.NewPool(cfg.Geocoding.Workers)
	if err != nil {
		logger.Fatal("Failed to create geocoding pool", zap.Error(err))
	}
	defer pool.Release()

	screeningSvc := screeninguc.New(catalog, embedder, geocoder, pool, screeninguc.Config{
		ProximityRadiusKm:     cfg.Screening.ProximityRadiusKm,
		ExclusionThreshold:    cfg.Screening.SemanticExclusionThreshold,
		TopK:                  cfg.Screening.TopResultsCount,
		SimilarityWeight:      cfg.Screening.SimilarityWeight,
		PriceWeight:           cfg.Screening.PriceWeight,
		Dimensions:            cfg.Embedding.Dimensions,
		Timeout:               cfg.Screening.UpstreamTimeout(),
		DefaultCountry:        cfg.Screening.DefaultCountry,
		ComposePreferenceText: cfg.Screening.ComposePreferenceText,
	})
	healthSvc := healthuc.New(catalog, embedder)

	server := chiTransport.NewServer(screeningSvc, healthSvc)
	router := chiTransport.NewRouter(server, cfg.Auth.APIKeys, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

func buildCatalog(
	ctx context.Context, cfg *config.Config, store *dbRedis.Store, logger *zap.Logger,
) (catalogSource, error) {
	if cfg.Catalog.Source == config.CatalogSourceFile {
		mem, err := catalogrepo.LoadFile(cfg.Catalog.File, cfg.Embedding.Dimensions, logger)
		if err != nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}
		logger.Info("Catalog loaded from file",
			zap.String("file", cfg.Catalog.File),
			zap.Int("items", mem.Len()),
		)
		return mem, nil
	}

	rs := catalogrepo.NewRedisStore(store, catalogrepo.RedisConfig{
		KeyPrefix:     cfg.Database.KeyPrefix,
		IndexName:     cfg.Catalog.IndexName,
		PageSize:      cfg.Catalog.PageSize,
		MaxCandidates: cfg.Catalog.MaxCandidates,
	})
	// The service only reads; creating the index here lets an empty
	// deployment answer with an empty result instead of failing.
	if err := rs.EnsureIndex(ctx); err != nil {
		return nil, fmt.Errorf("ensure catalog index: %w", err)
	}
	return redisCatalog{RedisStore: rs, conn: store}, nil
}

// buildEmbedder assembles the decorator chain:
// OpenAI -> Instruction -> Breaker -> Cached -> Instrumented.
// The cache sits outside the breaker so hits are served while the provider is down.
func buildEmbedder(cfg *config.Config, store *dbRedis.Store, logger *zap.Logger) *embeddinguc.InstrumentedEmbedder {
	ec := cfg.Embedding

	// Base provider (with transport metrics built-in)
	var embedder domain.Embedder = openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     ec.APIKey,
		BaseURL:    ec.BaseURL,
		Model:      ec.Model,
		Dimensions: ec.Dimensions,
		Provider:   ec.Provider,
		Timeout:    cfg.Screening.UpstreamTimeout(),
		Logger:     logger,
	})

	if ec.QueryInstruction != "" {
		embedder = domain.NewInstructionEmbedder(embedder, ec.QueryInstruction)
	}

	embedder = resilience.NewEmbedder(embedder, breakerSettings("embedding", ec.Breaker), logger)

	if ec.Cache && store != nil {
		embedder = embcache.New(embedder, store, embcache.Config{
			KeyPrefix: cfg.Database.KeyPrefix,
			Model:     ec.Model,
			TTL:       time.Duration(ec.CacheTTLHours) * time.Hour,
		}, metrics.EmbeddingCacheTotal, logger)
	}

	return embeddinguc.NewInstrumentedEmbedder(embedder, ec.Provider, ec.Model, ec.Dimensions, logger)
}

// buildGeocoder assembles: city table -> Breaker -> Cache.
func buildGeocoder(cfg *config.Config, logger *zap.Logger) (*geocache.Cache, error) {
	table, err := geotable.New(cfg.Geocoding.Cities)
	if err != nil {
		return nil, fmt.Errorf("city table: %w", err)
	}
	logger.Info("Geocoder created", zap.Int("cities", table.Len()))

	guarded := resilience.NewGeocoder(table, breakerSettings("geocoder", cfg.Geocoding.Breaker), logger)
	return geocache.New(guarded, metrics.GeocodeLookupsTotal, logger,
		geocache.WithLookupTimeout(cfg.Screening.UpstreamTimeout())), nil
}

func breakerSettings(name string, b config.BreakerConfig) resilience.Settings {
	return resilience.Settings{
		Name:             name,
		MaxRequests:      b.MaxRequests,
		Interval:         time.Duration(b.IntervalSec) * time.Second,
		Timeout:          time.Duration(b.TimeoutSec) * time.Second,
		FailureThreshold: b.FailureThreshold,
	}
}
