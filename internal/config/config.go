package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the screener service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Geocoding GeocodingConfig `yaml:"geocoding"`
	Screening ScreeningConfig `yaml:"screening"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds Redis/Valkey connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	KeyPrefix        string   `yaml:"key_prefix"`
}

// Catalog sources.
const (
	CatalogSourceRedis = "redis"
	CatalogSourceFile  = "file"
)

// CatalogConfig selects and tunes the catalog store.
type CatalogConfig struct {
	Source        string `yaml:"source"` // redis (default) | file
	File          string `yaml:"file"`   // JSON lines of flattened rows, source=file
	IndexName     string `yaml:"index_name"`
	PageSize      int    `yaml:"page_size"`
	MaxCandidates int    `yaml:"max_candidates"`
}

// BreakerConfig holds circuit breaker settings for an upstream.
type BreakerConfig struct {
	MaxRequests      uint32 `yaml:"max_requests"`      // half-open probes
	IntervalSec      int    `yaml:"interval_sec"`      // closed-state counter reset
	TimeoutSec       int    `yaml:"timeout_sec"`       // open -> half-open
	FailureThreshold uint32 `yaml:"failure_threshold"` // consecutive failures to trip
}

// EmbeddingConfig holds the query embedding provider settings.
type EmbeddingConfig struct {
	Provider         string        `yaml:"provider"`
	APIKey           string        `yaml:"api_key"`
	BaseURL          string        `yaml:"base_url"`
	Model            string        `yaml:"model"`
	Dimensions       int           `yaml:"dimensions"`
	QueryInstruction string        `yaml:"query_instruction"`
	Cache            bool          `yaml:"cache"`
	CacheTTLHours    int           `yaml:"cache_ttl_hours"`
	Breaker          BreakerConfig `yaml:"breaker"`
}

// GeocodingConfig holds the city table geocoder settings.
type GeocodingConfig struct {
	Cities  map[string][2]float64 `yaml:"cities"` // name -> [lat, lon], merged over built-ins
	Workers int                   `yaml:"workers"`
	Breaker BreakerConfig         `yaml:"breaker"`
}

// ScreeningConfig holds the pipeline tunables.
type ScreeningConfig struct {
	ProximityRadiusKm          float64 `yaml:"proximity_radius_km"`
	SemanticExclusionThreshold float64 `yaml:"semantic_exclusion_threshold"`
	TopResultsCount            int     `yaml:"top_results_count"`
	SimilarityWeight           float64 `yaml:"similarity_weight"`
	PriceWeight                float64 `yaml:"price_weight"`
	UpstreamTimeoutMs          int     `yaml:"upstream_timeout_ms"`
	DefaultCountry             string  `yaml:"default_country"`
	ComposePreferenceText      bool    `yaml:"compose_preference_text"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Database.KeyPrefix == "" {
		c.Database.KeyPrefix = "screener:"
	}
	if c.Catalog.Source == "" {
		c.Catalog.Source = CatalogSourceRedis
	}
	if c.Catalog.IndexName == "" {
		c.Catalog.IndexName = "catalog"
	}
	if c.Catalog.PageSize <= 0 {
		c.Catalog.PageSize = 500
	}
	if c.Catalog.MaxCandidates <= 0 {
		c.Catalog.MaxCandidates = 10000
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 384
	}
	if c.Embedding.CacheTTLHours <= 0 {
		c.Embedding.CacheTTLHours = 24 * 7
	}
	c.Embedding.Breaker.applyDefaults()
	c.Geocoding.Breaker.applyDefaults()
	if c.Geocoding.Workers <= 0 {
		c.Geocoding.Workers = 8
	}
	if c.Screening.ProximityRadiusKm == 0 {
		c.Screening.ProximityRadiusKm = 20.0
	}
	if c.Screening.SemanticExclusionThreshold == 0 {
		c.Screening.SemanticExclusionThreshold = 0.7
	}
	if c.Screening.TopResultsCount == 0 {
		c.Screening.TopResultsCount = 5
	}
	if c.Screening.SimilarityWeight == 0 && c.Screening.PriceWeight == 0 {
		c.Screening.SimilarityWeight = 0.8
		c.Screening.PriceWeight = 0.2
	}
	if c.Screening.UpstreamTimeoutMs <= 0 {
		c.Screening.UpstreamTimeoutMs = 5000
	}
	c.Screening.DefaultCountry = strings.ToUpper(strings.TrimSpace(c.Screening.DefaultCountry))
}

func (b *BreakerConfig) applyDefaults() {
	if b.MaxRequests == 0 {
		b.MaxRequests = 1
	}
	if b.IntervalSec <= 0 {
		b.IntervalSec = 60
	}
	if b.TimeoutSec <= 0 {
		b.TimeoutSec = 30
	}
	if b.FailureThreshold == 0 {
		b.FailureThreshold = 5
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Catalog.Source {
	case CatalogSourceRedis:
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for catalog.source %q", c.Catalog.Source)
		}
	case CatalogSourceFile:
		if c.Catalog.File == "" {
			return fmt.Errorf("catalog.file is required for catalog.source %q", c.Catalog.Source)
		}
	default:
		return fmt.Errorf("catalog.source must be %q or %q, got %q",
			CatalogSourceRedis, CatalogSourceFile, c.Catalog.Source)
	}
	if c.Embedding.Cache && len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required when embedding.cache is enabled")
	}
	return c.Screening.validate()
}

func (s *ScreeningConfig) validate() error {
	if s.ProximityRadiusKm <= 0 {
		return fmt.Errorf("screening.proximity_radius_km must be positive, got %v", s.ProximityRadiusKm)
	}
	if s.SemanticExclusionThreshold <= 0 || s.SemanticExclusionThreshold > 1 {
		return fmt.Errorf("screening.semantic_exclusion_threshold must be in (0, 1], got %v",
			s.SemanticExclusionThreshold)
	}
	if s.TopResultsCount < 1 || s.TopResultsCount > 50 {
		return fmt.Errorf("screening.top_results_count must be between 1 and 50, got %d", s.TopResultsCount)
	}
	if s.SimilarityWeight < 0 || s.PriceWeight < 0 ||
		math.Abs(s.SimilarityWeight+s.PriceWeight-1) > 1e-9 {
		return fmt.Errorf("screening weights must be non-negative and sum to 1, got %v + %v",
			s.SimilarityWeight, s.PriceWeight)
	}
	if s.DefaultCountry != "" && len(s.DefaultCountry) != 2 {
		return fmt.Errorf("screening.default_country must be an ISO-2 code, got %q", s.DefaultCountry)
	}
	return nil
}

// UpstreamTimeout returns the per-call timeout as a duration.
func (s *ScreeningConfig) UpstreamTimeout() time.Duration {
	return time.Duration(s.UpstreamTimeoutMs) * time.Millisecond
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
