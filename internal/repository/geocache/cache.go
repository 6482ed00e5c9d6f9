package geocache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/screener/internal/domain/geo"
)

// Resolver resolves free-text locations to coordinates.
// ok=false with a nil error means the location is unknown.
type Resolver interface {
	Resolve(ctx context.Context, location string) (p geo.Point, ok bool, err error)
}

type entry struct {
	point geo.Point
	ok    bool
}

// DefaultLookupTimeout bounds one shared upstream lookup.
const DefaultLookupTimeout = 5 * time.Second

// Option configures a Cache.
type Option func(*Cache)

// WithLookupTimeout sets the bound on one shared upstream lookup.
func WithLookupTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// Cache memoizes a Resolver by normalized location string. Both resolved
// and unresolved answers are kept for the process lifetime; errors are not.
// Concurrent misses for one key share a single upstream call, which is
// detached from any one caller's cancellation.
type Cache struct {
	inner   Resolver
	lookups *prometheus.CounterVec
	logger  *zap.Logger
	timeout time.Duration

	mu      sync.RWMutex
	entries map[string]entry
	group   singleflight.Group
}

// New creates a geocode cache.
// lookups is a counter vec with label "result", passed explicitly (may be nil).
func New(inner Resolver, lookups *prometheus.CounterVec, logger *zap.Logger, opts ...Option) *Cache {
	c := &Cache{
		inner:   inner,
		lookups: lookups,
		logger:  logger,
		timeout: DefaultLookupTimeout,
		entries: make(map[string]entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Normalize trims, lower-cases and collapses inner whitespace.
func Normalize(location string) string {
	return strings.Join(strings.Fields(strings.ToLower(location)), " ")
}

// Resolve returns cached coordinates or consults the inner resolver once.
// A caller whose ctx ends stops waiting; the shared lookup keeps running
// for the other waiters until it finishes or times out.
func (c *Cache) Resolve(ctx context.Context, location string) (geo.Point, bool, error) {
	key := Normalize(location)
	if key == "" {
		return geo.Point{}, false, nil
	}

	if e, hit := c.lookup(key); hit {
		c.inc("hit")
		return e.point, e.ok, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		if e, hit := c.lookup(key); hit {
			return e, nil
		}
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		p, ok, err := c.inner.Resolve(lookupCtx, key)
		if err != nil {
			return entry{}, err
		}
		e := entry{point: p, ok: ok}
		c.mu.Lock()
		c.entries[key] = e
		c.mu.Unlock()
		return e, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		c.inc("error")
		return geo.Point{}, false, fmt.Errorf("geocode %q: %w", key, ctx.Err())
	case res = <-ch:
	}
	v, err := res.Val, res.Err
	if err != nil {
		c.inc("error")
		c.logger.Warn("Geocoder lookup failed", zap.String("location", key), zap.Error(err))
		return geo.Point{}, false, fmt.Errorf("geocode %q: %w", key, err)
	}

	e := v.(entry) //nolint:forcetypeassert // singleflight returns what the closure stores
	if e.ok {
		c.inc("miss")
	} else {
		c.inc("unresolved")
	}
	return e.point, e.ok, nil
}

// Len returns the number of cached locations.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) lookup(key string) (entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}

func (c *Cache) inc(result string) {
	if c.lookups != nil {
		c.lookups.WithLabelValues(result).Inc()
	}
}
