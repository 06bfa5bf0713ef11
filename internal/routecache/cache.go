// Package routecache memoizes ranked route recommendations per
// (origin, destination, departure-time bucket) key. Entries expire by TTL,
// are invalidated when the underlying environmental data drifts beyond a
// tolerance, and are evicted least-recently-used under capacity pressure.
package routecache

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/cleanroute/cleanroute/internal/griddata"
	"github.com/cleanroute/cleanroute/internal/ranking"
	"github.com/cleanroute/cleanroute/pkg/geo"
)

// FingerprintFunc computes the current aggregate AQI over a set of grid
// cells. The cache compares it against the aggregate captured at Put to
// detect drift.
type FingerprintFunc func(ctx context.Context, cells []griddata.Cell) (float64, error)

// Config holds configuration for the result cache.
type Config struct {
	// Logger for cache operations.
	Logger zerolog.Logger

	// TTL is the hard entry lifetime (default: 15 minutes).
	TTL time.Duration

	// DriftTolerance is the largest aggregate AQI change, in points, an
	// entry survives before it is treated as a miss (default: 20).
	DriftTolerance float64

	// Capacity is the fixed maximum entry count (default: 512). Eviction
	// starts when a Put would exceed 90% of it.
	Capacity int

	// KeyGridDegrees quantizes origin/destination coordinates so nearby
	// requests share entries (default: 0.01, ~1.1 km).
	KeyGridDegrees float64

	// TimeBucket quantizes departure times (default: 15 minutes).
	TimeBucket time.Duration

	// SingleFlightWait bounds how long a concurrent requester waits on an
	// in-flight computation before computing uncached (default: 2 seconds).
	SingleFlightWait time.Duration

	// Fingerprint computes the current aggregate for drift checks.
	Fingerprint FingerprintFunc
}

type entry struct {
	result       *ranking.Result
	cells        []griddata.Cell
	baselineAQI  float64
	createdAt    time.Time
	lastAccessed time.Time
}

// Cache is the result cache. Reads on different keys proceed concurrently;
// recomputation is serialized per key via single-flight.
type Cache struct {
	logger           zerolog.Logger
	ttl              time.Duration
	driftTolerance   float64
	capacity         int
	keyGrid          float64
	timeBucket       time.Duration
	singleFlightWait time.Duration
	fingerprint      FingerprintFunc

	mu      sync.RWMutex
	entries map[string]*entry

	flight singleflight.Group

	hits      int64
	misses    int64
	evictions int64
}

// New creates a result cache.
func New(cfg Config) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = 15 * time.Minute
	}
	if cfg.DriftTolerance <= 0 {
		cfg.DriftTolerance = 20
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = 512
	}
	if cfg.KeyGridDegrees <= 0 {
		cfg.KeyGridDegrees = 0.01
	}
	if cfg.TimeBucket <= 0 {
		cfg.TimeBucket = 15 * time.Minute
	}
	if cfg.SingleFlightWait <= 0 {
		cfg.SingleFlightWait = 2 * time.Second
	}

	return &Cache{
		logger:           cfg.Logger,
		ttl:              cfg.TTL,
		driftTolerance:   cfg.DriftTolerance,
		capacity:         cfg.Capacity,
		keyGrid:          cfg.KeyGridDegrees,
		timeBucket:       cfg.TimeBucket,
		singleFlightWait: cfg.SingleFlightWait,
		fingerprint:      cfg.Fingerprint,
		entries:          make(map[string]*entry),
	}
}

// Key derives the cache key for a request. Coordinates are quantized to the
// key grid and the departure time to its bucket, so near-identical requests
// coalesce.
func (c *Cache) Key(origin, destination geo.Point, departure time.Time) string {
	q := func(v float64) float64 {
		return math.Floor(v/c.keyGrid) * c.keyGrid
	}
	bucket := departure.UTC().Truncate(c.timeBucket)
	return fmt.Sprintf("%.2f,%.2f:%.2f,%.2f:%d",
		q(origin.Lat), q(origin.Lon),
		q(destination.Lat), q(destination.Lon),
		bucket.Unix(),
	)
}

// Get returns the cached result for a key while the entry is younger than the
// TTL and its environmental fingerprint has drifted at most the tolerance.
// Anything else behaves as a miss; drifted and expired entries are dropped.
func (c *Cache) Get(ctx context.Context, key string) (*ranking.Result, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		c.countMiss()
		return nil, false
	}

	now := time.Now()
	if now.Sub(e.createdAt) >= c.ttl {
		c.remove(key)
		c.countMiss()
		return nil, false
	}

	if c.fingerprint != nil && len(e.cells) > 0 {
		current, err := c.fingerprint(ctx, e.cells)
		if err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("fingerprint check failed, treating entry as miss")
			c.countMiss()
			return nil, false
		}
		if math.Abs(current-e.baselineAQI) > c.driftTolerance {
			c.logger.Debug().
				Str("key", key).
				Float64("baseline_aqi", e.baselineAQI).
				Float64("current_aqi", current).
				Msg("cache entry invalidated by data drift")
			c.remove(key)
			c.countMiss()
			return nil, false
		}
	}

	c.mu.Lock()
	e.lastAccessed = now
	c.hits++
	c.mu.Unlock()

	return e.result, true
}

// Put stores a result under the key with the fingerprint of the data it was
// computed from. When the insert would exceed 90% of capacity the
// least-recently-used entry is evicted first.
func (c *Cache) Put(key string, result *ranking.Result, cells []griddata.Cell, baselineAQI float64) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		// A tiny capacity can round the threshold down to zero; keep it at
		// one so the eviction loop always terminates on an empty map.
		threshold := int(float64(c.capacity) * 0.9)
		if threshold < 1 {
			threshold = 1
		}
		for len(c.entries) > 0 && len(c.entries)+1 > threshold {
			c.evictLRULocked()
		}
	}

	c.entries[key] = &entry{
		result:       result,
		cells:        cells,
		baselineAQI:  baselineAQI,
		createdAt:    now,
		lastAccessed: now,
	}
}

// ComputeResult is what a cache-miss computation produces: the ranked result
// plus the cells and aggregate AQI to fingerprint the entry with.
type ComputeResult struct {
	Result      *ranking.Result
	Cells       []griddata.Cell
	BaselineAQI float64
}

// GetOrCompute returns the cached result or computes it, guaranteeing at most
// one in-flight computation per key. Concurrent requesters wait up to the
// single-flight bound for the winner; past the bound they fall through to an
// uncached computation so no caller blocks indefinitely. Only the winner
// writes the cache.
func (c *Cache) GetOrCompute(ctx context.Context, key string, compute func(ctx context.Context) (*ComputeResult, error)) (*ranking.Result, error) {
	if result, ok := c.Get(ctx, key); ok {
		return result, nil
	}

	ch := c.flight.DoChan(key, func() (interface{}, error) {
		cr, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.Put(key, cr.Result, cr.Cells, cr.BaselineAQI)
		return cr.Result, nil
	})

	timer := time.NewTimer(c.singleFlightWait)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*ranking.Result), nil
	case <-timer.C:
		c.logger.Debug().Str("key", key).Msg("single-flight wait exceeded, computing uncached")
		cr, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		return cr.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Evict removes every expired entry. Called opportunistically by the owner;
// TTL and drift checks on Get keep correctness independent of it.
func (c *Cache) Evict() {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	expired := 0
	for key, e := range c.entries {
		if now.Sub(e.createdAt) >= c.ttl {
			delete(c.entries, key)
			expired++
		}
	}

	if expired > 0 {
		c.logger.Debug().Int("expired_entries", expired).Msg("evicted expired cache entries")
	}
}

// Invalidate clears all cached entries.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

// evictLRULocked removes the entry with the oldest last access. Caller holds
// the write lock.
func (c *Cache) evictLRULocked() {
	var oldestKey string
	var oldest time.Time

	for key, e := range c.entries {
		if oldestKey == "" || e.lastAccessed.Before(oldest) {
			oldestKey = key
			oldest = e.lastAccessed
		}
	}

	if oldestKey != "" {
		delete(c.entries, oldestKey)
		c.evictions++
	}
}

func (c *Cache) remove(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

func (c *Cache) countMiss() {
	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
}

// Stats contains cache statistics.
type Stats struct {
	Entries   int
	Capacity  int
	Hits      int64
	Misses    int64
	Evictions int64
}

// Stats returns a snapshot of cache statistics.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Entries:   len(c.entries),
		Capacity:  c.capacity,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}
