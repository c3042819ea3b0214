package knowledge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SankrityaT/Navia-sub000/core/domain"
	"github.com/dgraph-io/ristretto"
)

const (
	defaultNumCounters = 1e5
	defaultMaxCost     = 1 << 20
	defaultBufferItems = 64
	defaultTTL         = 10 * time.Minute
	maxKeyLength       = 256
)

type CacheConfig struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	TTL         time.Duration
}

// CacheStats counts lookups served by a Cached retriever.
type CacheStats struct {
	hits   atomic.Int64
	misses atomic.Int64
}

func (s *CacheStats) Hits() int64   { return s.hits.Load() }
func (s *CacheStats) Misses() int64 { return s.misses.Load() }

func (s *CacheStats) HitRate() float64 {
	total := s.Hits() + s.Misses()
	if total == 0 {
		return 0
	}
	return float64(s.Hits()) / float64(total)
}

// Cached memoizes another Retriever's results in a ristretto cache keyed by
// the normalized query, domain and limit. Errors are never cached.
type Cached struct {
	inner  Retriever
	cache  *ristretto.Cache
	ttl    time.Duration
	stats  *CacheStats
	mu     sync.RWMutex
	closed bool
}

func NewCached(inner Retriever, config *CacheConfig) (*Cached, error) {
	cfg := applyDefaults(config)

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
	})
	if err != nil {
		return nil, err
	}

	return &Cached{
		inner: inner,
		cache: cache,
		ttl:   cfg.TTL,
		stats: &CacheStats{},
	}, nil
}

func applyDefaults(config *CacheConfig) *CacheConfig {
	cfg := &CacheConfig{
		NumCounters: defaultNumCounters,
		MaxCost:     defaultMaxCost,
		BufferItems: defaultBufferItems,
		TTL:         defaultTTL,
	}
	if config == nil {
		return cfg
	}
	if config.NumCounters > 0 {
		cfg.NumCounters = config.NumCounters
	}
	if config.MaxCost > 0 {
		cfg.MaxCost = config.MaxCost
	}
	if config.BufferItems > 0 {
		cfg.BufferItems = config.BufferItems
	}
	if config.TTL > 0 {
		cfg.TTL = config.TTL
	}
	return cfg
}

func (c *Cached) Retrieve(ctx context.Context, query string, d domain.Domain, limit int) ([]Passage, error) {
	key := cacheKey(query, d, limit)

	if passages, ok := c.get(key); ok {
		return passages, nil
	}

	passages, err := c.inner.Retrieve(ctx, query, d, limit)
	if err != nil {
		return nil, err
	}
	c.set(key, passages)
	return clonePassages(passages), nil
}

func (c *Cached) get(key string) ([]Passage, bool) {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return nil, false
	}

	value, found := c.cache.Get(key)
	passages, ok := value.([]Passage)
	if !found || !ok {
		c.stats.misses.Add(1)
		return nil, false
	}
	c.stats.hits.Add(1)
	return clonePassages(passages), true
}

func (c *Cached) set(key string, passages []Passage) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	c.cache.SetWithTTL(key, clonePassages(passages), estimateCost(passages), c.ttl)
}

// Wait blocks until buffered writes are applied.
func (c *Cached) Wait() {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.closed {
		c.cache.Wait()
	}
}

func (c *Cached) Stats() *CacheStats {
	return c.stats
}

func (c *Cached) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.cache.Close()
}

func estimateCost(passages []Passage) int64 {
	cost := int64(64)
	for _, p := range passages {
		cost += int64(len(p.ID) + len(p.Title) + len(p.URL) + len(p.Content) + 32)
	}
	return cost
}

func clonePassages(passages []Passage) []Passage {
	if passages == nil {
		return nil
	}
	out := make([]Passage, len(passages))
	copy(out, passages)
	return out
}

func cacheKey(query string, d domain.Domain, limit int) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	if len(normalized) > maxKeyLength {
		normalized = normalized[:maxKeyLength]
	}
	h := sha256.Sum256([]byte(normalized))
	return "knowledge:" + d.String() + ":" + strconv.Itoa(limit) + ":" + hex.EncodeToString(h[:16])
}
