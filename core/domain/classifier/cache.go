package classifier

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
	DefaultCacheTTL = 5 * time.Minute

	cacheKeyPrefix     = "intent"
	defaultNumCounters = 1e5
	defaultMaxCost     = 1 << 20
	defaultBufferItems = 64
)

// CacheConfig configures a Cached classifier.
type CacheConfig struct {
	NumCounters      int64
	MaxCost          int64
	BufferItems      int64
	TTL              time.Duration
	FollowUpMaxWords int
}

// CacheStats counts lookups served by a Cached classifier.
type CacheStats struct {
	hits   atomic.Int64
	misses atomic.Int64
	sets   atomic.Int64
}

func (s *CacheStats) Hits() int64   { return s.hits.Load() }
func (s *CacheStats) Misses() int64 { return s.misses.Load() }
func (s *CacheStats) Sets() int64   { return s.sets.Load() }

func (s *CacheStats) HitRate() float64 {
	total := s.Hits() + s.Misses()
	if total == 0 {
		return 0
	}
	return float64(s.Hits()) / float64(total)
}

// Cached memoizes detections for a query asked against the same history.
// The key covers everything the classifier sees, so a changed conversation
// always reaches the inner classifier. Fallback detections are never stored.
type Cached struct {
	inner            Classifier
	cache            *ristretto.Cache
	ttl              time.Duration
	followUpMaxWords int
	stats            CacheStats

	mu     sync.RWMutex
	closed bool
}

func NewCached(inner Classifier, config *CacheConfig) (*Cached, error) {
	cfg := applyCacheDefaults(config)

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
	})
	if err != nil {
		return nil, err
	}

	return &Cached{
		inner:            inner,
		cache:            cache,
		ttl:              cfg.TTL,
		followUpMaxWords: cfg.FollowUpMaxWords,
	}, nil
}

func applyCacheDefaults(config *CacheConfig) *CacheConfig {
	cfg := &CacheConfig{
		NumCounters:      defaultNumCounters,
		MaxCost:          defaultMaxCost,
		BufferItems:      defaultBufferItems,
		TTL:              DefaultCacheTTL,
		FollowUpMaxWords: DefaultFollowUpMaxWords,
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
	if config.FollowUpMaxWords > 0 {
		cfg.FollowUpMaxWords = config.FollowUpMaxWords
	}
	return cfg
}

func (c *Cached) Detect(ctx context.Context, query string, history []domain.ConversationTurn, sessionMessageCount int) domain.IntentDetection {
	key := CacheKey(query, history, IsFollowUp(query, sessionMessageCount, c.followUpMaxWords))

	if intent, ok := c.get(key); ok {
		return intent
	}

	intent := c.inner.Detect(ctx, query, history, sessionMessageCount)
	if !IsFallback(intent) && ctx.Err() == nil {
		c.set(key, intent)
	}
	return intent
}

func (c *Cached) get(key string) (domain.IntentDetection, bool) {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return domain.IntentDetection{}, false
	}

	value, found := c.cache.Get(key)
	intent, ok := value.(domain.IntentDetection)
	if !found || !ok {
		c.stats.misses.Add(1)
		return domain.IntentDetection{}, false
	}
	c.stats.hits.Add(1)
	return cloneIntent(intent), true
}

func (c *Cached) set(key string, intent domain.IntentDetection) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	cost := int64(64 + len(intent.Reasoning) + 8*len(intent.Domains))
	if c.cache.SetWithTTL(key, cloneIntent(intent), cost, c.ttl) {
		c.stats.sets.Add(1)
	}
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
	return &c.stats
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

// CacheKey hashes the whole normalized query, the follow-up flag and every
// field of each history turn that reaches the classifier prompt.
func CacheKey(query string, history []domain.ConversationTurn, followUp bool) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")

	h := sha256.New()
	h.Write([]byte(normalized))
	h.Write([]byte{0, boolByte(followUp)})
	for _, turn := range history {
		h.Write([]byte(turn.Role))
		h.Write([]byte{0})
		h.Write([]byte(turn.Domain))
		h.Write([]byte{0, boolByte(turn.IsSemanticMatch)})
		h.Write([]byte(turn.Content))
		h.Write([]byte{0})
	}
	return cacheKeyPrefix + ":" + strconv.Itoa(len(history)) + ":" + hex.EncodeToString(h.Sum(nil))[:32]
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
