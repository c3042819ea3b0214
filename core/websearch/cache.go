package websearch

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultCacheSize = 256
	DefaultCacheTTL  = 30 * time.Minute
)

// Cached fronts a Searcher with an expiring LRU. Only successful searches
// are stored.
type Cached struct {
	inner Searcher
	lru   *expirable.LRU[string, []Result]
}

func NewCached(inner Searcher, size int, ttl time.Duration) *Cached {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cached{
		inner: inner,
		lru:   expirable.NewLRU[string, []Result](size, nil, ttl),
	}
}

func (c *Cached) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	key := searchKey(query, opts)
	if results, ok := c.lru.Get(key); ok {
		return append([]Result(nil), results...), nil
	}

	results, err := c.inner.Search(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	c.lru.Add(key, append([]Result(nil), results...))
	return results, nil
}

func (c *Cached) Len() int {
	return c.lru.Len()
}

func searchKey(query string, opts Options) string {
	hosts := append([]string(nil), opts.DomainAllowlist...)
	for i := range hosts {
		hosts[i] = strings.ToLower(strings.TrimSpace(hosts[i]))
	}
	sort.Strings(hosts)

	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	return normalized + "|" + strconv.Itoa(opts.maxResults()) + "|" + strings.Join(hosts, ",")
}
