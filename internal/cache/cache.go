// Package cache keeps Grafana API responses in memory for a limited time.
package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/simplelru"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const (
	DefaultSize = 50000
	DefaultTTL  = 300 * time.Second

	// NoExpiry keeps entries until they are evicted or cleared.
	NoExpiry time.Duration = -1
)

type Item struct {
	Status    int
	Header    map[string][]string
	Data      []byte
	ExpiresAt time.Time
}

func (i *Item) expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !i.ExpiresAt.After(now)
}

// Responses is an LRU of HTTP responses with a common TTL. A TTL of zero
// disables the cache, a negative TTL keeps entries forever.
type Responses struct {
	logger *zap.Logger

	mtx sync.Mutex
	lru *lru.LRU[string, *Item]
	ttl time.Duration

	requests metric.Int64Counter
	hits     metric.Int64Counter
}

func New(log *zap.Logger, size int, ttl time.Duration) (*Responses, error) {
	if size <= 0 {
		size = DefaultSize
	}
	l, err := lru.NewLRU[string, *Item](size, nil)
	if err != nil {
		return nil, err
	}

	meter := otel.Meter("github.com/grafana-toolbox/grafana-wtf/internal/cache")
	requests, err := meter.Int64Counter("grafana_wtf.cache.requests",
		metric.WithDescription("Total number of lookups in the response cache."))
	if err != nil {
		return nil, err
	}
	hits, err := meter.Int64Counter("grafana_wtf.cache.hits",
		metric.WithDescription("Total number of lookups in the response cache that were a hit."))
	if err != nil {
		return nil, err
	}

	return &Responses{logger: log, lru: l, ttl: ttl, requests: requests, hits: hits}, nil
}

func (c *Responses) Enabled() bool {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.ttl != 0
}

func (c *Responses) TTL() time.Duration {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.ttl
}

// ExpireAfter changes the TTL of entries added from now on.
func (c *Responses) ExpireAfter(ttl time.Duration) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.ttl = ttl
}

func (c *Responses) Get(ctx context.Context, key string) (*Item, bool) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if c.ttl == 0 {
		return nil, false
	}
	c.requests.Add(ctx, 1)

	item, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	if item.expired(time.Now()) {
		c.lru.Remove(key)
		return nil, false
	}
	c.hits.Add(ctx, 1)
	return item, true
}

func (c *Responses) Set(key string, item *Item) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if c.ttl == 0 {
		return
	}
	if c.ttl > 0 {
		item.ExpiresAt = time.Now().Add(c.ttl)
	}
	c.lru.Add(key, item)
}

// Clear drops all entries. It returns once the cache is empty.
func (c *Responses) Clear() {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	n := c.lru.Len()
	c.lru.Purge()
	c.logger.Debug("Cleared response cache", zap.Int("entries", n))
}

func (c *Responses) Len() int {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.lru.Len()
}
