package pricing

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// Cache is the expiring price store. In a multi-instance deployment the
// Redis implementation must be used so every instance settles purchases
// against the same rate.
type Cache interface {
	Get(ctx context.Context, asset string) (decimal.Decimal, bool)
	Set(ctx context.Context, asset string, price decimal.Decimal, ttl time.Duration)
	Has(ctx context.Context, asset string) bool
}

type memoryEntry struct {
	price     decimal.Decimal
	expiresAt time.Time
}

// MemoryCache is a process-local Cache for tests and single-instance runs.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, asset string) (decimal.Decimal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[asset]
	if !ok || c.now().After(e.expiresAt) {
		return decimal.Zero, false
	}
	return e.price, true
}

func (c *MemoryCache) Set(_ context.Context, asset string, price decimal.Decimal, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[asset] = memoryEntry{price: price, expiresAt: c.now().Add(ttl)}
}

func (c *MemoryCache) Has(ctx context.Context, asset string) bool {
	_, ok := c.Get(ctx, asset)
	return ok
}

// RedisCache shares prices across instances through Redis key TTLs.
type RedisCache struct {
	client *redis.Client
	prefix string
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, prefix: "price:"}
}

func (c *RedisCache) Get(ctx context.Context, asset string) (decimal.Decimal, bool) {
	val, err := c.client.Get(ctx, c.prefix+asset).Result()
	if err != nil {
		return decimal.Zero, false
	}
	price, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Zero, false
	}
	return price, true
}

func (c *RedisCache) Set(ctx context.Context, asset string, price decimal.Decimal, ttl time.Duration) {
	c.client.Set(ctx, c.prefix+asset, price.String(), ttl)
}

func (c *RedisCache) Has(ctx context.Context, asset string) bool {
	n, err := c.client.Exists(ctx, c.prefix+asset).Result()
	return err == nil && n > 0
}
