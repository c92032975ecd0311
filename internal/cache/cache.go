package cache

import (
	"log/slog"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

type Cache[K comparable, V any] struct {
	cache       *gocache.Cache
	mu          sync.RWMutex
	keyToString func(K) string
	logger      *slog.Logger
}

type CacheConfig struct {
	TTL    time.Duration
	Logger *slog.Logger
}

func NewCache[K comparable, V any](config CacheConfig, keyToString func(K) string) *Cache[K, V] {
	if config.TTL == 0 {
		config.TTL = 1 * time.Hour
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	goCacheInstance := gocache.New(config.TTL, config.TTL/2)
	config.Logger.Debug("Cache initialized", "ttl", config.TTL)

	return &Cache[K, V]{
		cache:       goCacheInstance,
		keyToString: keyToString,
		logger:      config.Logger,
	}
}

func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	value, found := c.cache.Get(c.keyToString(key))
	if !found {
		var zero V
		return zero, false
	}

	if typedValue, ok := value.(V); ok {
		return typedValue, true
	}

	var zero V
	return zero, false
}

func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stringKey := c.keyToString(key)
	c.cache.Set(stringKey, value, gocache.DefaultExpiration)
	c.logger.Debug("Cache stored key", "key", stringKey)
}

func (c *Cache[K, V]) SetWithTTL(key K, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stringKey := c.keyToString(key)
	c.cache.Set(stringKey, value, ttl)
	c.logger.Debug("Cache stored key", "key", stringKey, "ttl", ttl)
}

func (c *Cache[K, V]) InvalidateKey(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stringKey := c.keyToString(key)
	c.cache.Delete(stringKey)
	c.logger.Debug("Cache invalidated key", "key", stringKey)
}

// GetWithExpiration is Get plus the time the entry expires. Entries stored
// without expiry report the zero time.
func (c *Cache[K, V]) GetWithExpiration(key K) (V, time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var zero V
	value, expires, found := c.cache.GetWithExpiration(c.keyToString(key))
	if !found {
		return zero, time.Time{}, false
	}
	typedValue, ok := value.(V)
	if !ok {
		return zero, time.Time{}, false
	}
	return typedValue, expires, true
}

func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.cache.ItemCount()
}
