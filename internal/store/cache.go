package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// DocumentCache holds serialized documents keyed by store key. Only
// successful reads are cached: a negative result must never be remembered,
// or it could suppress the create a concurrent request just performed.
type DocumentCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
	Delete(ctx context.Context, key string)
}

// CachingStore is a read-through wrapper. Writes invalidate before they
// delegate, so a stale positive entry lives at most until the next write to
// the same key. ConditionalCreate and QueryByFields always hit the backend.
type CachingStore struct {
	backend ObjectStore
	cache   DocumentCache
}

func NewCachingStore(backend ObjectStore, cache DocumentCache) *CachingStore {
	return &CachingStore{backend: backend, cache: cache}
}

func (s *CachingStore) Get(ctx context.Context, key string) (Document, error) {
	if raw, ok := s.cache.Get(ctx, key); ok {
		var doc Document
		if err := json.Unmarshal(raw, &doc); err == nil {
			return doc, nil
		}
		s.cache.Delete(ctx, key)
	}

	doc, err := s.backend.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(doc); err == nil {
		s.cache.Set(ctx, key, raw)
	}
	return doc, nil
}

func (s *CachingStore) Put(ctx context.Context, key string, doc Document) error {
	s.cache.Delete(ctx, key)
	return s.backend.Put(ctx, key, doc)
}

func (s *CachingStore) Delete(ctx context.Context, key string) error {
	s.cache.Delete(ctx, key)
	return s.backend.Delete(ctx, key)
}

func (s *CachingStore) ConditionalCreate(ctx context.Context, key string, doc Document) (bool, Document, error) {
	s.cache.Delete(ctx, key)
	return s.backend.ConditionalCreate(ctx, key, doc)
}

func (s *CachingStore) QueryByFields(ctx context.Context, fields map[string]any, limit int) ([]Document, error) {
	return s.backend.QueryByFields(ctx, fields, limit)
}

var _ ObjectStore = (*CachingStore)(nil)

// LocalCache is the in-process default, backed by go-cache.
type LocalCache struct {
	cache *gocache.Cache
}

func NewLocalCache(ttl time.Duration) *LocalCache {
	return &LocalCache{cache: gocache.New(ttl, 2*ttl)}
}

func (c *LocalCache) Get(ctx context.Context, key string) ([]byte, bool) {
	v, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	raw, ok := v.([]byte)
	return raw, ok
}

func (c *LocalCache) Set(ctx context.Context, key string, value []byte) {
	c.cache.Set(key, value, gocache.DefaultExpiration)
}

func (c *LocalCache) Delete(ctx context.Context, key string) {
	c.cache.Delete(key)
}

// RedisCache shares cached documents across processes.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, prefix: "asdoc:"}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		return nil, false
	}
	return raw, true
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte) {
	c.client.Set(ctx, c.prefix+key, value, c.ttl)
}

func (c *RedisCache) Delete(ctx context.Context, key string) {
	c.client.Del(ctx, c.prefix+key)
}

// MemcachedCache adapts a memcache client to the cache contract.
type MemcachedCache struct {
	client *memcache.Client
	ttl    int32
}

func NewMemcachedCache(client *memcache.Client, ttl time.Duration) *MemcachedCache {
	return &MemcachedCache{client: client, ttl: int32(ttl / time.Second)}
}

func (c *MemcachedCache) Get(ctx context.Context, key string) ([]byte, bool) {
	item, err := c.client.Get(key)
	if err != nil {
		return nil, false
	}
	return item.Value, true
}

func (c *MemcachedCache) Set(ctx context.Context, key string, value []byte) {
	c.client.Set(&memcache.Item{Key: key, Value: value, Expiration: c.ttl})
}

func (c *MemcachedCache) Delete(ctx context.Context, key string) {
	// a failed eviction only extends staleness of a positive entry
	_ = c.client.Delete(key)
}
