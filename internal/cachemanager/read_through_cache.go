package cachemanager

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// LoadFunc produces the value for a cache miss.
type LoadFunc[V any, I any] func(ctx context.Context, input I) (V, error)

// ReadThroughCache loads missing keys through fn and stores the result.
// Concurrent Get calls for the same key share one load.
type ReadThroughCache[K ~string, V any, I any] struct {
	cache CacheManager[K, V]
	fn    LoadFunc[V, I]
	group singleflight.Group
}

// NewReadThroughCache wraps cache with loader fn.
func NewReadThroughCache[K ~string, V any, I any](cache CacheManager[K, V], fn LoadFunc[V, I]) *ReadThroughCache[K, V, I] {
	return &ReadThroughCache[K, V, I]{cache: cache, fn: fn}
}

// Peek returns a cached value without loading.
func (r *ReadThroughCache[K, V, I]) Peek(ctx context.Context, key K) (V, bool) {
	return r.cache.Get(ctx, key)
}

// Get returns the cached value for key, loading it with input on a miss.
// Errors are returned to every waiter and not cached.
func (r *ReadThroughCache[K, V, I]) Get(ctx context.Context, key K, input I, ttl time.Duration) (V, error) {
	if value, ok := r.cache.Get(ctx, key); ok {
		return value, nil
	}

	result, err, _ := r.group.Do(string(key), func() (any, error) {
		if value, ok := r.cache.Get(ctx, key); ok {
			return value, nil
		}
		value, err := r.fn(ctx, input)
		if err != nil {
			return value, err
		}
		r.cache.Set(ctx, key, value, ttl)
		return value, nil
	})
	value, _ := result.(V)
	return value, err
}

// Forget drops key from the cache and from any in-flight load bookkeeping.
func (r *ReadThroughCache[K, V, I]) Forget(ctx context.Context, key K) {
	r.cache.Delete(ctx, key)
	r.group.Forget(string(key))
}
