package engine

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type cacheEntry[T any] struct {
	value     T
	createdAt time.Time
}

// Cache memoizes slow-changing upstream results for a fixed TTL.
// 同一个key的并发miss只会触发一次producer调用（single-flight），
// 其余调用方等待并共享这次计算的结果，避免重复的RPC请求。
type Cache[T any] struct {
	ttl     time.Duration
	class   string // 指标label，按缓存用途区分
	mu      sync.RWMutex
	entries map[string]cacheEntry[T]
	group   singleflight.Group
	metrics *Metrics
	now     func() time.Time
}

func NewCache[T any](class string, ttl time.Duration) *Cache[T] {
	return &Cache[T]{
		ttl:     ttl,
		class:   class,
		entries: make(map[string]cacheEntry[T]),
		metrics: GetMetrics(),
		now:     time.Now,
	}
}

// GetOrCompute returns the cached value for key, invoking producer only on a
// miss or after expiry. TTL为0时完全绕过缓存。
func (c *Cache[T]) GetOrCompute(ctx context.Context, key string, producer func(ctx context.Context) (T, error)) (T, error) {
	if c.ttl <= 0 {
		return producer(ctx)
	}

	if value, ok := c.lookup(key); ok {
		c.metrics.CacheHits.WithLabelValues(c.class).Inc()
		return value, nil
	}

	result, err, _ := c.group.Do(key, func() (interface{}, error) {
		// Double-check：排队期间前一个共享计算可能刚写入
		if value, ok := c.lookup(key); ok {
			c.metrics.CacheHits.WithLabelValues(c.class).Inc()
			return value, nil
		}
		// miss只在真正触发producer时计数，
		// 共享同一次在飞计算的调用方不算miss
		c.metrics.CacheMisses.WithLabelValues(c.class).Inc()

		// The in-flight computation is shared with other callers, so it must
		// not die with the first caller's context.
		value, err := producer(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.entries[key] = cacheEntry[T]{value: value, createdAt: c.now()}
		c.mu.Unlock()
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}

// lookup 读取未过期的条目；过期条目在此处惰性淘汰。
// 有效性判断只看 now-createdAt < ttl，与物理删除时机无关。
func (c *Cache[T]) lookup(key string) (T, bool) {
	var zero T

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return zero, false
	}

	if c.now().Sub(entry.createdAt) >= c.ttl {
		c.mu.Lock()
		if current, ok := c.entries[key]; ok && current.createdAt.Equal(entry.createdAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return zero, false
	}
	return entry.value, true
}

// Len returns the number of physically stored entries (expired included)
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
