package repository

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

type closer interface {
	Close()
}

// CacheRegistry keeps live values in memory with a sliding TTL. A value is
// closed when it expires or is deleted.
type CacheRegistry[T closer] struct {
	mu    sync.Mutex
	cache *cache.Cache
}

func NewCacheRegistry[T closer](ttl, cleanupInterval time.Duration) *CacheRegistry[T] {
	c := cache.New(ttl, cleanupInterval)
	c.OnEvicted(func(_ string, v interface{}) {
		if value, ok := v.(T); ok {
			value.Close()
		}
	})
	return &CacheRegistry[T]{cache: c}
}

func (r *CacheRegistry[T]) Save(id string, value T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Set(id, value, cache.DefaultExpiration)
}

// Get returns the value and extends its lifetime
func (r *CacheRegistry[T]) Get(id string) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	v, ok := r.cache.Get(id)
	if !ok {
		return zero, false
	}
	value, ok := v.(T)
	if !ok {
		return zero, false
	}
	r.cache.Set(id, value, cache.DefaultExpiration)
	return value, true
}

func (r *CacheRegistry[T]) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Delete(id)
}

// List returns the unexpired values in no particular order
func (r *CacheRegistry[T]) List() []T {
	items := r.cache.Items()
	out := make([]T, 0, len(items))
	for _, item := range items {
		if value, ok := item.Object.(T); ok {
			out = append(out, value)
		}
	}
	return out
}

func (r *CacheRegistry[T]) Len() int {
	return r.cache.ItemCount()
}
