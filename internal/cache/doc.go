// Package cache provides the generic LRU cache backing the descriptor view
// cache.
//
//	c := cache.NewWithEvict[key, *view](1024, func(k key, v *view) {
//		v.release()
//	})
//	c.Set(k, v)
//	v, ok := c.Get(k)
//
// Entries dropped by the soft limit are reported to the eviction callback so
// the owner can return any external resources they hold. Explicit Delete and
// DeleteFunc calls hand the removed values back to the caller instead.
//
// Cache is safe for concurrent use and must not be copied after creation.
package cache
