package cache

import "sync"

// Cache is a generic thread-safe LRU cache with a soft limit.
// When the cache exceeds softLimit, least recently used entries are evicted
// and reported to the eviction callback, if any.
//
// Cache is safe for concurrent use.
// Cache must not be copied after creation (has mutex).
type Cache[K comparable, V any] struct {
	mu        sync.Mutex
	entries   map[K]*cacheEntry[K, V]
	order     ring[K]
	softLimit int
	onEvict   func(K, V)
	evictions uint64
}

// cacheEntry holds a cached value with its position in the recency ring.
type cacheEntry[K comparable, V any] struct {
	value V
	node  *node[K]
}

// node is a link of the recency ring.
type node[K comparable] struct {
	key        K
	prev, next *node[K]
}

// ring is a circular doubly-linked list around a sentinel. root.next is the
// most recently used key and root.prev the least recently used one. The
// zero ring is empty once init has run.
type ring[K comparable] struct {
	root node[K]
}

func (r *ring[K]) init() {
	r.root.prev = &r.root
	r.root.next = &r.root
}

// insertFront links n right after the sentinel.
func (r *ring[K]) insertFront(n *node[K]) {
	n.prev = &r.root
	n.next = r.root.next
	r.root.next.prev = n
	r.root.next = n
}

func (r *ring[K]) unlink(n *node[K]) {
	n.prev.next = n.next
	n.next.prev = n.prev
	n.prev, n.next = nil, nil
}

func (r *ring[K]) pushFront(key K) *node[K] {
	n := &node[K]{key: key}
	r.insertFront(n)
	return n
}

func (r *ring[K]) moveToFront(n *node[K]) {
	if r.root.next == n {
		return
	}
	r.unlink(n)
	r.insertFront(n)
}

// popBack unlinks the least recently used node.
func (r *ring[K]) popBack() (K, bool) {
	n := r.root.prev
	if n == &r.root {
		var zero K
		return zero, false
	}
	r.unlink(n)
	return n.key, true
}

// New creates a new cache with the given soft limit.
// A softLimit of 0 means unlimited.
func New[K comparable, V any](softLimit int) *Cache[K, V] {
	return NewWithEvict[K, V](softLimit, nil)
}

// NewWithEvict creates a cache that calls onEvict for every entry dropped
// because the soft limit was exceeded. onEvict runs with the cache lock held
// and must not call back into the cache.
func NewWithEvict[K comparable, V any](softLimit int, onEvict func(K, V)) *Cache[K, V] {
	if softLimit < 0 {
		softLimit = 0
	}
	c := &Cache[K, V]{
		entries:   make(map[K]*cacheEntry[K, V]),
		softLimit: softLimit,
		onEvict:   onEvict,
	}
	c.order.init()
	return c
}

// Get retrieves a value from the cache.
// Returns (value, true) if found, (zero, false) otherwise.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.order.moveToFront(entry.node)
	return entry.value, true
}

// Peek retrieves a value without touching its recency.
func (c *Cache[K, V]) Peek(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	return entry.value, true
}

// Set stores a value in the cache.
// If the cache exceeds softLimit after insertion, oldest entries are evicted.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key]; ok {
		entry.value = value
		c.order.moveToFront(entry.node)
		return
	}
	c.entries[key] = &cacheEntry[K, V]{
		value: value,
		node:  c.order.pushFront(key),
	}
	if c.softLimit > 0 && len(c.entries) > c.softLimit {
		c.evictOldest()
	}
}

// Delete removes an entry from the cache without calling the eviction
// callback. Returns the removed value and true if the entry was found.
func (c *Cache[K, V]) Delete(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.order.unlink(entry.node)
	delete(c.entries, key)
	return entry.value, true
}

// DeleteFunc removes every entry for which fn returns true and returns the
// removed values. The eviction callback is not called.
func (c *Cache[K, V]) DeleteFunc(fn func(K, V) bool) []V {
	c.mu.Lock()
	defer c.mu.Unlock()

	var removed []V
	for key, entry := range c.entries {
		if !fn(key, entry.value) {
			continue
		}
		c.order.unlink(entry.node)
		delete(c.entries, key)
		removed = append(removed, entry.value)
	}
	return removed
}

// Clear removes all entries from the cache and returns them.
func (c *Cache[K, V]) Clear() []V {
	c.mu.Lock()
	defer c.mu.Unlock()

	values := make([]V, 0, len(c.entries))
	for _, entry := range c.entries {
		values = append(values, entry.value)
	}
	c.entries = make(map[K]*cacheEntry[K, V])
	c.order.init()
	return values
}

// Len returns the number of entries in the cache.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Capacity returns the soft limit of the cache.
func (c *Cache[K, V]) Capacity() int {
	return c.softLimit
}

// Stats returns cache statistics.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Len:       len(c.entries),
		Capacity:  c.softLimit,
		Evictions: c.evictions,
	}
}

// evictOldest removes least recently used entries until 3/4 of softLimit.
// Caller must hold c.mu.
func (c *Cache[K, V]) evictOldest() {
	targetSize := c.softLimit * 3 / 4
	if targetSize < 1 {
		targetSize = 1
	}
	for len(c.entries) > targetSize {
		key, ok := c.order.popBack()
		if !ok {
			return
		}
		entry := c.entries[key]
		delete(c.entries, key)
		c.evictions++
		if c.onEvict != nil {
			c.onEvict(key, entry.value)
		}
	}
}

// Stats contains cache statistics.
type Stats struct {
	// Len is the current number of entries.
	Len int
	// Capacity is the cache soft limit.
	Capacity int
	// Evictions is the number of entries dropped by the soft limit.
	Evictions uint64
}
