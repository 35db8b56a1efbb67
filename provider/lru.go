package provider

import "container/list"

type lruEntry[K comparable, V any] struct {
	key   K
	value V
}

// lru is a fixed-capacity least-recently-used map. Not safe for concurrent use.
type lru[K comparable, V any] struct {
	capacity int
	order    *list.List // front is most recent
	items    map[K]*list.Element
}

func newLRU[K comparable, V any](capacity int) *lru[K, V] {
	return &lru[K, V]{
		capacity: max(capacity, 1),
		order:    list.New(),
		items:    make(map[K]*list.Element),
	}
}

func (c *lru[K, V]) get(key K) (V, bool) {
	e, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.order.MoveToFront(e)
	return e.Value.(*lruEntry[K, V]).value, true
}

// peek is get without touching the recency order.
func (c *lru[K, V]) peek(key K) (V, bool) {
	e, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	return e.Value.(*lruEntry[K, V]).value, true
}

// add inserts or replaces key and returns the values pushed out, including a replaced one.
func (c *lru[K, V]) add(key K, value V) []V {
	var evicted []V
	if e, ok := c.items[key]; ok {
		entry := e.Value.(*lruEntry[K, V])
		evicted = append(evicted, entry.value)
		entry.value = value
		c.order.MoveToFront(e)
		return evicted
	}
	c.items[key] = c.order.PushFront(&lruEntry[K, V]{key, value})
	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		entry := c.order.Remove(oldest).(*lruEntry[K, V])
		delete(c.items, entry.key)
		evicted = append(evicted, entry.value)
	}
	return evicted
}

// clear empties the cache and returns everything it held.
func (c *lru[K, V]) clear() []V {
	values := make([]V, 0, c.order.Len())
	for e := c.order.Front(); e != nil; e = e.Next() {
		values = append(values, e.Value.(*lruEntry[K, V]).value)
	}
	c.order.Init()
	clear(c.items)
	return values
}

func (c *lru[K, V]) len() int {
	return c.order.Len()
}
