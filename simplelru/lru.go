package simplelru

import (
	"errors"
	"fmt"

	"golang.org/x/exp/slices"
)

var (
	// ErrInvalidCapacity is returned when a cache is created or resized to
	// a non-positive size.
	ErrInvalidCapacity = errors.New("must provide a positive size")

	// ErrNotFound is returned by Lookup when the key is not resident.
	ErrNotFound = errors.New("key not found")
)

// nilSlot marks the absence of a slot in the recency list.
const nilSlot = -1

// EvictCallback is used to get a callback when a cache entry is evicted
type EvictCallback[K comparable, V any] func(key K, value V)

// LRU implements a non-thread safe fixed size LRU cache
type LRU[K comparable, V any] struct {
	data    []entry[K, V]
	items   map[K]int
	head    int // most recently used
	tail    int // least recently used
	free    int // first slot of the free list, linked through next
	size    int
	onEvict EvictCallback[K, V]
}

// entry is a slot in the arena. Live entries are linked into the recency
// list; removed ones are linked into the free list.
type entry[K comparable, V any] struct {
	prev  int
	next  int
	key   K
	value V
}

// NewLRU constructs an LRU of the given size
func NewLRU[K comparable, V any](size int, onEvict EvictCallback[K, V]) (*LRU[K, V], error) {
	if size <= 0 {
		return nil, fmt.Errorf("new lru of size %d: %w", size, ErrInvalidCapacity)
	}
	c := &LRU[K, V]{
		data:    make([]entry[K, V], 0, size),
		items:   make(map[K]int, size),
		head:    nilSlot,
		tail:    nilSlot,
		free:    nilSlot,
		size:    size,
		onEvict: onEvict,
	}
	return c, nil
}

// Purge is used to completely clear the cache.
func (c *LRU[K, V]) Purge() {
	for i := c.head; i != nilSlot; i = c.data[i].next {
		if c.onEvict != nil {
			c.onEvict(c.data[i].key, c.data[i].value)
		}
	}
	c.data = c.data[:0]
	c.items = make(map[K]int, c.size)
	c.head, c.tail, c.free = nilSlot, nilSlot, nilSlot
}

// Add adds a value to the cache.  Returns true if an eviction occurred.
func (c *LRU[K, V]) Add(key K, value V) (evicted bool) {
	// Check for existing item
	if i, ok := c.items[key]; ok {
		c.data[i].value = value
		c.moveToFront(i)
		return false
	}

	if len(c.items) >= c.size {
		c.removeOldest()
		evicted = true
	}

	i := c.alloc()
	c.data[i].key = key
	c.data[i].value = value
	c.items[key] = i
	c.pushFront(i)
	return evicted
}

// Get looks up a key's value from the cache.
func (c *LRU[K, V]) Get(key K) (value V, ok bool) {
	if i, ok := c.items[key]; ok {
		c.moveToFront(i)
		return c.data[i].value, true
	}
	return
}

// Lookup is like Get but reports a missing key as an error wrapping
// ErrNotFound.
func (c *LRU[K, V]) Lookup(key K) (V, error) {
	value, ok := c.Get(key)
	if !ok {
		return value, fmt.Errorf("lookup %v: %w", key, ErrNotFound)
	}
	return value, nil
}

// Contains checks if a key is in the cache, without updating the recent-ness
// or deleting it for being stale.
func (c *LRU[K, V]) Contains(key K) (ok bool) {
	_, ok = c.items[key]
	return ok
}

// Peek returns the key value (or undefined if not found) without updating
// the "recently used"-ness of the key.
func (c *LRU[K, V]) Peek(key K) (value V, ok bool) {
	if i, ok := c.items[key]; ok {
		return c.data[i].value, true
	}
	return value, false
}

// Remove removes the provided key from the cache, returning if the
// key was contained.
func (c *LRU[K, V]) Remove(key K) (present bool) {
	if i, ok := c.items[key]; ok {
		c.removeElement(i)
		c.release(i)
		return true
	}
	return false
}

// RemoveOldest removes the oldest item from the cache.
func (c *LRU[K, V]) RemoveOldest() (key K, value V, ok bool) {
	if c.tail == nilSlot {
		return
	}
	i := c.tail
	key, value = c.data[i].key, c.data[i].value
	c.removeElement(i)
	c.release(i)
	return key, value, true
}

// GetOldest returns the oldest entry
func (c *LRU[K, V]) GetOldest() (key K, value V, ok bool) {
	if c.tail == nilSlot {
		return
	}
	ent := &c.data[c.tail]
	return ent.key, ent.value, true
}

// Keys returns a slice of the keys in the cache, from oldest to newest.
func (c *LRU[K, V]) Keys() []K {
	keys := make([]K, 0, len(c.items))
	for i := c.tail; i != nilSlot; i = c.data[i].prev {
		keys = append(keys, c.data[i].key)
	}
	return keys
}

// Len returns the number of items in the cache.
func (c *LRU[K, V]) Len() int {
	return len(c.items)
}

// Cap returns the maximum number of items the cache can hold.
func (c *LRU[K, V]) Cap() int {
	return c.size
}

// Resize changes the cache size. Shrinking evicts the least recently used
// entries until the cache fits; survivors keep their relative order.
func (c *LRU[K, V]) Resize(size int) (evicted int, err error) {
	if size <= 0 {
		return 0, fmt.Errorf("resize lru to %d: %w", size, ErrInvalidCapacity)
	}
	if size == c.size {
		return 0, nil
	}
	if size > c.size {
		c.data = slices.Grow(c.data, size-len(c.data))
		c.size = size
		return 0, nil
	}

	for len(c.items) > size {
		c.removeOldest()
		evicted++
	}
	c.size = size
	c.compact()
	return evicted, nil
}

// compact rewrites the arena so that slot i holds the i-th most recently
// used entry and nothing beyond the current size is retained.
func (c *LRU[K, V]) compact() {
	data := make([]entry[K, V], 0, c.size)
	for i := c.head; i != nilSlot; i = c.data[i].next {
		ent := c.data[i]
		n := len(data)
		ent.prev = n - 1
		ent.next = n + 1
		data = append(data, ent)
		c.items[ent.key] = n
	}
	c.head, c.tail, c.free = nilSlot, nilSlot, nilSlot
	if n := len(data); n > 0 {
		data[n-1].next = nilSlot
		c.head, c.tail = 0, n-1
	}
	c.data = slices.Clip(data)
}

// removeOldest evicts the tail entry and hands its slot to the free list.
func (c *LRU[K, V]) removeOldest() {
	if i := c.tail; i != nilSlot {
		c.removeElement(i)
		c.release(i)
	}
}

// removeElement unlinks slot i, drops it from the index and fires the
// eviction callback. The slot itself is left for the caller to release.
func (c *LRU[K, V]) removeElement(i int) {
	c.unlink(i)
	ent := c.data[i]
	delete(c.items, ent.key)
	if c.onEvict != nil {
		c.onEvict(ent.key, ent.value)
	}
}

// alloc returns a free slot, reusing released ones before growing the arena.
func (c *LRU[K, V]) alloc() int {
	if i := c.free; i != nilSlot {
		c.free = c.data[i].next
		return i
	}
	c.data = append(c.data, entry[K, V]{})
	return len(c.data) - 1
}

// release clears slot i so it doesn't pin the key or value, then pushes it
// onto the free list.
func (c *LRU[K, V]) release(i int) {
	c.data[i] = entry[K, V]{prev: nilSlot, next: c.free}
	c.free = i
}

func (c *LRU[K, V]) pushFront(i int) {
	ent := &c.data[i]
	ent.prev = nilSlot
	ent.next = c.head
	if c.head != nilSlot {
		c.data[c.head].prev = i
	}
	c.head = i
	if c.tail == nilSlot {
		c.tail = i
	}
}

func (c *LRU[K, V]) unlink(i int) {
	ent := &c.data[i]
	if ent.prev != nilSlot {
		c.data[ent.prev].next = ent.next
	} else {
		c.head = ent.next
	}
	if ent.next != nilSlot {
		c.data[ent.next].prev = ent.prev
	} else {
		c.tail = ent.prev
	}
	ent.prev, ent.next = nilSlot, nilSlot
}

func (c *LRU[K, V]) moveToFront(i int) {
	if c.head == i {
		return
	}
	c.unlink(i)
	c.pushFront(i)
}
