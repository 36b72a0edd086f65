// Package lrucache implements a fixed size cache that evicts the oldest written entry.
// It is used to remember resolved generic netlink family identifiers by name.
package lrucache

type node[K, V comparable] struct {
	k K
	v V
}

// Cache is not safe for concurrent use.
type Cache[K, V comparable] struct {
	nodes []node[K, V]
	index uint // points to the last written entry
}

func New[K, V comparable](maxSize int) Cache[K, V] {
	if maxSize <= 0 {
		panic("lrucache max size must be > 0")
	}
	return Cache[K, V]{
		nodes: make([]node[K, V], 0, maxSize),
	}
}

// Len returns the number of cached entries.
func (c *Cache[K, V]) Len() int { return len(c.nodes) }

// Cap returns the maximum number of entries before eviction starts.
func (c *Cache[K, V]) Cap() int { return cap(c.nodes) }

// Get returns the most recently pushed value for k.
func (c *Cache[K, V]) Get(k K) (v V, ok bool) {
	// lookup starting from index and then backwards
	i := c.index
	for range len(c.nodes) {
		n := &c.nodes[i]
		if n.k == k {
			return n.v, true
		}
		if i == 0 {
			i = uint(len(c.nodes))
		}
		i--
	}
	return v, ok
}

// Push stores v under k, evicting the oldest written entry when full.
// Push panics on a Cache not created with [New].
func (c *Cache[K, V]) Push(k K, v V) {
	if cap(c.nodes) == 0 {
		panic("lrucache not initialized")
	}
	// write the entry immediately after the one pointed by index (with wrapping)
	if len(c.nodes) < cap(c.nodes) {
		c.nodes = append(c.nodes, node[K, V]{k, v})
		c.index = uint(len(c.nodes) - 1)
	} else {
		c.index++
		if c.index >= uint(len(c.nodes)) {
			c.index = 0
		}
		c.nodes[c.index] = node[K, V]{k, v}
	}
}

// Remove drops every entry for k and reports whether any was present.
// Write order of the remaining entries is preserved.
func (c *Cache[K, V]) Remove(k K) (removed bool) {
	n := len(c.nodes)
	if n == 0 {
		return false
	}
	// Unroll ring into write order starting at the oldest entry.
	oldest := (c.index + 1) % uint(n)
	ordered := make([]node[K, V], 0, n)
	for j := range uint(n) {
		nd := c.nodes[(oldest+j)%uint(n)]
		if nd.k == k {
			removed = true
			continue
		}
		ordered = append(ordered, nd)
	}
	if !removed {
		return false
	}
	c.nodes = append(c.nodes[:0], ordered...)
	c.index = 0
	if len(c.nodes) > 0 {
		c.index = uint(len(c.nodes) - 1)
	}
	return true
}
