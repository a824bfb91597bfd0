package devicegraph

// Cache memoizes values derived from one graph, keyed by sid. It replaces
// hidden mutation behind read-only accessors: the cache is explicit, owned by
// the caller, and drops every entry as soon as the graph's generation moves.
//
// The zero value is not usable - use NewCache.
type Cache[V any] struct {
	g    *Graph
	gen  uint64
	vals map[SID]V
}

// NewCache creates an empty cache bound to g.
func NewCache[V any](g *Graph) *Cache[V] {
	return &Cache[V]{g: g, gen: g.Generation(), vals: make(map[SID]V)}
}

func (c *Cache[V]) sync() {
	if c.gen != c.g.Generation() {
		clear(c.vals)
		c.gen = c.g.Generation()
	}
}

// Get returns the cached value for sid, if still valid.
func (c *Cache[V]) Get(sid SID) (V, bool) {
	c.sync()
	v, ok := c.vals[sid]
	return v, ok
}

// Set stores v for sid.
func (c *Cache[V]) Set(sid SID, v V) {
	c.sync()
	c.vals[sid] = v
}

// GetOrCompute returns the cached value for sid or computes and stores it.
// Errors are not cached.
func (c *Cache[V]) GetOrCompute(sid SID, compute func() (V, error)) (V, error) {
	if v, ok := c.Get(sid); ok {
		return v, nil
	}
	v, err := compute()
	if err != nil {
		return v, err
	}
	c.Set(sid, v)
	return v, nil
}

// Len returns the number of valid entries.
func (c *Cache[V]) Len() int {
	c.sync()
	return len(c.vals)
}
