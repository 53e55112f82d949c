package thumbs

import "sync"

// Cache maps photo paths to thumbnail payloads for one folder session.
// Entries never change once stored; the cache is only ever cleared whole.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]string)}
}

// Get returns the payload cached for path.
func (c *Cache) Get(path string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.entries[path]
	return data, ok
}

// Put stores data for path unless an entry already exists. It reports whether
// the value was stored.
func (c *Cache) Put(path, data string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[path]; ok {
		return false
	}
	c.entries[path] = data
	return true
}

// Len returns the number of cached thumbnails.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]string)
}
