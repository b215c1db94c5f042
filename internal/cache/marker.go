package cache

import (
	"sort"
	"sync"
)

// MarkerCache maps QR payloads to the storage IDs of their tracked markers
// for the current session.
type MarkerCache struct {
	mu  sync.Mutex
	ids map[string]uint
}

func NewMarkerCache() *MarkerCache {
	return &MarkerCache{ids: make(map[string]uint)}
}

// Get returns the ID cached for payload.
func (c *MarkerCache) Get(payload string) (uint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.ids[payload]
	return id, ok
}

// Resolve returns the ID for payload, calling create on a miss and caching
// its result. create runs under the cache lock, so a payload is created at
// most once; a failed create caches nothing. created reports whether create
// ran successfully.
func (c *MarkerCache) Resolve(payload string, create func() (uint, error)) (id uint, created bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id, ok := c.ids[payload]; ok {
		return id, false, nil
	}
	id, err = create()
	if err != nil {
		return 0, false, err
	}
	c.ids[payload] = id
	return id, true, nil
}

// Payloads lists the cached payloads in sorted order.
func (c *MarkerCache) Payloads() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.ids))
	for p := range c.ids {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (c *MarkerCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.ids)
}

// Reset forgets every payload.
func (c *MarkerCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.ids)
}
