// Package cache memoizes decoded working images. Uploads are content
// addressed, so a decode result keyed on the upload id never goes stale and
// repeated render calls skip the expensive codec work.
package cache

import (
	"sync"

	"github.com/pixeldesk/pixeldesk/internal/decoder"
)

type DecodeCache struct {
	mu         sync.RWMutex
	entries    map[string]*decoder.Decoded
	maxEntries int
}

// New builds a decode cache. maxEntries <= 0 means unbounded.
func New(maxEntries int) *DecodeCache {
	return &DecodeCache{
		entries:    make(map[string]*decoder.Decoded),
		maxEntries: maxEntries,
	}
}

func (c *DecodeCache) Get(id string) (*decoder.Decoded, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.entries[id]
	return d, ok
}

// Put stores a decode result. When the cache is full and the id is new, the
// entry is dropped rather than evicting; content ids repeat across requests
// so the hot set stays resident on its own.
func (c *DecodeCache) Put(id string, d *decoder.Decoded) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[id]; !ok && c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		return
	}
	c.entries[id] = d
}

func (c *DecodeCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
