// Package cache holds payloads of entries that are not currently live.
//
// Leaving a room puts the live, possibly edited, payload of every node here
// keyed by path. Entering the room again takes it back out: an entry is
// consumed by the first lookup. There is no size bound or expiry; the
// working set is one room.
package cache

import (
	"sort"
	"sync"

	"github.com/agentic-research/dirworld/api"
)

type Cache struct {
	mu      sync.Mutex
	entries map[string]*api.Payload
}

func New() *Cache {
	return &Cache{entries: make(map[string]*api.Payload)}
}

// Put stores p under path, replacing any earlier entry.
func (c *Cache) Put(path string, p *api.Payload) {
	if p == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = p
}

// Take removes and returns the entry for path.
func (c *Cache) Take(path string) (*api.Payload, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.entries[path]
	if ok {
		delete(c.entries, path)
	}
	return p, ok
}

// Peek returns the entry for path without consuming it.
func (c *Cache) Peek(path string) (*api.Payload, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.entries[path]
	return p, ok
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Paths lists cached paths in sorted order.
func (c *Cache) Paths() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.entries))
	for p := range c.entries {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Snapshot copies every entry, for spilling to a Store.
func (c *Cache) Snapshot() map[string]*api.Payload {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]*api.Payload, len(c.entries))
	for k, v := range c.entries {
		out[k] = v.Clone()
	}
	return out
}

// Load adds entries, replacing existing ones for the same paths.
func (c *Cache) Load(entries map[string]*api.Payload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range entries {
		if v != nil {
			c.entries[k] = v
		}
	}
}
