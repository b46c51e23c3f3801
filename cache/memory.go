package cache

import (
	"sync"

	"github.com/eventive/eventive"
)

// Memory is the fast in-process cache tier.
type Memory struct {
	entries map[eventive.UserId]eventive.CacheEntry
	mutex   sync.RWMutex
}

var _ eventive.ProfileCache = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{entries: map[eventive.UserId]eventive.CacheEntry{}}
}

func (c *Memory) Get(userId eventive.UserId) (eventive.CacheEntry, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, ok := c.entries[userId]
	return entry, ok
}

func (c *Memory) Set(userId eventive.UserId, entry eventive.CacheEntry) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries[userId] = entry
	return nil
}

func (c *Memory) Invalidate(userId eventive.UserId) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.entries, userId)
	return nil
}
