package router

import (
	"sync"
	"time"

	"github.com/caesar4321/confio-go/groupbuilder"
)

// groupCache holds prepared groups between the prepare and submit calls.
// Entries are in-memory only: a restart drops them, and the matching records
// are flipped to expired by the sweeper once their TTL passes.
type groupCache struct {
	mu     sync.Mutex
	groups map[string]*groupbuilder.PreparedGroup
}

func newGroupCache() *groupCache {
	return &groupCache{groups: make(map[string]*groupbuilder.PreparedGroup)}
}

func (c *groupCache) Put(pg *groupbuilder.PreparedGroup) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.groups[pg.OpID] = pg
}

// Take removes and returns the group, so a prepared group can be submitted at
// most once.
func (c *groupCache) Take(opID string) (*groupbuilder.PreparedGroup, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pg, ok := c.groups[opID]
	if ok {
		delete(c.groups, opID)
	}
	return pg, ok
}

func (c *groupCache) PurgeExpired(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for id, pg := range c.groups {
		if pg.Expired(now) {
			delete(c.groups, id)
			n++
		}
	}
	return n
}

func (c *groupCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.groups)
}
