package upcoming

import (
	"sync"

	"github.com/finora/finora/pkg/recurrence"
)

type cacheKey struct {
	userId        int
	referenceDate recurrence.CalendarDate
	horizonDays   int
}

// projectionCache keeps the projections of each user for a single reference date. Storing an
// entry for a newer date drops the user's older ones.
//
// Every invalidation bumps the user's generation. A projection is only stored when the
// generation it was loaded under is still current, so a load racing with a change is not kept.
type projectionCache struct {
	mu          sync.Mutex
	byUser      map[int]map[cacheKey]Upcoming
	generations map[int]uint64
}

func newProjectionCache() *projectionCache {
	return &projectionCache{
		byUser:      make(map[int]map[cacheKey]Upcoming),
		generations: make(map[int]uint64),
	}
}

func (c *projectionCache) generation(userId int) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[userId]
}

func (c *projectionCache) get(key cacheKey) (Upcoming, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	u, ok := c.byUser[key.userId][key]
	return u, ok
}

// put stores u unless the user was invalidated after generation was read. It reports whether u
// was stored.
func (c *projectionCache) put(key cacheKey, generation uint64, u Upcoming) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[key.userId] != generation {
		return false
	}
	entries := c.byUser[key.userId]
	if entries == nil {
		entries = make(map[cacheKey]Upcoming)
		c.byUser[key.userId] = entries
	}
	for k := range entries {
		if !k.referenceDate.Equal(key.referenceDate) {
			delete(entries, k)
		}
	}
	entries[key] = u
	return true
}

func (c *projectionCache) invalidate(userId int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byUser, userId)
	c.generations[userId]++
}

func (c *projectionCache) size(userId int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byUser[userId])
}
