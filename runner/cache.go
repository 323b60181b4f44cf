package runner

import "time"

// cacheEntry is the latest successful outcome recorded for a name.
type cacheEntry struct {
	result   any
	storedAt time.Time
}

// resultCache stores the last successful result per task name. Entries
// never expire on their own; their lifetime is the Runner's lifetime.
// All access happens under the Runner's mutex.
type resultCache struct {
	entries map[string]cacheEntry
}

func newResultCache() *resultCache {
	return &resultCache{entries: make(map[string]cacheEntry)}
}

// get returns the entry for name, if present.
func (c *resultCache) get(name string) (cacheEntry, bool) {
	e, ok := c.entries[name]
	return e, ok
}

// put records a successful result for name, replacing any older entry.
// Failures are never written; callers enforce that.
func (c *resultCache) put(name string, result any, now time.Time) {
	c.entries[name] = cacheEntry{result: result, storedAt: now}
}

// clear discards every entry.
func (c *resultCache) clear() {
	c.entries = make(map[string]cacheEntry)
}

// size returns the number of cached names.
func (c *resultCache) size() int {
	return len(c.entries)
}
