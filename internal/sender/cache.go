package sender

// ThreadCache remembers which resolved thread name the chat service
// assigned to each (space, thread key) pair, so repeat sends reply into
// the existing thread without another resolution round trip.
//
// The cache is process-lifetime scoped with no eviction; at one entry
// per live conversation that is an accepted tradeoff. It is NOT safe
// for concurrent use: the flow host runs at most one turn at a time per
// process, and a concurrent host must serialize sends externally.
type ThreadCache struct {
	entries map[string]string
}

// NewThreadCache creates an empty cache.
func NewThreadCache() *ThreadCache {
	return &ThreadCache{entries: make(map[string]string)}
}

func cacheKey(space, threadKey string) string {
	return space + ":" + threadKey
}

// Get returns the cached thread name for (space, threadKey).
func (c *ThreadCache) Get(space, threadKey string) (string, bool) {
	name, ok := c.entries[cacheKey(space, threadKey)]
	return name, ok
}

// Put records the resolved thread name for (space, threadKey).
func (c *ThreadCache) Put(space, threadKey, threadName string) {
	if threadKey == "" || threadName == "" {
		return
	}
	c.entries[cacheKey(space, threadKey)] = threadName
}

// Len reports the number of cached threads.
func (c *ThreadCache) Len() int {
	return len(c.entries)
}

// Clear drops all entries.
func (c *ThreadCache) Clear() {
	c.entries = make(map[string]string)
}
