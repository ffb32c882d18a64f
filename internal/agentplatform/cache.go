package agentplatform

import "sync"

// BlockCache remembers the content hash of the last memory block value
// successfully written for an (agent, label) pair, so the lifecycle manager
// can skip a network call when a freshly built block hashes the same as
// what is already on the platform (§4.6/§4.7).
//
// It is a plain in-process cache: a process restart loses it, which just
// costs one redundant write per block on the next pass, not a correctness
// problem.
type BlockCache struct {
	mu     sync.Mutex
	hashes map[string]string // "<agentID>/<label>" -> content hash
}

// NewBlockCache builds an empty BlockCache.
func NewBlockCache() *BlockCache {
	return &BlockCache{hashes: make(map[string]string)}
}

func key(agentID, label string) string { return agentID + "/" + label }

// Get returns the cached hash for (agentID, label) and whether it exists.
func (c *BlockCache) Get(agentID, label string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.hashes[key(agentID, label)]
	return h, ok
}

// Set records the hash most recently written for (agentID, label).
func (c *BlockCache) Set(agentID, label, hash string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hashes[key(agentID, label)] = hash
}

// Invalidate forgets a cached hash, forcing the next write through.
func (c *BlockCache) Invalidate(agentID, label string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.hashes, key(agentID, label))
}

// Preload seeds the cache for a restored agent binding (§3.1's
// block_hashes), avoiding a redundant write on the first pass after a
// process restart.
func (c *BlockCache) Preload(agentID string, hashes map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for label, hash := range hashes {
		c.hashes[key(agentID, label)] = hash
	}
}

// Snapshot returns every cached (label -> hash) pair for one agent, for
// persisting back to the State Store's agent_bindings.block_hashes.
func (c *BlockCache) Snapshot(agentID string) map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string)
	prefix := agentID + "/"
	for k, v := range c.hashes {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			out[k[len(prefix):]] = v
		}
	}
	return out
}
