package llm

import (
	"hash/fnv"
	"sync"
	"time"
)

// maxCachedContent caps how much of each message body feeds the cache
// key. Long prompts differing only past this point will collide; the
// cache is best-effort, not correctness-critical.
const maxCachedContent = 256

// cacheKey hashes (operation, message roles and truncated contents)
// into a stable 64-bit key.
func cacheKey(operation string, messages []ChatMessage) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(operation))
	for _, m := range messages {
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(m.Role))
		_, _ = h.Write([]byte{0})
		content := m.Content
		if len(content) > maxCachedContent {
			content = content[:maxCachedContent]
		}
		_, _ = h.Write([]byte(content))
	}
	return h.Sum64()
}

type cacheEntry struct {
	resp    ChatResponse
	expires time.Time
}

// responseCache is a TTL-bounded response cache with a hard size limit.
// Expired and excess entries are pruned on write.
type responseCache struct {
	mu      sync.Mutex
	entries map[uint64]cacheEntry
	ttl     time.Duration
	maxSize int

	// now is injectable for testing. Defaults to time.Now.
	now func() time.Time
}

func newResponseCache(ttl time.Duration, maxSize int) *responseCache {
	if maxSize <= 0 {
		maxSize = 256
	}
	return &responseCache{
		entries: make(map[uint64]cacheEntry),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Get returns the cached response for key if present and unexpired.
func (c *responseCache) Get(key uint64) (ChatResponse, bool) {
	if c == nil {
		return ChatResponse{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || c.now().After(e.expires) {
		delete(c.entries, key)
		return ChatResponse{}, false
	}
	return e.resp, true
}

// Put stores a response under key and prunes expired/excess entries.
func (c *responseCache) Put(key uint64, resp ChatResponse) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[key] = cacheEntry{resp: resp, expires: now.Add(c.ttl)}

	for k, e := range c.entries {
		if now.After(e.expires) {
			delete(c.entries, k)
		}
	}

	// Enforce max size by evicting the entries closest to expiry.
	for len(c.entries) > c.maxSize {
		var oldestKey uint64
		var oldest time.Time
		first := true
		for k, e := range c.entries {
			if first || e.expires.Before(oldest) {
				oldestKey, oldest = k, e.expires
				first = false
			}
		}
		delete(c.entries, oldestKey)
	}
}

// Len returns the number of cached entries, counting expired ones that
// have not been pruned yet.
func (c *responseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
