package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"
)

const (
	projectCacheTTL    = 5 * time.Minute
	negativeCacheTTL   = 30 * time.Second
	maxCacheEntries    = 10000
	cacheCleanupPeriod = 60 * time.Second
)

// errCachedNotFound is returned for negative cache hits.
var errCachedNotFound = errors.New("project not found (cached)")

type cachedProject struct {
	projectID string
	ownerID   string
	negative  bool
	fetchedAt time.Time
}

// ttl returns the appropriate TTL for this entry.
func (cp cachedProject) ttl() time.Duration {
	if cp.negative {
		return negativeCacheTTL
	}
	return projectCacheTTL
}

// hashKey returns a hex-encoded SHA-256 hash of the API key so raw keys
// are never stored in memory.
func hashKey(apiKey string) string {
	h := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(h[:])
}

// CachedProjectLookup wraps a ProjectLookup with a bounded in-memory cache.
type CachedProjectLookup struct {
	inner ProjectLookup
	mu    sync.RWMutex
	cache map[string]cachedProject
}

// NewCachedProjectLookup creates a caching wrapper around the given ProjectLookup.
// The provided context controls the lifetime of the background eviction goroutine.
func NewCachedProjectLookup(ctx context.Context, inner ProjectLookup) *CachedProjectLookup {
	c := &CachedProjectLookup{
		inner: inner,
		cache: make(map[string]cachedProject),
	}
	go c.evictLoop(ctx)
	return c
}

// evictLoop periodically removes expired entries from the cache.
func (c *CachedProjectLookup) evictLoop(ctx context.Context) {
	ticker := time.NewTicker(cacheCleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			c.evictExpired(time.Now())
			c.mu.Unlock()
		}
	}
}

// evictExpired drops stale entries. Caller must hold c.mu.
func (c *CachedProjectLookup) evictExpired(now time.Time) {
	for k, v := range c.cache {
		if now.Sub(v.fetchedAt) >= v.ttl() {
			delete(c.cache, k)
		}
	}
}

// GetProjectByAPIKey returns a cached project or delegates to the inner lookup.
// Failed lookups are negatively cached for 30s to keep key guessing off the database.
func (c *CachedProjectLookup) GetProjectByAPIKey(ctx context.Context, apiKey string) (string, string, error) {
	hk := hashKey(apiKey)

	c.mu.RLock()
	entry, ok := c.cache[hk]
	if ok && time.Since(entry.fetchedAt) < entry.ttl() {
		c.mu.RUnlock()
		if entry.negative {
			return "", "", errCachedNotFound
		}
		return entry.projectID, entry.ownerID, nil
	}
	c.mu.RUnlock()

	projectID, ownerID, err := c.inner.GetProjectByAPIKey(ctx, apiKey)
	if err != nil {
		c.mu.Lock()
		c.cache[hk] = cachedProject{negative: true, fetchedAt: time.Now()}
		c.mu.Unlock()
		return "", "", err
	}

	c.mu.Lock()
	if len(c.cache) >= maxCacheEntries {
		c.evictExpired(time.Now())
		for k := range c.cache {
			if len(c.cache) < maxCacheEntries {
				break
			}
			delete(c.cache, k)
		}
	}
	c.cache[hk] = cachedProject{projectID: projectID, ownerID: ownerID, fetchedAt: time.Now()}
	c.mu.Unlock()

	return projectID, ownerID, nil
}

// Forget drops any cached entry for apiKey, e.g. after the key is rotated.
func (c *CachedProjectLookup) Forget(apiKey string) {
	c.mu.Lock()
	delete(c.cache, hashKey(apiKey))
	c.mu.Unlock()
}
