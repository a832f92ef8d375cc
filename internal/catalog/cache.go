package catalog

import (
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// defaultScanCacheSize bounds the memoization layer when the caller passes
// no positive size, which is always the case for the catalog's own cache.
const defaultScanCacheSize = 2048

// ScanCache memoizes pattern-class scans over clinical text so C2/C4/C5
// can re-scan the same request text across tiers without recompiling or
// rerunning every pattern family per call (spec §5: the catalog is
// read-mostly and hot).
type ScanCache struct {
	cache *lru.Cache[string, any]
}

// NewScanCache builds a ScanCache holding up to size entries; size<=0
// falls back to defaultScanCacheSize.
func NewScanCache(size int) *ScanCache {
	if size <= 0 {
		size = defaultScanCacheSize
	}
	c, _ := lru.New[string, any](size)
	return &ScanCache{cache: c}
}

// Key derives the memoization key for a (pattern-class, text) pair.
func Key(patternClass, text string) string {
	sum := sha256.Sum256([]byte(patternClass + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// Get returns the memoized result for key, if present.
func (c *ScanCache) Get(key string) (any, bool) {
	return c.cache.Get(key)
}

// Put memoizes result under key.
func (c *ScanCache) Put(key string, result any) {
	c.cache.Add(key, result)
}

// Scan runs fn only on a cache miss, memoizing its result under
// Key(patternClass, text). Callers pass an idempotent, pure fn.
func (c *ScanCache) Scan(patternClass, text string, fn func() any) any {
	key := Key(patternClass, text)
	if v, ok := c.Get(key); ok {
		return v
	}
	v := fn()
	c.Put(key, v)
	return v
}
