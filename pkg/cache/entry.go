package cache

import "time"

// CacheEntry is a cached result page.
type CacheEntry struct {
	// HTML is the accepted result page.
	HTML string `json:"html"`

	// Expires is when the entry becomes stale.
	Expires time.Time `json:"expires"`

	// CachedAt is when the page was stored.
	CachedAt time.Time `json:"cached_at"`
}

// NewEntry creates an entry for html that lives for ttl.
func NewEntry(html string, ttl time.Duration) *CacheEntry {
	now := time.Now()
	return &CacheEntry{HTML: html, Expires: now.Add(ttl), CachedAt: now}
}

// IsExpired returns true if the cache entry has expired.
func (e *CacheEntry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *CacheEntry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
