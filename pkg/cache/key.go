package cache

import (
	"net/url"
	"strings"

	"github.com/Sternrassler/portal-results/pkg/portal"
)

// CacheKey identifies one identifier's result page on one site.
type CacheKey struct {
	// Site is the portal the page was fetched from.
	Site portal.Site

	// Identifier is the looked up identifier.
	Identifier string
}

// String generates a deterministic cache key string.
// Format: results:host:context:identifier
//
// Example:
//
//	results:results.example.edu:sem1:1AB21CS001
func (k CacheKey) String() string {
	host := k.Site.BaseURL
	if u, err := url.Parse(k.Site.BaseURL); err == nil && u.Host != "" {
		host = u.Host
	}
	parts := []string{"results", strings.ToLower(host), k.Site.Context, k.Identifier}
	return strings.Join(parts, ":")
}
