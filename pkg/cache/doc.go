// Package cache stores successful portal lookups in Redis so repeated
// queries for the same identifier skip the captcha round trip.
//
// Only pages the captcha classifier accepts are stored. Rejected captchas,
// exhausted retries and fetch errors always reach the portal again.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := cache.NewManager(redisClient)
//	factory := cache.NewCachedFactory(portal.NewHTTPFactory(engine, portal.DefaultConfig()), manager, 24*time.Hour)
//
//	// Sessions created by factory consult Redis before fetching.
//	session, err := factory.NewSession(site)
//
// # Metrics
//
//   - results_cache_hits_total - Cache hits
//   - results_cache_misses_total - Cache misses
//   - results_cache_errors_total{operation} - Cache operation errors
package cache
