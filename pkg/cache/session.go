package cache

import (
	"context"
	"errors"
	"time"

	"github.com/Sternrassler/portal-results/pkg/captcha"
	"github.com/Sternrassler/portal-results/pkg/portal"
	"github.com/rs/zerolog/log"
)

// Store is the subset of Manager used by cached sessions.
type Store interface {
	Get(ctx context.Context, key CacheKey) (*CacheEntry, error)
	Set(ctx context.Context, key CacheKey, entry *CacheEntry) error
}

// CachedFactory wraps a SessionFactory so its sessions serve accepted result
// pages from the store.
type CachedFactory struct {
	next  portal.SessionFactory
	store Store
	ttl   time.Duration
}

// NewCachedFactory creates a factory caching accepted pages for ttl.
func NewCachedFactory(next portal.SessionFactory, store Store, ttl time.Duration) *CachedFactory {
	return &CachedFactory{next: next, store: store, ttl: ttl}
}

// NewSession implements portal.SessionFactory.
func (f *CachedFactory) NewSession(site portal.Site) (portal.Session, error) {
	inner, err := f.next.NewSession(site)
	if err != nil {
		return nil, err
	}
	return &CachedSession{next: inner, store: f.store, site: site, ttl: f.ttl}, nil
}

// CachedSession consults the store before fetching and stores pages the
// captcha classifier accepts. Store failures never fail a fetch.
type CachedSession struct {
	next  portal.Session
	store Store
	site  portal.Site
	ttl   time.Duration
}

// Fetch implements portal.Session.
func (s *CachedSession) Fetch(ctx context.Context, identifier string) (portal.RawResponse, error) {
	key := CacheKey{Site: s.site, Identifier: identifier}

	entry, err := s.store.Get(ctx, key)
	switch {
	case err == nil:
		log.Debug().Str("key", key.String()).Msg("Serving result from cache")
		return portal.HTMLResponse(entry.HTML), nil
	case !errors.Is(err, ErrCacheMiss):
		log.Warn().Err(err).Str("key", key.String()).Msg("Cache read failed")
	}

	resp, err := s.next.Fetch(ctx, identifier)
	if err != nil {
		return resp, err
	}

	if verdict := captcha.Classify(resp); !verdict.IsRetry() && s.ttl > 0 {
		if err := s.store.Set(ctx, key, NewEntry(verdict.Payload, s.ttl)); err != nil {
			log.Warn().Err(err).Str("key", key.String()).Msg("Cache write failed")
		}
	}
	return resp, nil
}
