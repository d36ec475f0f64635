// Package portal defines the fetch collaborator consumed by the retry core
// and provides an HTTP implementation that replays the portal's captcha form.
package portal

import "context"

// Session performs lookups against one site. A session is owned by a single
// goroutine for its whole lifetime and is never shared between identifiers.
type Session interface {
	Fetch(ctx context.Context, identifier string) (RawResponse, error)
}

// SessionFactory creates a fresh session bound to site.
type SessionFactory interface {
	NewSession(site Site) (Session, error)
}

// SessionFunc adapts a function to Session.
type SessionFunc func(ctx context.Context, identifier string) (RawResponse, error)

// Fetch calls f.
func (f SessionFunc) Fetch(ctx context.Context, identifier string) (RawResponse, error) {
	return f(ctx, identifier)
}

// FactoryFunc adapts a function to SessionFactory.
type FactoryFunc func(site Site) (Session, error)

// NewSession calls f.
func (f FactoryFunc) NewSession(site Site) (Session, error) {
	return f(site)
}
