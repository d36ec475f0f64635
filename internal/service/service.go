// Package service implements single and range result lookups on top of the
// fetch orchestrator and the dispatcher.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/portal-results/pkg/dispatch"
	"github.com/Sternrassler/portal-results/pkg/fetch"
	"github.com/Sternrassler/portal-results/pkg/identifier"
	"github.com/Sternrassler/portal-results/pkg/portal"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrLookupFailed wraps the message of a single lookup that ended fatally.
var ErrLookupFailed = errors.New("lookup failed")

// Options configures a Service.
type Options struct {
	Fetch    fetch.Config
	Dispatch dispatch.Config

	// MaxRangeSize caps the identifiers of one range lookup. 0 is unlimited.
	MaxRangeSize int
}

// DefaultOptions returns 5 attempts, 10 workers and ranges up to 1000.
func DefaultOptions() Options {
	return Options{
		Fetch:        fetch.DefaultConfig(),
		Dispatch:     dispatch.DefaultConfig(),
		MaxRangeSize: 1000,
	}
}

// Service answers lookups through sessions from factory.
type Service struct {
	factory portal.SessionFactory
	opts    Options
	logger  zerolog.Logger
}

// New creates a service.
func New(factory portal.SessionFactory, opts Options) *Service {
	return &Service{
		factory: factory,
		opts:    opts,
		logger:  log.With().Str("component", "service").Logger(),
	}
}

// Single looks up one identifier synchronously. A malformed indexURL
// returns portal.ErrInvalidURL; a fatal lookup returns the outcome together
// with an error wrapping ErrLookupFailed. Exhausted retries are not an error.
func (s *Service) Single(ctx context.Context, indexURL, id string) (fetch.Outcome, error) {
	site, err := portal.ParseIndexURL(indexURL)
	if err != nil {
		return fetch.Outcome{}, err
	}
	id = strings.TrimSpace(id)

	out := fetch.Lookup(ctx, s.factory, site, id, s.opts.Fetch)

	s.logger.Info().
		Str("site", site.Context).
		Str("identifier", id).
		Str("status", string(out.Status)).
		Int("attempts", out.Attempts).
		Dur("duration", out.Duration).
		Msg("Single lookup complete")

	if out.Status == fetch.StatusFatal {
		return out, fmt.Errorf("%w: %s", ErrLookupFailed, out.Err)
	}
	return out, nil
}

// Range looks up every identifier from start to end inclusive. Request
// shape errors (portal.ErrInvalidURL, identifier.ErrMalformedRange,
// identifier.ErrInvalidRangeOrder, identifier.ErrRangeTooLarge) are returned
// before any lookup starts; per-identifier failures live in the map.
func (s *Service) Range(ctx context.Context, indexURL, start, end string) (dispatch.ResultMap, error) {
	site, err := portal.ParseIndexURL(indexURL)
	if err != nil {
		return nil, err
	}

	r, err := identifier.ParseRange(strings.TrimSpace(start), strings.TrimSpace(end))
	if err != nil {
		return nil, err
	}
	if err := r.CheckSize(s.opts.MaxRangeSize); err != nil {
		return nil, err
	}

	begin := time.Now()
	run := dispatch.ForSite(s.factory, site, s.opts.Fetch)
	results := dispatch.NewDispatcher(run, s.opts.Dispatch).Run(ctx, r.All())

	counts := results.Counts()
	s.logger.Info().
		Str("site", site.Context).
		Str("range", r.String()).
		Int("identifiers", len(results)).
		Int("succeeded", counts[fetch.StatusSuccess]).
		Int("exhausted", counts[fetch.StatusRetriesExhausted]).
		Int("failed", counts[fetch.StatusFatal]).
		Dur("duration", time.Since(begin)).
		Msg("Range lookup complete")

	return results, nil
}
