// Package fetch runs the per-identifier lookup state machine: fetch,
// classify, and repeat while the portal rejects the captcha.
package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/portal-results/pkg/captcha"
	"github.com/Sternrassler/portal-results/pkg/portal"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultMaxAttempts is the captcha attempt budget per identifier.
const DefaultMaxAttempts = 5

// Prometheus metrics for lookups.
var (
	fetchAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "results_fetch_attempts_total",
		Help: "Total fetch attempts by verdict",
	}, []string{"verdict"})

	captchaRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "results_captcha_retries_total",
		Help: "Total fetch attempts repeated after a rejected captcha",
	})

	retryExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "results_retry_exhausted_total",
		Help: "Total lookups that ran out of captcha attempts",
	})

	fetchFatalTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "results_fetch_fatal_total",
		Help: "Total lookups that failed with an unrecoverable error",
	})

	lookupDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "results_lookup_duration_seconds",
		Help:    "Duration of a complete identifier lookup by outcome",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"outcome"})
)

// Config holds the retry configuration.
type Config struct {
	// MaxAttempts is the number of fetches allowed per identifier
	// (including the first).
	MaxAttempts int

	// RetryDelay is the pause between a rejected captcha and the next
	// attempt. Zero retries back to back.
	RetryDelay time.Duration

	// AttemptTimeout bounds a single fetch. Zero means no bound.
	AttemptTimeout time.Duration
}

// DefaultConfig returns 5 back-to-back attempts without a timeout.
func DefaultConfig() Config {
	return Config{MaxAttempts: DefaultMaxAttempts}
}

// Orchestrator looks up identifiers through the session it owns. It is not
// safe for concurrent use; create one per job.
type Orchestrator struct {
	session portal.Session
	config  Config
	logger  zerolog.Logger
}

// NewOrchestrator creates an orchestrator owning session.
func NewOrchestrator(session portal.Session, cfg Config) *Orchestrator {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	return &Orchestrator{
		session: session,
		config:  cfg,
		logger:  log.With().Str("component", "fetch").Logger(),
	}
}

// Lookup opens a fresh session for site and runs one identifier through it.
func Lookup(ctx context.Context, factory portal.SessionFactory, site portal.Site, identifier string, cfg Config) Outcome {
	session, err := factory.NewSession(site)
	if err != nil {
		fetchFatalTotal.Inc()
		return FatalOutcome(identifier, fmt.Sprintf("create session: %v", err))
	}
	return NewOrchestrator(session, cfg).Run(ctx, identifier)
}

// Run fetches identifier until the portal accepts the captcha, the attempt
// budget is spent, or a fetch fails.
func (o *Orchestrator) Run(ctx context.Context, identifier string) Outcome {
	start := time.Now()
	logger := o.logger.With().Str("identifier", identifier).Logger()

	finish := func(out Outcome) Outcome {
		out.Identifier = identifier
		out.Duration = time.Since(start)
		lookupDuration.WithLabelValues(string(out.Status)).Observe(out.Duration.Seconds())
		return out
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			fetchFatalTotal.Inc()
			logger.Warn().Err(err).Int("attempt", attempt).Msg("Lookup cancelled")
			return finish(Outcome{Status: StatusFatal, Err: err.Error(), Attempts: attempt - 1})
		}

		logger.Debug().Int("attempt", attempt).Msg("Fetching")
		resp, err := o.fetch(ctx, identifier)
		if err != nil {
			fetchAttemptsTotal.WithLabelValues("error").Inc()
			fetchFatalTotal.Inc()
			logger.Error().Err(err).Int("attempt", attempt).Msg("Fetch failed")
			return finish(Outcome{Status: StatusFatal, Err: err.Error(), Attempts: attempt})
		}

		verdict := captcha.Classify(resp)
		fetchAttemptsTotal.WithLabelValues(string(verdict.Kind)).Inc()

		if !verdict.IsRetry() {
			if attempt > 1 {
				logger.Info().Int("attempt", attempt).Msg("Lookup succeeded after captcha retry")
			}
			return finish(Outcome{Status: StatusSuccess, Payload: verdict.Payload, Attempts: attempt})
		}

		if attempt >= o.config.MaxAttempts {
			retryExhaustedTotal.Inc()
			logger.Warn().Int("attempts", attempt).Msg("Captcha attempts exhausted")
			return finish(Outcome{Status: StatusRetriesExhausted, Attempts: attempt})
		}

		captchaRetriesTotal.Inc()
		logger.Warn().
			Int("attempt", attempt).
			Int("max_attempts", o.config.MaxAttempts).
			Msg("Captcha rejected, retrying")

		if o.config.RetryDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(o.config.RetryDelay):
			}
		}
	}
}

func (o *Orchestrator) fetch(ctx context.Context, identifier string) (portal.RawResponse, error) {
	if o.config.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.config.AttemptTimeout)
		defer cancel()
	}
	return o.session.Fetch(ctx, identifier)
}
