// Package metrics is the index of the Prometheus metrics exported by the
// results fetcher. Metrics are defined with promauto in the package that
// records them; this package exposes the registry they land in.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registerer every package registers with.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the default Prometheus gatherer served by Handler.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the metrics in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Lookup Metrics (pkg/fetch):
//   - results_fetch_attempts_total{verdict} (Counter): Fetch attempts by verdict (success, captcha_retry, error)
//   - results_captcha_retries_total (Counter): Attempts repeated after a rejected captcha
//   - results_retry_exhausted_total (Counter): Lookups that ran out of captcha attempts
//   - results_fetch_fatal_total (Counter): Lookups that failed with an unrecoverable error
//   - results_lookup_duration_seconds{outcome} (Histogram): Complete lookup duration by outcome
//
// Dispatch Metrics (pkg/dispatch):
//   - results_dispatch_jobs_in_flight (Gauge): Lookups currently executing
//   - results_dispatch_jobs_total{status} (Counter): Dispatched lookups by terminal status
//   - results_dispatch_panics_total (Counter): Lookups that panicked
//
// Portal Metrics (pkg/portal):
//   - results_portal_requests_total{stage, status} (Counter): Portal HTTP requests by stage and status
//   - results_portal_request_duration_seconds{stage} (Histogram): Portal HTTP request duration
//
// Recognizer Metrics (pkg/ocr):
//   - results_ocr_engine_ready (Gauge): 1 when the recognizer is loaded
//   - results_ocr_requests_total{result} (Counter): Recognition requests by result
//
// Cache Metrics (pkg/cache):
//   - results_cache_hits_total (Counter): Cache hits
//   - results_cache_misses_total (Counter): Cache misses
//   - results_cache_errors_total{operation} (Counter): Cache operation errors
//
// Example Prometheus Queries:
//
//   # Captcha acceptance rate
//   sum(rate(results_fetch_attempts_total{verdict="success"}[5m])) /
//   sum(rate(results_fetch_attempts_total{verdict!="error"}[5m]))
//
//   # Exhausted lookups per minute
//   rate(results_retry_exhausted_total[1m]) * 60
//
//   # Worker saturation
//   max_over_time(results_dispatch_jobs_in_flight[5m])
//
//   # P95 lookup latency
//   histogram_quantile(0.95, rate(results_lookup_duration_seconds_bucket[5m]))
