// Package dispatch runs lookups for many identifiers on a bounded worker
// pool and aggregates their outcomes.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/portal-results/pkg/fetch"
	"github.com/Sternrassler/portal-results/pkg/portal"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

var (
	jobsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "results_dispatch_jobs_in_flight",
		Help: "Number of lookups currently executing",
	})

	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "results_dispatch_jobs_total",
		Help: "Total dispatched lookups by terminal status",
	}, []string{"status"})

	panicsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "results_dispatch_panics_total",
		Help: "Total lookups that panicked and were recorded as fatal",
	})
)

// DefaultWorkers is the default concurrency cap.
const DefaultWorkers = 10

// progressEvery is the number of completions between progress log lines.
const progressEvery = 50

// Config holds dispatcher configuration.
type Config struct {
	// Workers is the maximum number of lookups executing at once.
	Workers int
}

// DefaultConfig returns 10 workers.
func DefaultConfig() Config {
	return Config{Workers: DefaultWorkers}
}

// RunFunc looks up one identifier. Each call must use its own session.
type RunFunc func(ctx context.Context, identifier string) fetch.Outcome

// ForSite returns a RunFunc that opens a fresh session on site per identifier.
func ForSite(factory portal.SessionFactory, site portal.Site, cfg fetch.Config) RunFunc {
	return func(ctx context.Context, identifier string) fetch.Outcome {
		return fetch.Lookup(ctx, factory, site, identifier, cfg)
	}
}

// Dispatcher schedules one lookup per identifier on a fixed worker pool.
type Dispatcher struct {
	run    RunFunc
	config Config
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(run RunFunc, cfg Config) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	return &Dispatcher{run: run, config: cfg}
}

// Run looks up every identifier and returns once all lookups have reached
// a terminal state. The map holds exactly one outcome per distinct identifier.
func (d *Dispatcher) Run(ctx context.Context, identifiers []string) ResultMap {
	start := time.Now()
	agg := NewAggregator(identifiers)
	jobs := agg.Identifiers()

	log.Info().
		Int("identifiers", len(jobs)).
		Int("workers", d.config.Workers).
		Msg("Starting dispatch")

	queue := make(chan string, len(jobs))
	for _, id := range jobs {
		queue <- id
	}
	close(queue)

	results := make(chan fetch.Outcome, d.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < d.config.Workers; i++ {
		wg.Add(1)
		go d.worker(ctx, queue, results, &wg, i)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for out := range results {
		if !agg.Record(out) {
			continue
		}
		completed++
		if completed%progressEvery == 0 {
			log.Info().
				Int("completed", completed).
				Int("total", len(jobs)).
				Float64("progress_pct", float64(completed)/float64(len(jobs))*100).
				Msg("Dispatch progress")
		}
	}

	final := agg.Finalize()

	log.Info().
		Int("identifiers", len(jobs)).
		Int("completed", completed).
		Dur("duration", time.Since(start)).
		Msg("Dispatch complete")

	return final
}

func (d *Dispatcher) worker(ctx context.Context, queue <-chan string, results chan<- fetch.Outcome, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	processed := 0

	for id := range queue {
		out := d.runJob(ctx, id)
		jobsTotal.WithLabelValues(string(out.Status)).Inc()
		results <- out
		processed++
	}

	if processed > 0 {
		log.Debug().
			Int("worker_id", workerID).
			Int("jobs_processed", processed).
			Msg("Worker completed")
	}
}

// runJob runs one lookup and attributes its outcome to identifier. A panic
// is recorded as a fatal outcome for this identifier only.
func (d *Dispatcher) runJob(ctx context.Context, identifier string) (out fetch.Outcome) {
	if err := ctx.Err(); err != nil {
		return fetch.FatalOutcome(identifier, err.Error())
	}

	jobsInFlight.Inc()
	defer jobsInFlight.Dec()

	defer func() {
		if r := recover(); r != nil {
			panicsTotal.Inc()
			log.Error().
				Str("identifier", identifier).
				Interface("panic", r).
				Msg("Lookup panicked")
			out = fetch.FatalOutcome(identifier, fmt.Sprintf("lookup panicked: %v", r))
		}
	}()

	out = d.run(ctx, identifier)
	out.Identifier = identifier
	return out
}
