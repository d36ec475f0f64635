package ocr

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ocrEngineReady = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "results_ocr_engine_ready",
		Help: "1 when the captcha recognition engine is loaded, 0 otherwise",
	})

	ocrRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "results_ocr_requests_total",
		Help: "Total captcha recognition requests by result",
	}, []string{"result"})
)

// ErrUnavailable is returned by an engine that is not loaded or failed to load.
var ErrUnavailable = errors.New("captcha recognizer unavailable")

// Status is the lifecycle state of an Engine.
type Status string

const (
	// StatusUninitialized means Initialize has not been called.
	StatusUninitialized Status = "uninitialized"

	// StatusReady means the backend loaded and Recognize is served.
	StatusReady Status = "ready"

	// StatusUnavailable means every load attempt failed. It is permanent.
	StatusUnavailable Status = "unavailable"
)

// Loader loads the recognition backend.
type Loader func(ctx context.Context) (Recognizer, error)

// EngineConfig controls backend loading.
type EngineConfig struct {
	// LoadAttempts is the number of load attempts before giving up.
	LoadAttempts int

	// LoadDelay is the pause between load attempts.
	LoadDelay time.Duration
}

// DefaultEngineConfig returns 3 load attempts spaced 2 seconds apart.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		LoadAttempts: 3,
		LoadDelay:    2 * time.Second,
	}
}

// Engine owns the recognizer lifecycle. It is safe for concurrent use once
// Initialize has returned.
type Engine struct {
	loader Loader
	config EngineConfig
	logger zerolog.Logger

	once    sync.Once
	mu      sync.RWMutex
	status  Status
	backend Recognizer
	loadErr error
}

// NewEngine creates an engine in StatusUninitialized.
func NewEngine(loader Loader, cfg EngineConfig) *Engine {
	if cfg.LoadAttempts <= 0 {
		cfg.LoadAttempts = 1
	}
	return &Engine{
		loader: loader,
		config: cfg,
		logger: log.With().Str("component", "ocr-engine").Logger(),
		status: StatusUninitialized,
	}
}

// Initialize loads the backend. Only the first call does any work; later
// calls return the status reached by the first.
func (e *Engine) Initialize(ctx context.Context) Status {
	e.once.Do(func() {
		backend, err := e.load(ctx)

		e.mu.Lock()
		defer e.mu.Unlock()
		if err != nil {
			e.status = StatusUnavailable
			e.loadErr = err
			ocrEngineReady.Set(0)
			return
		}
		e.status = StatusReady
		e.backend = backend
		ocrEngineReady.Set(1)
	})
	return e.Status()
}

func (e *Engine) load(ctx context.Context) (Recognizer, error) {
	var lastErr error
	for attempt := 1; attempt <= e.config.LoadAttempts; attempt++ {
		e.logger.Info().
			Int("attempt", attempt).
			Int("max_attempts", e.config.LoadAttempts).
			Msg("Loading captcha recognizer")

		backend, err := e.loader(ctx)
		if err == nil && backend == nil {
			err = errors.New("loader returned no recognizer")
		}
		if err == nil {
			e.logger.Info().Int("attempt", attempt).Msg("Captcha recognizer loaded")
			return backend, nil
		}
		lastErr = err
		e.logger.Warn().Err(err).Int("attempt", attempt).Msg("Captcha recognizer load failed")

		if attempt == e.config.LoadAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(e.config.LoadDelay):
		}
	}

	e.logger.Error().Err(lastErr).
		Int("max_attempts", e.config.LoadAttempts).
		Msg("Captcha recognizer permanently unavailable")
	return nil, fmt.Errorf("load recognizer after %d attempts: %w", e.config.LoadAttempts, lastErr)
}

// Status returns the current lifecycle state.
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status
}

// Err returns the final load error of an unavailable engine.
func (e *Engine) Err() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.loadErr
}

// Recognize implements Recognizer. It fails with ErrUnavailable unless the
// engine is ready.
func (e *Engine) Recognize(ctx context.Context, image []byte) (string, error) {
	e.mu.RLock()
	backend, status := e.backend, e.status
	e.mu.RUnlock()

	if status != StatusReady {
		ocrRequestsTotal.WithLabelValues("unavailable").Inc()
		return "", fmt.Errorf("%w (status %s)", ErrUnavailable, status)
	}

	text, err := backend.Recognize(ctx, image)
	if err != nil {
		ocrRequestsTotal.WithLabelValues("error").Inc()
		return "", err
	}
	ocrRequestsTotal.WithLabelValues("ok").Inc()
	return Normalize(text), nil
}
