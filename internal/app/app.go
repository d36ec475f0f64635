// Package app assembles the lookup service from configuration: recognizer
// engine, portal session factory, optional Redis result cache.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Sternrassler/portal-results/internal/config"
	"github.com/Sternrassler/portal-results/internal/service"
	"github.com/Sternrassler/portal-results/pkg/cache"
	"github.com/Sternrassler/portal-results/pkg/ocr"
	"github.com/Sternrassler/portal-results/pkg/portal"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// App holds the assembled components.
type App struct {
	Service *service.Service
	Engine  *ocr.Engine
	Redis   *redis.Client
}

// Deps overrides components for tests. Nil fields are built from config.
type Deps struct {
	// Loader replaces the remote OCR loader.
	Loader ocr.Loader

	// Factory replaces the HTTP session factory.
	Factory portal.SessionFactory

	// Transport is used by the HTTP session factory.
	Transport http.RoundTripper
}

// New builds the application. The recognizer is loaded before New returns;
// an unavailable recognizer is logged and every lookup then fails fatally.
func New(ctx context.Context, cfg *config.Config, deps Deps) (*App, error) {
	loader := deps.Loader
	if loader == nil {
		loader = ocr.RemoteLoader(cfg.RemoteOCRConfig())
	}
	engine := ocr.NewEngine(loader, cfg.EngineConfig())
	if status := engine.Initialize(ctx); status != ocr.StatusReady {
		log.Error().Err(engine.Err()).Str("status", string(status)).Msg("Captcha recognizer unavailable")
	}

	var factory portal.SessionFactory = deps.Factory
	if factory == nil {
		httpFactory := portal.NewHTTPFactory(engine, cfg.PortalConfig())
		if deps.Transport != nil {
			httpFactory.SetTransport(deps.Transport)
		}
		factory = httpFactory
	}

	a := &App{Engine: engine}

	if cfg.Redis.Addr != "" {
		a.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		manager := cache.NewManager(a.Redis)
		if err := manager.Ping(ctx); err != nil {
			a.Redis.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		log.Info().Str("addr", cfg.Redis.Addr).Dur("ttl", cfg.Cache.TTL).Msg("Result cache enabled")
		factory = cache.NewCachedFactory(factory, manager, cfg.Cache.TTL)
	}

	a.Service = service.New(factory, service.Options{
		Fetch:        cfg.FetchConfig(),
		Dispatch:     cfg.DispatchConfig(),
		MaxRangeSize: cfg.Range.MaxSize,
	})
	return a, nil
}

// RecognizerStatus reports the engine state.
func (a *App) RecognizerStatus() string {
	return string(a.Engine.Status())
}

// Ready reports whether lookups can succeed: the recognizer must be loaded
// and, when caching is enabled, Redis must answer.
func (a *App) Ready(ctx context.Context) error {
	if status := a.Engine.Status(); status != ocr.StatusReady {
		return fmt.Errorf("captcha recognizer %s", status)
	}
	if a.Redis != nil {
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// Close releases the Redis connection.
func (a *App) Close() error {
	if a.Redis != nil {
		return a.Redis.Close()
	}
	return nil
}
