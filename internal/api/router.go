// Package api exposes the lookup service over HTTP with gin.
package api

import (
	"context"

	"github.com/Sternrassler/portal-results/internal/api/handlers"
	"github.com/Sternrassler/portal-results/internal/api/middleware"
	"github.com/Sternrassler/portal-results/pkg/metrics"
	"github.com/gin-gonic/gin"
)

// ServiceName is reported by /health.
const ServiceName = "portal-results"

// Options configures the router.
type Options struct {
	// RecognizerStatus reports the captcha recognizer state on /health.
	RecognizerStatus func() string

	// Ready backs /ready. Nil reports ready.
	Ready func(ctx context.Context) error
}

// NewRouter wires the endpoints:
//
//	GET  /health
//	GET  /ready
//	GET  /metrics
//	POST /single-post
//	POST /range-post
func NewRouter(svc handlers.Lookup, opts Options) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.ErrorHandler())

	router.GET("/health", handlers.Health(ServiceName, opts.RecognizerStatus))
	router.GET("/ready", handlers.Ready(opts.Ready))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	router.POST("/single-post", handlers.Single(svc))
	router.POST("/range-post", handlers.Range(svc))

	return router
}
