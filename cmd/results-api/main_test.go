package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/portal-results/internal/app"
	"github.com/Sternrassler/portal-results/internal/config"
	"github.com/Sternrassler/portal-results/internal/testutil"
	"github.com/Sternrassler/portal-results/pkg/ocr"
	"github.com/gin-gonic/gin"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupTestRedis(t *testing.T) (string, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := redisC.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := redisC.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	return host + ":" + port.Port(), func() { redisC.Terminate(ctx) }
}

func echoLoader(context.Context) (ocr.Recognizer, error) {
	return testutil.EchoRecognizer, nil
}

func newTestServer(t *testing.T, cfg *config.Config, loader ocr.Loader) (*app.App, http.Handler) {
	t.Helper()
	a, err := app.New(context.Background(), cfg, app.Deps{Loader: loader})
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a, newServer(cfg, a).Handler
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestNewServer_Addr(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Port = 9191
	a, _ := newTestServer(t, cfg, echoLoader)
	if got := newServer(cfg, a).Addr; got != ":9191" {
		t.Errorf("Addr = %q, want :9191", got)
	}
}

func TestHealthEndpoint(t *testing.T) {
	_, h := newTestServer(t, config.Default(), echoLoader)

	w := get(h, "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["status"] != "ok" || body["recognizer"] != string(ocr.StatusReady) {
		t.Errorf("body = %v", body)
	}
}

func TestReadyEndpoint(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		_, h := newTestServer(t, config.Default(), echoLoader)
		if w := get(h, "/ready"); w.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d: %s", w.Code, w.Body.String())
		}
	})

	t.Run("not_ready_recognizer_unavailable", func(t *testing.T) {
		cfg := config.Default()
		cfg.OCR.LoadAttempts = 1
		cfg.OCR.LoadDelay = time.Millisecond
		loader := func(context.Context) (ocr.Recognizer, error) {
			return nil, errors.New("model missing")
		}
		_, h := newTestServer(t, cfg, loader)

		w := get(h, "/ready")
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("Expected status 503, got %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), "recognizer") {
			t.Errorf("body = %s, want recognizer failure", w.Body.String())
		}
	})

	t.Run("not_ready_redis_down", func(t *testing.T) {
		addr, cleanup := setupTestRedis(t)
		defer cleanup()

		cfg := config.Default()
		cfg.Redis.Addr = addr
		a, h := newTestServer(t, cfg, echoLoader)

		if w := get(h, "/ready"); w.Code != http.StatusOK {
			t.Fatalf("Expected status 200 with Redis up, got %d: %s", w.Code, w.Body.String())
		}

		// Close Redis to simulate failure
		a.Redis.Close()

		if w := get(h, "/ready"); w.Code != http.StatusServiceUnavailable {
			t.Errorf("Expected status 503, got %d", w.Code)
		}
	})
}

func TestMetricsEndpoint(t *testing.T) {
	_, h := newTestServer(t, config.Default(), echoLoader)

	w := get(h, "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	for _, name := range []string{"results_captcha_retries_total", "results_dispatch_jobs_in_flight"} {
		if !strings.Contains(w.Body.String(), name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}
