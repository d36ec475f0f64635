package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Sternrassler/portal-results/internal/config"
	"github.com/Sternrassler/portal-results/internal/testutil"
	"github.com/Sternrassler/portal-results/pkg/fetch"
	"github.com/Sternrassler/portal-results/pkg/ocr"
)

func echoLoader(ctx context.Context) (ocr.Recognizer, error) {
	return testutil.EchoRecognizer, nil
}

func TestNew_EndToEndWithMockPortal(t *testing.T) {
	mock := testutil.NewMockPortal("sem1")
	defer mock.Close()
	mock.FailCaptcha("1AB21CS002", 2)

	a, err := New(context.Background(), config.Default(), Deps{
		Loader:    echoLoader,
		Transport: testutil.NewRewriteTransport(mock.URL()),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	if got := a.RecognizerStatus(); got != string(ocr.StatusReady) {
		t.Fatalf("RecognizerStatus() = %q, want ready", got)
	}
	if err := a.Ready(context.Background()); err != nil {
		t.Errorf("Ready() error = %v", err)
	}

	results, err := a.Service.Range(context.Background(), "https://results.example.edu/sem1/index.php", "1AB21CS001", "1AB21CS003")
	if err != nil {
		t.Fatalf("Range() error = %v", err)
	}
	for _, id := range []string{"1AB21CS001", "1AB21CS002", "1AB21CS003"} {
		out := results[id]
		if out.Status != fetch.StatusSuccess || out.Payload != testutil.ResultPage(id) {
			t.Errorf("results[%s] = %+v", id, out)
		}
	}
	if got := results["1AB21CS002"].Attempts; got != 3 {
		t.Errorf("attempts for 1AB21CS002 = %d, want 3", got)
	}
}

func TestNew_RecognizerUnavailable(t *testing.T) {
	cfg := config.Default()
	cfg.OCR.LoadAttempts = 2
	cfg.OCR.LoadDelay = time.Millisecond

	loader := func(ctx context.Context) (ocr.Recognizer, error) {
		return nil, errors.New("model missing")
	}
	a, err := New(context.Background(), cfg, Deps{Loader: loader})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if got := a.RecognizerStatus(); got != string(ocr.StatusUnavailable) {
		t.Errorf("RecognizerStatus() = %q, want unavailable", got)
	}
	if err := a.Ready(context.Background()); err == nil {
		t.Error("Ready() = nil, want error for unavailable recognizer")
	}
}

func TestNew_RedisUnreachable(t *testing.T) {
	cfg := config.Default()
	cfg.Redis.Addr = "127.0.0.1:1"

	if _, err := New(context.Background(), cfg, Deps{Loader: echoLoader}); err == nil {
		t.Error("New() expected error for unreachable redis")
	}
}
