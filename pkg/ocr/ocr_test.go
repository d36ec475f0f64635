package ocr

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ab12", "ab12"},
		{"a b.1 2", "ab12"},
		{" x\ty\n.z. ", "xyz"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEngine_ReadyAfterRetry(t *testing.T) {
	var calls int32
	loader := func(ctx context.Context) (Recognizer, error) {
		if atomic.AddInt32(&calls, 1) < 2 {
			return nil, errors.New("model download failed")
		}
		return RecognizerFunc(func(ctx context.Context, image []byte) (string, error) {
			return "a1 b.2", nil
		}), nil
	}

	e := NewEngine(loader, EngineConfig{LoadAttempts: 3, LoadDelay: time.Millisecond})
	if got := e.Status(); got != StatusUninitialized {
		t.Fatalf("Status() = %q, want %q", got, StatusUninitialized)
	}

	if got := e.Initialize(context.Background()); got != StatusReady {
		t.Fatalf("Initialize() = %q, want %q (err %v)", got, StatusReady, e.Err())
	}
	if calls != 2 {
		t.Errorf("loader calls = %d, want 2", calls)
	}

	text, err := e.Recognize(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if text != "a1b2" {
		t.Errorf("Recognize() = %q, want normalized %q", text, "a1b2")
	}
}

func TestEngine_PermanentlyUnavailable(t *testing.T) {
	var calls int32
	loader := func(ctx context.Context) (Recognizer, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("no model")
	}

	e := NewEngine(loader, EngineConfig{LoadAttempts: 3, LoadDelay: time.Millisecond})
	if got := e.Initialize(context.Background()); got != StatusUnavailable {
		t.Fatalf("Initialize() = %q, want %q", got, StatusUnavailable)
	}
	if e.Err() == nil {
		t.Error("Err() = nil, want load error")
	}

	// A second Initialize must not retry the load.
	e.Initialize(context.Background())
	if calls != 3 {
		t.Errorf("loader calls = %d, want 3", calls)
	}

	if _, err := e.Recognize(context.Background(), nil); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Recognize() error = %v, want %v", err, ErrUnavailable)
	}
}

func TestEngine_UninitializedRecognize(t *testing.T) {
	e := NewEngine(func(ctx context.Context) (Recognizer, error) { return nil, nil }, DefaultEngineConfig())
	if _, err := e.Recognize(context.Background(), nil); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Recognize() error = %v, want %v", err, ErrUnavailable)
	}
}

func TestDefaultEngineConfig(t *testing.T) {
	cfg := DefaultEngineConfig()
	if cfg.LoadAttempts != 3 {
		t.Errorf("LoadAttempts = %d, want 3", cfg.LoadAttempts)
	}
	if cfg.LoadDelay != 2*time.Second {
		t.Errorf("LoadDelay = %v, want 2s", cfg.LoadDelay)
	}
}

func newOCRServer(t *testing.T, healthy bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/recognize", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		if string(body) == "bad" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"error":"unreadable image"}`))
			return
		}
		w.Write([]byte(`{"text":"` + string(body) + `"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRemoteRecognizer(t *testing.T) {
	srv := newOCRServer(t, true)

	r, err := NewRemoteRecognizer(RemoteConfig{BaseURL: srv.URL + "/"})
	if err != nil {
		t.Fatalf("NewRemoteRecognizer() error = %v", err)
	}

	text, err := r.Recognize(context.Background(), []byte("x7k2"))
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if text != "x7k2" {
		t.Errorf("Recognize() = %q, want %q", text, "x7k2")
	}

	if _, err := r.Recognize(context.Background(), []byte("bad")); err == nil {
		t.Error("Recognize() expected error for rejected image")
	}
}

func TestRemoteLoader(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		srv := newOCRServer(t, true)
		e := NewEngine(RemoteLoader(RemoteConfig{BaseURL: srv.URL}), EngineConfig{LoadAttempts: 1})
		if got := e.Initialize(context.Background()); got != StatusReady {
			t.Errorf("Initialize() = %q, want %q", got, StatusReady)
		}
	})

	t.Run("unhealthy", func(t *testing.T) {
		srv := newOCRServer(t, false)
		e := NewEngine(RemoteLoader(RemoteConfig{BaseURL: srv.URL}), EngineConfig{LoadAttempts: 2, LoadDelay: time.Millisecond})
		if got := e.Initialize(context.Background()); got != StatusUnavailable {
			t.Errorf("Initialize() = %q, want %q", got, StatusUnavailable)
		}
	})

	t.Run("missing url", func(t *testing.T) {
		if _, err := NewRemoteRecognizer(RemoteConfig{}); err == nil {
			t.Error("NewRemoteRecognizer() expected error for empty base url")
		}
	})
}
