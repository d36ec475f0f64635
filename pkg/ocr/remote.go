package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// RemoteConfig configures a RemoteRecognizer.
type RemoteConfig struct {
	// BaseURL of the OCR service, e.g. "http://localhost:9000".
	BaseURL string

	// Timeout per recognition request.
	Timeout time.Duration
}

// RemoteRecognizer delegates recognition to an OCR service over HTTP:
// POST {BaseURL}/recognize with the raw image body, answered by {"text": "..."}.
type RemoteRecognizer struct {
	baseURL    string
	httpClient *http.Client
}

type recognizeResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// NewRemoteRecognizer creates a recognizer for the service at cfg.BaseURL.
func NewRemoteRecognizer(cfg RemoteConfig) (*RemoteRecognizer, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("ocr base url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &RemoteRecognizer{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// RemoteLoader returns a Loader that constructs a RemoteRecognizer and
// verifies the service answers its health check.
func RemoteLoader(cfg RemoteConfig) Loader {
	return func(ctx context.Context) (Recognizer, error) {
		r, err := NewRemoteRecognizer(cfg)
		if err != nil {
			return nil, err
		}
		if err := r.CheckHealth(ctx); err != nil {
			return nil, err
		}
		return r, nil
	}
}

// CheckHealth verifies the service is available.
func (r *RemoteRecognizer) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ocr service not available: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ocr service unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// Recognize implements Recognizer.
func (r *RemoteRecognizer) Recognize(ctx context.Context, image []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/recognize", bytes.NewReader(image))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ocr request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read ocr response: %w", err)
	}

	var out recognizeResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode ocr response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if out.Error != "" {
			return "", fmt.Errorf("ocr service error (status %d): %s", resp.StatusCode, out.Error)
		}
		return "", fmt.Errorf("ocr service error: status %d", resp.StatusCode)
	}
	return out.Text, nil
}
