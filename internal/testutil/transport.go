package testutil

import (
	"context"
	"net/http"
	"net/url"

	"github.com/Sternrassler/portal-results/pkg/ocr"
)

// RewriteTransport sends every request to target's scheme and host while
// keeping the path. It lets "https://results.example.edu/..." URLs reach a
// local mock portal.
type RewriteTransport struct {
	Target *url.URL
	Base   http.RoundTripper
}

// NewRewriteTransport creates a transport for the server at rawURL.
func NewRewriteTransport(rawURL string) *RewriteTransport {
	u, err := url.Parse(rawURL)
	if err != nil {
		panic(err)
	}
	return &RewriteTransport{Target: u}
}

// RoundTrip implements http.RoundTripper.
func (t *RewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.URL.Scheme = t.Target.Scheme
	out.URL.Host = t.Target.Host
	out.Host = t.Target.Host

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(out)
}

// EchoRecognizer answers a captcha with the image bytes as text, which is
// correct for MockPortal captchas.
var EchoRecognizer = ocr.RecognizerFunc(func(ctx context.Context, image []byte) (string, error) {
	return string(image), nil
})

// WrongRecognizer always answers a captcha incorrectly.
var WrongRecognizer = ocr.RecognizerFunc(func(ctx context.Context, image []byte) (string, error) {
	return "wrong", nil
})
