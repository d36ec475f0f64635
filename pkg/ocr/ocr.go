// Package ocr provides the captcha recognition collaborator and its lifecycle.
//
// The recognition backend is loaded once at process start through an Engine
// and handed by reference to every portal session:
//
//	engine := ocr.NewEngine(ocr.RemoteLoader(cfg), ocr.DefaultEngineConfig())
//	if engine.Initialize(ctx) != ocr.StatusReady {
//		// sessions will fail fast with ocr.ErrUnavailable
//	}
//	factory := portal.NewHTTPFactory(engine, portal.DefaultConfig())
package ocr

import (
	"context"
	"strings"
	"unicode"
)

// Recognizer turns a captcha image into its text.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// RecognizerFunc adapts a function to Recognizer.
type RecognizerFunc func(ctx context.Context, image []byte) (string, error)

// Recognize calls f.
func (f RecognizerFunc) Recognize(ctx context.Context, image []byte) (string, error) {
	return f(ctx, image)
}

// Normalize strips dots and all whitespace from recognized text.
func Normalize(text string) string {
	return strings.Map(func(r rune) rune {
		if r == '.' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)
}
