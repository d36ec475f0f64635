package fetch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status is the terminal state of one identifier's lookup.
type Status string

const (
	// StatusSuccess carries the result page in Payload.
	StatusSuccess Status = "success"

	// StatusRetriesExhausted means every attempt had its captcha rejected.
	StatusRetriesExhausted Status = "retries_exhausted"

	// StatusFatal means the lookup failed with Err and was not retried.
	StatusFatal Status = "fatal"
)

// ExhaustedMarker returns the literal value reported for an identifier whose
// captcha was rejected attempts times.
func ExhaustedMarker(attempts int) string {
	return fmt.Sprintf("FAILED AFTER %d RETRIES (CAPTCHA ERROR)", attempts)
}

// RetriesExhaustedMarker is the marker for the default attempt budget.
var RetriesExhaustedMarker = ExhaustedMarker(DefaultMaxAttempts)

// Outcome is the immutable result of one identifier's lookup.
type Outcome struct {
	Identifier string
	Status     Status
	Payload    string
	Err        string
	Attempts   int
	Duration   time.Duration
}

// FatalOutcome builds a StatusFatal outcome.
func FatalOutcome(identifier, message string) Outcome {
	return Outcome{Identifier: identifier, Status: StatusFatal, Err: message}
}

// Value returns the legacy string form of the outcome: the payload, the
// retries exhausted marker, or the JSON document {"error": message}.
func (o Outcome) Value() string {
	switch o.Status {
	case StatusSuccess:
		return o.Payload
	case StatusRetriesExhausted:
		attempts := o.Attempts
		if attempts <= 0 {
			attempts = DefaultMaxAttempts
		}
		return ExhaustedMarker(attempts)
	default:
		return ErrorDocument(o.Err)
	}
}

// ErrorDocument renders message as {"error": message}.
func ErrorDocument(message string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(message); err != nil {
		return `{"error": "unknown error"}`
	}
	return `{"error": ` + strings.TrimRight(buf.String(), "\n") + `}`
}
