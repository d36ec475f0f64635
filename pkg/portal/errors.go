package portal

import (
	"errors"
	"fmt"
)

// Common errors returned by the portal package.
var (
	// ErrInvalidURL is returned when an index URL does not match the portal path shape.
	ErrInvalidURL = errors.New("invalid index_url format")

	// ErrNoForm is returned when the index page carries no lookup form.
	ErrNoForm = errors.New("lookup form not found")

	// ErrNoCaptcha is returned when the index page carries no captcha image.
	ErrNoCaptcha = errors.New("captcha image not found")
)

// Stage names the step of a portal exchange that failed.
type Stage string

const (
	// StageIndex is the index page load.
	StageIndex Stage = "index"

	// StageCaptcha is the captcha image download and recognition.
	StageCaptcha Stage = "captcha"

	// StageSubmit is the form submission.
	StageSubmit Stage = "submit"
)

// FetchError is an unrecoverable failure of a single fetch.
type FetchError struct {
	Stage      Stage
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("portal %s failed (status %d): %v", e.Stage, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("portal %s failed: %v", e.Stage, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}
