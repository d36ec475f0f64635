package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config key (e.g., "dispatch.workers")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError

	positive := func(field string, v int) {
		if v <= 0 {
			errs = append(errs, ValidationError{Field: field, Value: v, Message: "must be positive"})
		}
	}
	nonNegative := func(field string, v any, negative bool) {
		if negative {
			errs = append(errs, ValidationError{Field: field, Value: v, Message: "must not be negative"})
		}
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, ValidationError{Field: "server.port", Value: c.Server.Port, Message: "must be between 1 and 65535"})
	}
	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.Log.Level)) {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Value:   c.Log.Level,
			Message: fmt.Sprintf("must be one of %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	positive("fetch.max_attempts", c.Fetch.MaxAttempts)
	positive("dispatch.workers", c.Dispatch.Workers)
	positive("ocr.load_attempts", c.OCR.LoadAttempts)

	nonNegative("fetch.retry_delay", c.Fetch.RetryDelay, c.Fetch.RetryDelay < 0)
	nonNegative("fetch.attempt_timeout", c.Fetch.AttemptTimeout, c.Fetch.AttemptTimeout < 0)
	nonNegative("range.max_size", c.Range.MaxSize, c.Range.MaxSize < 0)
	nonNegative("cache.ttl", c.Cache.TTL, c.Cache.TTL < 0)
	nonNegative("redis.db", c.Redis.DB, c.Redis.DB < 0)
	nonNegative("ocr.load_delay", c.OCR.LoadDelay, c.OCR.LoadDelay < 0)

	if c.OCR.URL == "" {
		errs = append(errs, ValidationError{Field: "ocr.url", Value: c.OCR.URL, Message: "is required"})
	}
	return errs
}
