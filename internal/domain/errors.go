package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the core components. Handlers map these to HTTP status
// codes; nothing in the core panics on bad input.
var (
	ErrRecordNotFound    = errors.New("Car record not found")
	ErrListingNotFound   = errors.New("Listing not found")
	ErrProfileNotFound   = errors.New("Car profile not found")
	ErrAmbiguousMatch    = errors.New("Ambiguous match: multiple catalog records are equally plausible")
	ErrRevisionConflict  = errors.New("Listing was modified concurrently, retry the operation")
	ErrStaleAggregate    = errors.New("Aggregated profile is stale")
	ErrAlreadyMatched    = errors.New("Listing already matched; use force to rematch")
)

// ValidationError reports malformed input. It is surfaced to the caller and
// never retried or coerced.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("Invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ConfigurationError reports an unknown enum or directive value. The message
// always names the accepted set.
type ConfigurationError struct {
	Field    string
	Value    string
	Accepted []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("Unknown %s %q, accepted values: %s", e.Field, e.Value, strings.Join(e.Accepted, ", "))
}

// NewConfigurationError builds a ConfigurationError.
func NewConfigurationError(field, value string, accepted []string) error {
	return &ConfigurationError{Field: field, Value: value, Accepted: accepted}
}

// IsConfiguration reports whether err is a ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
