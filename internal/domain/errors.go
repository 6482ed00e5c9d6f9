package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConstraints signals a malformed constraint or preference object.
	// Never retried.
	ErrInvalidConstraints = errors.New("invalid constraints")
	// ErrUpstreamUnavailable signals that a collaborator (catalog store, embedding
	// provider, geocoder) was unreachable or timed out. Retryable by the caller.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrGeocoderUnavailable signals that the geocoder could not be consulted at all.
	ErrGeocoderUnavailable = errors.New("geocoder unavailable")
)

// ConfigError names the offending field of a malformed constraint object.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidConstraints.Error(), e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConstraints }

// NewConfigError creates a ConfigError for the given field.
func NewConfigError(field, reason string) error {
	return &ConfigError{Field: field, Reason: reason}
}

// Unavailable wraps err so that errors.Is(err, ErrUpstreamUnavailable) holds.
func Unavailable(what string, err error) error {
	return fmt.Errorf("%s: %w: %w", what, ErrUpstreamUnavailable, err)
}
