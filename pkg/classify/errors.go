package classify

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrRequestFailed is attached to every KindRequestFailed result.
	ErrRequestFailed = errors.New("classify: request failed")

	// ErrTimeout is returned when the per-request deadline expires.
	ErrTimeout = errors.New("classify: request timed out")

	// ErrNoEndpoint is returned when a client is built without an endpoint.
	ErrNoEndpoint = errors.New("classify: endpoint required")

	// ErrNoAPIKey is returned when a backend requires a key.
	ErrNoAPIKey = errors.New("classify: API key required")

	// ErrUnknownEncoding is returned for an unsupported encoding name.
	ErrUnknownEncoding = errors.New("classify: unknown encoding")

	// ErrEmptyImage is returned when a request has no image bytes.
	ErrEmptyImage = errors.New("classify: empty image")

	// ErrNoClassifiers is returned when a chain is built empty.
	ErrNoClassifiers = errors.New("classify: no classifiers")
)

// APIError represents a non-2xx answer from an inference endpoint.
type APIError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Body is the (truncated) response body.
	Body string

	// Provider identifies which backend returned the error.
	Provider string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("classify [%s]: HTTP %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("classify [%s]: HTTP %d: %s", e.Provider, e.StatusCode, e.Body)
}

// IsUnauthorized returns true for HTTP 401 and 403.
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

// IsServerError returns true for HTTP 5xx.
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// ClassifierError wraps an error with backend context.
type ClassifierError struct {
	Provider string
	Err      error
}

// Error implements the error interface.
func (e *ClassifierError) Error() string {
	return fmt.Sprintf("classify [%s]: %v", e.Provider, e.Err)
}

// Unwrap returns the underlying error.
func (e *ClassifierError) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with backend context.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &ClassifierError{Provider: provider, Err: err}
}

// ChainError aggregates the failures of every classifier in a chain.
type ChainError struct {
	Errors []error
}

// Error implements the error interface.
func (e *ChainError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "classify chain: no errors recorded"
	case 1:
		return fmt.Sprintf("classify chain: %v", e.Errors[0])
	default:
		return fmt.Sprintf("classify chain: all %d classifiers failed, last error: %v",
			len(e.Errors), e.Errors[len(e.Errors)-1])
	}
}

// Unwrap exposes every recorded error to errors.Is and errors.As.
func (e *ChainError) Unwrap() []error {
	return e.Errors
}

func markFailed(err error) error {
	if err == nil {
		return ErrRequestFailed
	}
	if errors.Is(err, ErrRequestFailed) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrRequestFailed, err)
}
