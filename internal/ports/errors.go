package ports

import (
	"errors"
	"fmt"
	"net/http"
)

// Common infrastructure errors that can occur during external service
// interactions.
var (
	// ErrServiceUnavailable indicates that the external service is unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrNotFound indicates that a requested entity does not exist upstream.
	ErrNotFound = errors.New("not found")

	// ErrAuthenticationFailed indicates that authentication with the
	// service failed.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrForbidden indicates that the caller may not access the entity.
	ErrForbidden = errors.New("forbidden")

	// ErrConfigNotFound indicates that required configuration is missing.
	ErrConfigNotFound = errors.New("configuration not found")
)

// UpstreamError represents a failure of an external collaborator: a
// document, archive or group source, or the record store. It is kept
// distinct from scorer contract violations so callers can tell the two
// apart.
type UpstreamError struct {
	// Source names the collaborator, for example "documents" or "store".
	Source string

	// Operation is the name of the operation that failed.
	Operation string

	// Err is the underlying error that occurred.
	Err error
}

// Error implements the error interface for UpstreamError.
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error: source=%s, operation=%s, err=%v", e.Source, e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *UpstreamError) Unwrap() error { return e.Err }

// NewUpstreamError creates a new UpstreamError with the given details.
func NewUpstreamError(source, operation string, err error) *UpstreamError {
	return &UpstreamError{
		Source:    source,
		Operation: operation,
		Err:       err,
	}
}

// ConfigError represents an error from configuration operations.
type ConfigError struct {
	// ConfigKey is the configuration key that was involved in the failed
	// operation.
	ConfigKey string

	// Err is the underlying error that caused the configuration operation
	// to fail.
	Err error
}

// Error implements the error interface for ConfigError.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: key=%s, err=%v", e.ConfigKey, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError creates a new ConfigError with the given details.
func NewConfigError(key string, err error) *ConfigError {
	return &ConfigError{
		ConfigKey: key,
		Err:       err,
	}
}

// StatusCode maps an error returned by the matcher to the HTTP status a
// surrounding service reports for it. Authentication failures map to 400,
// forbidden access to 403, unknown configuration or entities to 404, an
// unavailable collaborator to 503 and everything else, including scorer
// contract violations, to 500.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrAuthenticationFailed):
		return http.StatusBadRequest
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrConfigNotFound), errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
