package domain

import (
	"errors"
	"fmt"
)

// Base error types (sentinel errors).
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrUnsupported   = errors.New("unsupported")
	ErrBadResponse   = errors.New("bad response")
	ErrUnavailable   = errors.New("service unavailable")
)

// Specific errors.
var (
	ErrMissingURL         = fmt.Errorf("missing url: %w", ErrInvalidConfig)
	ErrMissingIdentifier  = fmt.Errorf("missing identifier: %w", ErrInvalidConfig)
	ErrLayerNotFound      = fmt.Errorf("layer: %w", ErrNotFound)
	ErrProcessNotFound    = fmt.Errorf("process: %w", ErrNotFound)
	ErrUnsupportedInput   = fmt.Errorf("process input type: %w", ErrUnsupported)
	ErrMissingCapability  = fmt.Errorf("capabilities document has no Capability element: %w", ErrBadResponse)
	ErrTooManyPages       = fmt.Errorf("paginated request exceeded page limit: %w", ErrBadResponse)
	ErrServiceUnreachable = fmt.Errorf("remote service: %w", ErrUnavailable)
)

// ServiceError is a structured error with user-facing title and message.
// Title and Message are suitable for direct display; Err carries the
// internal cause for logs.
type ServiceError struct {
	Title   string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Title, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Title, e.Message)
}

// Unwrap returns the underlying error.
func (e *ServiceError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrBadResponse
}

// NetworkError wraps a fetch failure with CORS/proxy setup guidance.
func NetworkError(url string, err error) *ServiceError {
	return &ServiceError{
		Title: "Could not connect to server",
		Message: fmt.Sprintf(
			"Failed to load %s. The server may be unreachable, or it may not "+
				"support CORS. If you control the server, enable CORS or make it "+
				"available through a proxy.", url),
		Err: err,
	}
}

// FormatError wraps an unparseable or structurally invalid response.
func FormatError(url string, err error) *ServiceError {
	return &ServiceError{
		Title:   "Invalid server response",
		Message: fmt.Sprintf("The response from %s could not be interpreted.", url),
		Err:     err,
	}
}

// ExceptionError carries a server-reported OGC exception verbatim.
type ExceptionError struct {
	Code string // exception code reported by the server, may be empty
	Text string // exception text reported by the server
}

// Error implements the error interface.
func (e *ExceptionError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("server reported exception %s: %s", e.Code, e.Text)
	}
	return fmt.Sprintf("server reported exception: %s", e.Text)
}

// Unwrap returns the underlying error type.
func (e *ExceptionError) Unwrap() error {
	return ErrBadResponse
}

// ConfigError represents a configuration error on a catalog member.
type ConfigError struct {
	Member  string // catalog member id, may be empty
	Field   string // offending field
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Member != "" {
		return fmt.Sprintf("configuration error for %s (%s): %s", e.Member, e.Field, e.Message)
	}
	return fmt.Sprintf("configuration error for %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying error type.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}
