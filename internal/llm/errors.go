package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCredential is wrapped by ConfigurationError when no API key is set.
	ErrMissingCredential = errors.New("llm: API key is missing")
	// ErrEmptyResponse is wrapped by TransportError when the service returns no text.
	ErrEmptyResponse = errors.New("llm: empty response from model")
)

// ConfigurationError is returned before any network activity when the client
// cannot be used as configured. It is never worth retrying.
type ConfigurationError struct {
	Provider string
	Err      error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s configuration: %v", e.Provider, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// TransportError wraps network, auth and service failures of a single call.
type TransportError struct {
	Provider string
	Status   int // HTTP status when known, else 0
	Err      error
}

func (e *TransportError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s request failed (status %d): %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsConfiguration reports whether err is (or wraps) a ConfigurationError.
func IsConfiguration(err error) bool {
	var cErr *ConfigurationError
	return errors.As(err, &cErr)
}

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var tErr *TransportError
	return errors.As(err, &tErr)
}
