package catalog

import (
	"errors"
	"fmt"
)

// ErrorClass represents a classification of page fetch failures.
type ErrorClass string

const (
	// ClassAuthorization represents credential rejections (401, 403).
	ClassAuthorization ErrorClass = "authorization"

	// ClassUpstream represents other non-2xx responses and malformed
	// bodies from the catalog API.
	ClassUpstream ErrorClass = "upstream"

	// ClassTransport represents network and timeout errors where no
	// HTTP response was received.
	ClassTransport ErrorClass = "transport"
)

// APIError represents a catalog API failure with additional context.
type APIError struct {
	StatusCode int
	Class      ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("catalog %s error (status %d): %s: %v",
			e.Class, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("catalog %s error (status %d): %s",
		e.Class, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// ClassOf extracts the error class from err. It returns the empty class
// when err is not a catalog API error.
func ClassOf(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Class
	}
	return ""
}
