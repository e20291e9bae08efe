package confluence

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for iterator misuse and termination.
var (
	// Done signals that a search iterator has yielded every available
	// result. It is a termination signal, not a failure; compare with
	// errors.Is(err, confluence.Done).
	Done = errors.New("no more search results")

	// ErrNoActiveSearch indicates NextResult was called without a
	// preceding StartSearch.
	ErrNoActiveSearch = errors.New("no active search: call StartSearch first")
)

// errNotSearchPage marks a search response whose body was not a JSON
// page envelope.
var errNotSearchPage = errors.New("search endpoint did not return a JSON page")

// RequestError represents a non-2xx HTTP response. Message is rendered
// from the response body according to its content type.
type RequestError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// UnsupportedContentTypeError represents a 2xx response whose
// content type the decoder does not recognize.
type UnsupportedContentTypeError struct {
	ContentType string
}

// Error implements the error interface.
func (e *UnsupportedContentTypeError) Error() string {
	return fmt.Sprintf("unsupported response content type %q", e.ContentType)
}

// DecodeError represents a malformed body where JSON was expected.
type DecodeError struct {
	ContentType string
	Err         error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %s response: %v", e.ContentType, e.Err)
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsAuthError returns true if the error is an authentication or
// authorization failure reported by the server.
func IsAuthError(err error) bool {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.StatusCode == http.StatusUnauthorized || reqErr.StatusCode == http.StatusForbidden
	}
	return false
}

// IsNotFound returns true if the error indicates the requested
// resource does not exist.
func IsNotFound(err error) bool {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.StatusCode == http.StatusNotFound
	}
	return false
}
