package httpclient

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError represents a response with a non-success status code.
type HTTPError struct {
	StatusCode int
	URL        string
	Status     string
}

// NewHTTPError creates a new HTTPError
func NewHTTPError(statusCode int, url, status string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		URL:        url,
		Status:     status,
	}
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected status %q fetching %s", e.Status, e.URL)
}

// IsNotFound reports whether err is an HTTPError with a 404 status.
func IsNotFound(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound
}
