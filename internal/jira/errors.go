package jira

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is returned for any remote call that does not end in a
// success status. StatusCode is zero when the request never reached
// the server.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Body       string
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("jira: %s %s: request failed: %s", e.Method, e.Path, e.Body)
	}
	return fmt.Sprintf("jira: %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// IsNotFound reports whether err is an APIError with a 404 status.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsBadRequest reports whether err is an APIError with a 400 status.
// Field updates rejected by remote validation surface this way.
func IsBadRequest(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest
}
