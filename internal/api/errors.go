package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnauthorized matches any *HTTPError with status 401. Callers that see it
// should send the operator back to the login entry point.
var ErrUnauthorized = errors.New("unauthorized")

// HTTPError is returned for any non-2xx backend response
type HTTPError struct {
	Status   int    `json:"status"`
	Method   string `json:"method"`
	Endpoint string `json:"endpoint"`
	Detail   string `json:"detail,omitempty"`
	Body     string `json:"-"`
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP error! status: %d", e.Status)
}

// Is reports whether target is ErrUnauthorized and the status is 401
func (e *HTTPError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// StatusCode returns the HTTP status carried by err, or 0
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status
	}
	return 0
}
