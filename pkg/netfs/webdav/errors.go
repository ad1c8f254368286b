package webdav

import (
	"fmt"
	"net/http"

	"github.com/marmos91/netfs/pkg/netfs"
)

// StatusError is a response with an unexpected HTTP status.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("webdav: %s %s: %d %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Unwrap maps the status to the matching netfs error, so callers can test
// with errors.Is(err, netfs.ErrNotFound).
func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound, http.StatusGone:
		return netfs.ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return netfs.ErrAccessDenied
	case http.StatusMethodNotAllowed, http.StatusNotImplemented:
		return netfs.ErrNotImplemented
	case http.StatusPreconditionFailed:
		return netfs.ErrExists
	default:
		return nil
	}
}
