package apiclient

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrTransport is wrapped by every failure that is not a status rejection:
// the service was unreachable or answered with something unreadable.
var ErrTransport = errors.New("transport error")

// ErrMalformedResponse is returned when a success response cannot be used.
var ErrMalformedResponse = fmt.Errorf("%w: malformed response", ErrTransport)

// StatusError reports a well-formed request rejected with a non-2xx status.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.Path, e.Code, http.StatusText(e.Code), e.Body)
}

// IsUnauthorized reports whether err is a 401 or 403 rejection.
func IsUnauthorized(err error) bool {
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	return statusErr.Code == http.StatusUnauthorized || statusErr.Code == http.StatusForbidden
}

// StatusCode returns the rejection status carried by err, or 0.
func StatusCode(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code
	}
	return 0
}

// IsTransport reports whether err is a transport failure.
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}
