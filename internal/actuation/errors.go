// Package actuation holds what the southbound management clients share.
package actuation

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrNotFound is returned when the managed object does not exist.
var ErrNotFound = errors.New("actuation: managed object not found")

// StatusError reports a non-2xx management API response.
type StatusError struct {
	Service string
	Code    int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: http %d", e.Service, e.Code)
}

// CheckStatus maps a response status to nil, ErrNotFound or a StatusError.
func CheckStatus(service string, code int) error {
	switch {
	case code == http.StatusNotFound:
		return fmt.Errorf("%s: %w", service, ErrNotFound)
	case code < 200 || code >= 300:
		return &StatusError{Service: service, Code: code}
	}
	return nil
}

// IsTransient reports whether retrying the call may succeed: network
// failures, 5xx and 429. Context cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code >= 500 || statusErr.Code == http.StatusTooManyRequests
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
