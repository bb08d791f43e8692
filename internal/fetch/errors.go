package fetch

import (
	"errors"
	"fmt"
)

// ErrFetch matches every error returned by [Client.Get].
var ErrFetch = errors.New("fetch failed")

// ErrBodyTooLarge is wrapped in a [TransportError] when a successful
// response body exceeds the 1MB limit.
var ErrBodyTooLarge = errors.New("response body too large")

// maxErrorBody caps how much of a failed response is kept on a StatusError.
const maxErrorBody = 256

// TransportError reports a failure at the network layer: connection refused,
// DNS failure, timeout, cancelled context, a broken body read, or a body over
// the size limit.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrFetch }

// StatusError reports a response with a non-success status code.
type StatusError struct {
	URL        string
	StatusCode int

	// Body holds the start of the response body, truncated.
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request to %s returned status %d", e.URL, e.StatusCode)
}

func (e *StatusError) Is(target error) bool { return target == ErrFetch }

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
