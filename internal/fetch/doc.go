// Package fetch provides the outbound HTTP client used by the remote event
// strategy.
//
// The main components are:
//
//   - [Client]: HTTP client bound to a base URL, with a body size limit
//   - [TransportError]: the request failed before a response was received
//   - [StatusError]: the endpoint answered with a non-2xx status
//
// Both error types match [ErrFetch] via [errors.Is].
package fetch
