// Package server provides the optional HTTP status surface for eventpipe.
//
// This package is internal to eventpipe and handles all HTTP concerns:
//
//   - Dashboard serving: the embedded live event page at "/"
//   - REST API: "/api/events" (recent events) and "/api/state" (pipeline state)
//   - Server-Sent Events: live published events at "/api/sse"
//   - Operations: "/metrics" for Prometheus and "/healthz"
//
// The server is started by [eventpipe.EventPipe.Start] only when a listen
// address is configured.
package server
