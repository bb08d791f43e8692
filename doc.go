// Package eventpipe runs a periodic event pipeline: a ticker fires on a fixed
// period, each tick is turned into an event, and every stage is observed
// through hooks that log, trace and count it.
//
// # Quick Start
//
// Run the pipeline until SIGINT/SIGTERM:
//
//	ep, _ := eventpipe.New(eventpipe.WithStrategy(eventpipe.StrategyLocal))
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	ep.Start(ctx) // blocks until context is cancelled
//
// # Strategies
//
// A strategy turns a tick into an event payload:
//
//   - [StrategyLocal]: "Event ----> <seq>", never fails
//   - [StrategyRemote]: GET {base_url}/{path}, the response body as text
//
// Remote requests are serialized: the request for tick N+1 is not issued until
// tick N has been published. The first failed request ends the pipeline; it is
// not retried. The failure is logged at ERROR and reported by [EventPipe.Err].
//
// # Configuration
//
// EventPipe uses the functional options pattern:
//
//	ep, err := eventpipe.New(
//	    eventpipe.WithStrategy(eventpipe.StrategyRemote),
//	    eventpipe.WithBaseURL("https://httpbin.org/"),
//	    eventpipe.WithPeriod(5 * time.Second),
//	    eventpipe.WithFetchTimeout(2 * time.Second),
//	    eventpipe.WithListenAddr(":8080"),
//	)
//
// The config package loads the same settings from YAML and EVENTPIPE_*
// environment variables.
//
// # Observation
//
// Each tick is logged at three points with a "stage" attribute:
//
//   - subscribing: once, when the pipeline activates
//   - generated: on the source goroutine, after the strategy produced the event
//   - published: on the publish goroutine, after the handoff
//
// Stages are bracketed by OpenTelemetry spans (see [WithTracing]) and counted
// in Prometheus metrics served at /metrics when the status server is enabled.
//
// # Architecture
//
// EventPipe consists of several internal packages (under internal/):
//
//   - internal/ticker: period-driven tick source
//   - internal/fetch: outbound HTTP client with typed errors
//   - internal/pipeline: strategies, hooks and the source/publish goroutines
//   - internal/metrics: Prometheus collectors
//   - internal/tracing: tracer provider and OTLP export
//   - internal/store: in-memory event history with pub/sub
//   - internal/server: status API, Server-Sent Events and dashboard
//   - dashboard: Embedded web UI assets
//
// The internal packages are not part of the public API and may change
// without notice.
package eventpipe
