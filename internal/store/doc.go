// Package store keeps recently published events and the pipeline state.
//
// The main components are:
//
//   - [Store]: interface for event history, state, and subscriptions
//   - [MemoryStore]: in-memory ring buffer with pub/sub
//   - [EventRecord] and [PipelineStatus]: JSON-ready storage types
//
// Subscribers receive new events via channels with non-blocking sends (slow
// subscribers miss events rather than block the publish goroutine).
package store
