// Package pipeline turns ticks into events and publishes them.
//
// A [Pipeline] subscription runs three goroutines:
//
//   - the subscription goroutine fires the Subscribing hook and supervises,
//   - the source goroutine receives ticks, runs the [Strategy] transform and
//     fires the Generated hook,
//   - the publish goroutine receives each event over a bounded handoff,
//     fires the Published hook and delivers the event to the consumer.
//
// Processing is serialized per tick: the source waits for the publish side to
// acknowledge an event before taking the next tick. While it waits the ticker
// is not read, so a slow stage delays ticks instead of queueing them.
//
// The main components are:
//
//   - [Strategy]: [Local] and [Remote] tick-to-event transforms
//   - [Hooks]: observation callbacks, see [LogHooks] and [HookFuncs]
//   - [Subscription]: handle for a running sequence
package pipeline
