// Package ticker provides the periodic tick source for eventpipe.
//
// A [Ticker] is lazy: nothing runs until [Ticker.Subscribe] is called, and
// every subscription owns an independent goroutine and sequence counter
// starting at zero. The first tick arrives one period after subscribing.
//
// Users of the eventpipe library should not need to interact with this
// package directly. The period is configured through the main eventpipe package.
package ticker
