package pipeline

import (
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Event is the payload produced from one tick.
type Event struct {
	// Seq is the sequence number of the tick that produced the event.
	Seq uint64

	// Payload is the event value: a formatted string for the local strategy,
	// the response body for the remote strategy.
	Payload string

	// Strategy names the transform that produced Payload.
	Strategy string

	// SubscriptionID identifies the subscription the event belongs to.
	SubscriptionID string

	TickAt      time.Time
	GeneratedAt time.Time

	// PublishedAt is zero until the event reaches the publish goroutine.
	PublishedAt time.Time

	// TraceID is the hex trace id of the transform span, empty when tracing
	// is disabled.
	TraceID string

	spanCtx trace.SpanContext
}

// SpanContext returns the span context of the transform that produced the event.
func (e Event) SpanContext() trace.SpanContext {
	return e.spanCtx
}

// State is the lifecycle state of a [Subscription].
type State string

const (
	StateIdle       State = "idle"
	StateSubscribed State = "subscribed"
	StateEmitting   State = "emitting"
	StateCompleted  State = "completed"
	StateCancelled  State = "cancelled"
	StateErrored    State = "errored"
)

// Terminal reports whether no further events can be produced in this state.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateErrored
}

// Stage names an observation point.
type Stage string

const (
	StageSubscribing Stage = "subscribing"
	StageGenerated   Stage = "generated"
	StagePublished   Stage = "published"
	StageTerminated  Stage = "terminated"
)

// execution contexts, as reported in logs
const (
	contextSubscription = "subscription"
	contextSource       = "source"
	contextPublish      = "publish"
)

// Span names.
const (
	SpanSubscription = "eventpipe.subscription"
	SpanTransform    = "eventpipe.transform"
	SpanPublish      = "eventpipe.publish"
)
