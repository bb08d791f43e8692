package eventpipe

import (
	"time"

	"github.com/jpalmerr/eventpipe/internal/pipeline"
)

// Strategy names accepted by [WithStrategy].
const (
	// StrategyLocal formats each tick as "Event ----> <seq>".
	StrategyLocal = pipeline.StrategyLocal

	// StrategyRemote fetches {base_url}/{path} on each tick and uses the body.
	StrategyRemote = pipeline.StrategyRemote
)

// State is the lifecycle state of the running pipeline.
type State string

const (
	StateIdle       State = State(pipeline.StateIdle)
	StateSubscribed State = State(pipeline.StateSubscribed)
	StateEmitting   State = State(pipeline.StateEmitting)
	StateCompleted  State = State(pipeline.StateCompleted)
	StateCancelled  State = State(pipeline.StateCancelled)
	StateErrored    State = State(pipeline.StateErrored)
)

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// Event is one published pipeline event.
//
// Event is immutable after creation. Payload is the event value; the other
// fields describe where and when it was produced.
type Event struct {
	// Seq is the tick sequence number, starting at 0 per subscription.
	Seq uint64

	// Payload is "Event ----> <seq>" for the local strategy or the response
	// body for the remote strategy.
	Payload string

	// Strategy is the name of the strategy that produced the event.
	Strategy string

	// SubscriptionID identifies the pipeline subscription.
	SubscriptionID string

	// TraceID is the hex trace id of the event's spans, empty when tracing
	// is disabled.
	TraceID string

	TickAt      time.Time
	GeneratedAt time.Time
	PublishedAt time.Time
}

func toPublicEvent(ev pipeline.Event) Event {
	return Event{
		Seq:            ev.Seq,
		Payload:        ev.Payload,
		Strategy:       ev.Strategy,
		SubscriptionID: ev.SubscriptionID,
		TraceID:        ev.TraceID,
		TickAt:         ev.TickAt,
		GeneratedAt:    ev.GeneratedAt,
		PublishedAt:    ev.PublishedAt,
	}
}
