package store

import "time"

// EventRecord is the storage representation of a published event, shaped for
// the REST API and SSE stream.
type EventRecord struct {
	Seq            uint64    `json:"seq"`
	Payload        string    `json:"payload"`
	Strategy       string    `json:"strategy"`
	SubscriptionID string    `json:"subscription_id"`
	TraceID        string    `json:"trace_id,omitempty"`
	GeneratedAt    time.Time `json:"generated_at"`
	PublishedAt    time.Time `json:"published_at"`
}

// PipelineStatus is the last known state of the pipeline subscription.
type PipelineStatus struct {
	State          string `json:"state"`
	Strategy       string `json:"strategy"`
	SubscriptionID string `json:"subscription_id"`
	Published      uint64 `json:"published"`

	// Error holds the terminal error message, nil while healthy.
	Error *string `json:"error"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Store holds event history and pipeline status.
//
// Implementations must be safe for concurrent access.
type Store interface {
	// Append records a published event and notifies all subscribers.
	// Older events are evicted once the history is full.
	Append(record EventRecord)

	// Recent returns the retained events, oldest first.
	Recent() []EventRecord

	// SetStatus replaces the pipeline status.
	SetStatus(status PipelineStatus)

	// Status returns the current pipeline status.
	Status() PipelineStatus

	// Subscribe returns a channel that receives appended events.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan EventRecord

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan EventRecord)
}
