package pipeline

import (
	"context"
	"sync"
)

// Subscription is a running tick-to-event sequence created by
// [Pipeline.Subscribe].
//
// Consumers must drain [Subscription.Events] until it is closed; the pipeline
// does not queue beyond the single event being delivered.
type Subscription struct {
	id     string
	events chan Event
	done   chan struct{}
	cancel context.CancelFunc

	mu        sync.Mutex
	state     State
	err       error
	published uint64
}

func newSubscription(id string, cancel context.CancelFunc) *Subscription {
	return &Subscription{
		id:     id,
		events: make(chan Event),
		done:   make(chan struct{}),
		cancel: cancel,
		state:  StateIdle,
	}
}

// ID returns the subscription's unique identifier.
func (s *Subscription) ID() string {
	return s.id
}

// Events returns the published events in tick order. The channel is closed
// when the subscription terminates.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Done is closed once the subscription has stopped: its ticker has closed
// the tick channel, the publish goroutine has returned and the Terminated
// hooks have run.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// State returns the current lifecycle state.
func (s *Subscription) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error that terminated the subscription. It is nil while
// running and after cancellation.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Published returns how many events reached the publish stage.
func (s *Subscription) Published() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.published
}

// Cancel stops the subscription and blocks until it has fully terminated.
// In-flight fetches are aborted and no hook fires after Cancel returns.
//
// Cancel is idempotent. It must not be called from a hook.
func (s *Subscription) Cancel() {
	s.cancel()
	<-s.done
}

// Wait blocks until the subscription terminates and returns [Subscription.Err].
func (s *Subscription) Wait() error {
	<-s.done
	return s.Err()
}

func (s *Subscription) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Terminal() {
		s.state = state
	}
}

func (s *Subscription) markPublished() {
	s.mu.Lock()
	s.published++
	s.mu.Unlock()
}

func (s *Subscription) finish(state State, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.err = err
}
