package ticker

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidPeriod is returned by [New] when the period is not positive.
var ErrInvalidPeriod = errors.New("ticker period must be positive")

// Tick is one timer firing.
type Tick struct {
	// Seq increases by one per delivered tick, starting at 0.
	Seq uint64

	// At is the wall-clock time the underlying timer fired.
	At time.Time
}

// Ticker emits ticks at a fixed period.
//
// Delivery is unbuffered. A receiver that falls behind delays the ticker
// rather than growing a queue: the next tick is scheduled one period after
// the previous one was delivered, so Seq never skips and consecutive ticks
// are always at least one period apart.
type Ticker struct {
	period time.Duration
}

// New creates a [Ticker] with the given period.
func New(period time.Duration) (*Ticker, error) {
	if period <= 0 {
		return nil, ErrInvalidPeriod
	}
	return &Ticker{period: period}, nil
}

// Period returns the configured tick period.
func (t *Ticker) Period() time.Duration {
	return t.period
}

// Subscribe starts a new tick sequence and returns its channel.
//
// The channel is closed once ctx is cancelled. Each call starts its own
// sequence at Seq 0; subscriptions do not share state.
func (t *Ticker) Subscribe(ctx context.Context) <-chan Tick {
	if ctx == nil {
		ctx = context.Background()
	}

	ticks := make(chan Tick)

	go func() {
		defer close(ticks)

		timer := time.NewTimer(t.period)
		defer timer.Stop()

		var seq uint64
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-timer.C:
				select {
				case ticks <- Tick{Seq: seq, At: now}:
					seq++
				case <-ctx.Done():
					return
				}
				timer.Reset(t.period)
			}
		}
	}()

	return ticks
}
