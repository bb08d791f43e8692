package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SubscribeInfo describes a subscription at the moment a consumer attaches.
type SubscribeInfo struct {
	SubscriptionID string
	Strategy       string
	Period         time.Duration
}

// TerminateInfo describes how a subscription ended.
type TerminateInfo struct {
	SubscriptionID string
	Strategy       string
	State          State
	Err            error

	// Published counts the events that reached the publish stage.
	Published uint64
}

// Hooks observes a subscription without affecting its data flow.
//
// Subscribing fires once on the subscription goroutine before any tick.
// Generated fires on the source goroutine right after a transform, Published
// on the publish goroutine after the handoff. Terminated fires once, last.
//
// Returned errors and panics are recovered and reported as
// [ObservationError]; they never stop the sequence. Hooks must not call
// [Subscription.Cancel].
type Hooks interface {
	Subscribing(ctx context.Context, info SubscribeInfo) error
	Generated(ctx context.Context, ev Event) error
	Published(ctx context.Context, ev Event) error
	Terminated(ctx context.Context, info TerminateInfo) error
}

// HookFuncs adapts plain functions to [Hooks]. Nil fields are skipped.
type HookFuncs struct {
	OnSubscribing func(ctx context.Context, info SubscribeInfo) error
	OnGenerated   func(ctx context.Context, ev Event) error
	OnPublished   func(ctx context.Context, ev Event) error
	OnTerminated  func(ctx context.Context, info TerminateInfo) error
}

var _ Hooks = HookFuncs{}

func (h HookFuncs) Subscribing(ctx context.Context, info SubscribeInfo) error {
	if h.OnSubscribing == nil {
		return nil
	}
	return h.OnSubscribing(ctx, info)
}

func (h HookFuncs) Generated(ctx context.Context, ev Event) error {
	if h.OnGenerated == nil {
		return nil
	}
	return h.OnGenerated(ctx, ev)
}

func (h HookFuncs) Published(ctx context.Context, ev Event) error {
	if h.OnPublished == nil {
		return nil
	}
	return h.OnPublished(ctx, ev)
}

func (h HookFuncs) Terminated(ctx context.Context, info TerminateInfo) error {
	if h.OnTerminated == nil {
		return nil
	}
	return h.OnTerminated(ctx, info)
}

// LogHooks writes one structured log line per hook.
//
// Every line carries a stage attribute (subscribing, generated, published or
// terminated); event lines also carry the payload.
type LogHooks struct {
	logger *slog.Logger
}

var _ Hooks = (*LogHooks)(nil)

// NewLogHooks creates [LogHooks] writing to logger, or [slog.Default] if nil.
func NewLogHooks(logger *slog.Logger) *LogHooks {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogHooks{logger: logger}
}

func (h *LogHooks) Subscribing(ctx context.Context, info SubscribeInfo) error {
	h.logger.InfoContext(ctx, "subscribing",
		"stage", StageSubscribing,
		"context", contextSubscription,
		"strategy", info.Strategy,
		"subscription_id", info.SubscriptionID,
		"period", info.Period.String(),
	)
	return nil
}

func (h *LogHooks) Generated(ctx context.Context, ev Event) error {
	h.logger.InfoContext(ctx, "event generated", eventAttrs(StageGenerated, contextSource, ev)...)
	return nil
}

func (h *LogHooks) Published(ctx context.Context, ev Event) error {
	h.logger.InfoContext(ctx, "event published", eventAttrs(StagePublished, contextPublish, ev)...)
	return nil
}

func (h *LogHooks) Terminated(ctx context.Context, info TerminateInfo) error {
	attrs := []any{
		"stage", StageTerminated,
		"context", contextSubscription,
		"strategy", info.Strategy,
		"subscription_id", info.SubscriptionID,
		"state", info.State,
		"published", info.Published,
	}
	if info.Err != nil {
		h.logger.ErrorContext(ctx, "subscription failed", append(attrs, "error", info.Err.Error())...)
		return nil
	}
	h.logger.InfoContext(ctx, "subscription ended", attrs...)
	return nil
}

func eventAttrs(stage Stage, execContext string, ev Event) []any {
	attrs := []any{
		"stage", stage,
		"context", execContext,
		"seq", ev.Seq,
		"payload", ev.Payload,
		"strategy", ev.Strategy,
		"subscription_id", ev.SubscriptionID,
	}
	if ev.TraceID != "" {
		attrs = append(attrs, "trace_id", ev.TraceID)
	}
	return attrs
}

// ObservationError reports a hook that failed or panicked.
type ObservationError struct {
	Stage Stage

	// CorrelationID ties a panic's log line (with stack) to this error.
	CorrelationID string

	Err error
}

func (e *ObservationError) Error() string {
	if e.CorrelationID != "" {
		return fmt.Sprintf("%s hook failed (correlation_id: %s): %v", e.Stage, e.CorrelationID, e.Err)
	}
	return fmt.Sprintf("%s hook failed: %v", e.Stage, e.Err)
}

func (e *ObservationError) Unwrap() error { return e.Err }
