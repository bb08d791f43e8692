package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/jpalmerr/eventpipe/internal/metrics"
	"github.com/jpalmerr/eventpipe/internal/ticker"
)

// TracerName is the instrumentation scope used for pipeline spans.
const TracerName = "github.com/jpalmerr/eventpipe/internal/pipeline"

// Pipeline connects a [ticker.Ticker] to a [Strategy].
//
// A Pipeline holds no per-run state; every [Pipeline.Subscribe] call starts
// an independent sequence.
type Pipeline struct {
	source   *ticker.Ticker
	strategy Strategy
	hooks    []Hooks
	tracer   trace.Tracer
	metrics  metrics.Collector
	logger   *slog.Logger
}

// Option configures a [Pipeline].
type Option func(*Pipeline)

// WithHooks registers observation hooks. Hook sets run in registration order,
// each inside its own recovery boundary.
func WithHooks(hooks ...Hooks) Option {
	return func(p *Pipeline) {
		for _, h := range hooks {
			if h != nil {
				p.hooks = append(p.hooks, h)
			}
		}
	}
}

// WithTracer sets the tracer used for subscription, transform and publish spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(p *Pipeline) {
		if tracer != nil {
			p.tracer = tracer
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(c metrics.Collector) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.metrics = c
		}
	}
}

// WithLogger sets the logger for pipeline diagnostics such as hook failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a [Pipeline] reading ticks from source and transforming them
// with strategy.
func New(source *ticker.Ticker, strategy Strategy, opts ...Option) (*Pipeline, error) {
	if source == nil {
		return nil, errors.New("pipeline requires a ticker")
	}
	if strategy == nil {
		return nil, errors.New("pipeline requires a strategy")
	}

	p := &Pipeline{
		source:   source,
		strategy: strategy,
		tracer:   noop.NewTracerProvider().Tracer(TracerName),
		metrics:  metrics.NoopCollector{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Strategy returns the configured strategy.
func (p *Pipeline) Strategy() Strategy {
	return p.strategy
}

// handoffItem carries an event from the source goroutine to the publish
// goroutine. The publisher closes ack once the Published hooks have run.
type handoffItem struct {
	event Event
	ack   chan struct{}
}

// Subscribe starts a new sequence and returns immediately.
//
// The sequence runs until ctx is cancelled, [Subscription.Cancel] is called,
// or the strategy fails. If ctx is nil, context.Background() is used.
func (p *Pipeline) Subscribe(ctx context.Context) *Subscription {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)

	sub := newSubscription(uuid.NewString(), cancel)
	go p.run(ctx, sub)
	return sub
}

// run is the subscription goroutine.
func (p *Pipeline) run(ctx context.Context, sub *Subscription) {
	defer close(sub.done)
	defer sub.cancel()

	name := p.strategy.Name()

	ctx, span := p.tracer.Start(ctx, SpanSubscription, trace.WithAttributes(
		attribute.String("subscription.id", sub.id),
		attribute.String("strategy", name),
	))
	defer span.End()

	sub.setState(StateSubscribed)
	info := SubscribeInfo{SubscriptionID: sub.id, Strategy: name, Period: p.source.Period()}
	p.invoke(StageSubscribing, func(h Hooks) error { return h.Subscribing(ctx, info) })

	handoff := make(chan handoffItem, 1)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.publish(ctx, sub, handoff)
	}()

	ticks := p.source.Subscribe(ctx)
	err := p.produce(ctx, sub, ticks, handoff)
	close(handoff)
	wg.Wait()

	// stop the ticker and wait for it to close its channel
	sub.cancel()
	for range ticks {
	}

	state := StateCancelled
	if err != nil {
		state = StateErrored
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	// state is final before Events closes so consumers see Err on close
	sub.finish(state, err)
	close(sub.events)

	p.metrics.SubscriptionTerminated(string(state))

	final := TerminateInfo{
		SubscriptionID: sub.id,
		Strategy:       name,
		State:          state,
		Err:            err,
		Published:      sub.Published(),
	}
	termCtx := context.WithoutCancel(ctx)
	p.invoke(StageTerminated, func(h Hooks) error { return h.Terminated(termCtx, final) })
}

// produce is the source goroutine body: tick, transform, Generated, handoff.
// It returns nil on cancellation and the transform error otherwise.
func (p *Pipeline) produce(ctx context.Context, sub *Subscription, ticks <-chan ticker.Tick, handoff chan<- handoffItem) error {
	for tick := range ticks {
		ev, err := p.transform(ctx, sub, tick)
		if ctx.Err() != nil {
			// cancelled mid-transform: drop the result
			return nil
		}
		if err != nil {
			return fmt.Errorf("tick %d: %w", tick.Seq, err)
		}

		sub.setState(StateEmitting)
		p.metrics.EventGenerated(ev.Strategy)
		if !p.invokeLive(ctx, StageGenerated, func(h Hooks) error { return h.Generated(ctx, ev) }) {
			return nil
		}

		item := handoffItem{event: ev, ack: make(chan struct{})}
		select {
		case handoff <- item:
		case <-ctx.Done():
			return nil
		}

		select {
		case <-item.ack:
		case <-ctx.Done():
			return nil
		}
	}
	return nil
}

// transform runs the strategy inside a transform span.
func (p *Pipeline) transform(ctx context.Context, sub *Subscription, tick ticker.Tick) (Event, error) {
	name := p.strategy.Name()

	spanCtx, span := p.tracer.Start(ctx, SpanTransform, trace.WithAttributes(
		attribute.Int64("tick.seq", int64(tick.Seq)),
		attribute.String("strategy", name),
	))
	defer span.End()

	start := time.Now()
	payload, err := p.strategy.Transform(spanCtx, tick)
	if ctx.Err() == nil {
		p.metrics.TransformCompleted(name, time.Since(start), err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Event{}, err
	}

	sc := span.SpanContext()
	ev := Event{
		Seq:            tick.Seq,
		Payload:        payload,
		Strategy:       name,
		SubscriptionID: sub.id,
		TickAt:         tick.At,
		GeneratedAt:    time.Now(),
		spanCtx:        sc,
	}
	if sc.HasTraceID() {
		ev.TraceID = sc.TraceID().String()
	}
	return ev, nil
}

// publish is the publish goroutine body.
func (p *Pipeline) publish(ctx context.Context, sub *Subscription, handoff <-chan handoffItem) {
	for item := range handoff {
		if ctx.Err() != nil {
			close(item.ack)
			continue
		}

		ev := item.event
		ev.PublishedAt = time.Now()

		spanCtx, span := p.tracer.Start(trace.ContextWithSpanContext(ctx, ev.spanCtx), SpanPublish,
			trace.WithAttributes(attribute.Int64("tick.seq", int64(ev.Seq))),
		)
		live := p.invokeLive(ctx, StagePublished, func(h Hooks) error { return h.Published(spanCtx, ev) })
		span.End()

		if !live {
			close(item.ack)
			continue
		}
		p.metrics.EventPublished(ev.Strategy)
		sub.markPublished()
		close(item.ack)

		select {
		case sub.events <- ev:
		case <-ctx.Done():
		}
	}
}

// invoke calls fn for every registered hook set, recovering panics and
// swallowing errors so observation never affects the stream.
func (p *Pipeline) invoke(stage Stage, fn func(Hooks) error) {
	for _, h := range p.hooks {
		if err := p.invokeSafe(stage, h, fn); err != nil {
			p.metrics.HookFailed(string(stage))
			p.logger.Warn("observation hook failed", "stage", stage, "error", err.Error())
		}
	}
}

// invokeLive is invoke for stages that go quiet on cancellation: ctx is
// checked before each hook set, and no further set runs once it is done.
// It reports whether every hook set ran.
func (p *Pipeline) invokeLive(ctx context.Context, stage Stage, fn func(Hooks) error) bool {
	for _, h := range p.hooks {
		if ctx.Err() != nil {
			return false
		}
		if err := p.invokeSafe(stage, h, fn); err != nil {
			p.metrics.HookFailed(string(stage))
			p.logger.Warn("observation hook failed", "stage", stage, "error", err.Error())
		}
	}
	return true
}

func (p *Pipeline) invokeSafe(stage Stage, h Hooks, fn func(Hooks) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()

			p.logger.Debug("observation hook panic",
				"stage", stage,
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)

			err = &ObservationError{
				Stage:         stage,
				CorrelationID: correlationID,
				Err:           fmt.Errorf("panic: %v", r),
			}
		}
	}()

	if hookErr := fn(h); hookErr != nil {
		return &ObservationError{Stage: stage, Err: hookErr}
	}
	return nil
}
