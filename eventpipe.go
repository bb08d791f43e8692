package eventpipe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/jpalmerr/eventpipe/dashboard"
	"github.com/jpalmerr/eventpipe/internal/fetch"
	"github.com/jpalmerr/eventpipe/internal/metrics"
	"github.com/jpalmerr/eventpipe/internal/pipeline"
	"github.com/jpalmerr/eventpipe/internal/server"
	"github.com/jpalmerr/eventpipe/internal/store"
	"github.com/jpalmerr/eventpipe/internal/ticker"
	"github.com/jpalmerr/eventpipe/internal/tracing"
)

const (
	// DefaultPeriod is the tick period used when none is configured.
	DefaultPeriod = 5 * time.Second

	// DefaultBaseURL is the remote strategy's default base URL.
	DefaultBaseURL = "https://httpbin.org/"

	// DefaultPath is requested beneath the base URL on every remote tick.
	DefaultPath = pipeline.DefaultRemotePath

	// DefaultStrategy is the strategy used when none is configured.
	DefaultStrategy = StrategyRemote

	// DefaultHistorySize is the number of events the status server retains.
	DefaultHistorySize = store.DefaultHistorySize

	defaultTitle    = "eventpipe"
	shutdownTimeout = 10 * time.Second
)

// ErrAlreadyStarted is returned by [EventPipe.Start] on a second call.
var ErrAlreadyStarted = errors.New("eventpipe already started")

// EventPipe wires a ticker, a transform strategy and the observation hooks
// into one pipeline and runs it.
//
// EventPipe is created using [New] with functional options and started with
// [EventPipe.Start]. The pipeline is activated exactly once per EventPipe:
//
//	ep, err := eventpipe.New(eventpipe.WithStrategy(eventpipe.StrategyLocal))
//	if err != nil {
//	    slog.Error("failed to create eventpipe", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	ep.Start(ctx) // blocks until context cancelled
type EventPipe struct {
	strategy       string
	period         time.Duration
	baseURL        string
	path           string
	fetchTimeout   time.Duration
	listenAddr     string
	title          string
	historySize    int
	logger         *slog.Logger
	tracing        TracingConfig
	tracerProvider trace.TracerProvider
	registry       *prometheus.Registry
	eventCallbacks []func(Event)

	mu      sync.Mutex
	started bool
	sub     *pipeline.Subscription
	srv     *server.Server
}

// New creates a new [EventPipe] with the given options.
//
// Defaults:
//   - Strategy: remote
//   - Period: 5 seconds
//   - Base URL: https://httpbin.org/ (path "get")
//   - Fetch timeout: none
//   - Status server: disabled
//   - Tracing: disabled
//
// Returns an error if any option is invalid.
func New(opts ...Option) (*EventPipe, error) {
	cfg := &epConfig{
		strategy:    DefaultStrategy,
		period:      DefaultPeriod,
		baseURL:     DefaultBaseURL,
		path:        DefaultPath,
		title:       defaultTitle,
		historySize: DefaultHistorySize,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	registry := cfg.registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	return &EventPipe{
		strategy:       cfg.strategy,
		period:         cfg.period,
		baseURL:        cfg.baseURL,
		path:           cfg.path,
		fetchTimeout:   cfg.fetchTimeout,
		listenAddr:     cfg.listenAddr,
		title:          cfg.title,
		historySize:    cfg.historySize,
		logger:         logger,
		tracing:        cfg.tracing,
		tracerProvider: cfg.tracerProvider,
		registry:       registry,
		eventCallbacks: cfg.eventCallbacks,
	}, nil
}

// Start activates the pipeline and blocks until ctx is cancelled.
//
// While running:
//
//   - A tick is produced every period and turned into an event by the strategy
//   - Each stage is logged through the observation hooks
//   - Published events are kept in history and passed to event callbacks
//   - The status server runs if a listen address was configured
//
// A failing remote fetch terminates the pipeline but not Start: the error is
// logged, reported by [EventPipe.Err] and the status API, and Start keeps
// serving status until ctx is cancelled.
//
// Returns nil on graceful shutdown. Returns an error if setup fails, if the
// status server cannot bind, or if shutdown of the server or tracer fails.
func (ep *EventPipe) Start(ctx context.Context) error {
	ep.mu.Lock()
	if ep.started {
		ep.mu.Unlock()
		return ErrAlreadyStarted
	}
	ep.started = true
	ep.mu.Unlock()

	ep.logger.Info("eventpipe starting", "strategy", ep.strategy, "period", ep.period.String())

	// check if context already cancelled
	if ctx.Err() != nil {
		return nil
	}

	tp, err := ep.newTracerProvider(ctx)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}

	var client *fetch.Client
	var getter pipeline.Getter
	if ep.strategy == StrategyRemote {
		client, err = fetch.NewClient(ep.baseURL, ep.fetchTimeout)
		if err != nil {
			return abortSetup(ctx, fmt.Errorf("failed to create fetch client: %w", err), tp)
		}
		getter = client
		ep.logger.Info("remote endpoint configured", "url", client.URL(ep.path))
	}

	p, err := ep.newPipeline(tp, getter)
	if err != nil {
		client.Close()
		return abortSetup(ctx, err, tp)
	}

	eventStore := store.NewMemoryStore(ep.historySize)

	var srv *server.Server
	if ep.listenAddr != "" {
		metricsHandler := promhttp.HandlerFor(ep.registry, promhttp.HandlerOpts{})
		srv = server.NewServer(eventStore, ep.listenAddr, dashboard.Assets, ep.title, metricsHandler, ep.logger)
		if err := srv.Start(ctx); err != nil {
			client.Close()
			return abortSetup(ctx, fmt.Errorf("failed to start status server: %w", err), tp)
		}
	}

	sub := p.Subscribe(ctx)

	ep.mu.Lock()
	ep.sub = sub
	ep.srv = srv
	ep.mu.Unlock()

	eventStore.SetStatus(ep.statusOf(sub))

	// track the events consumer goroutine to ensure clean shutdown
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range sub.Events() {
			// store update first (callbacks fire after data is recorded)
			eventStore.Append(toRecord(ev))
			eventStore.SetStatus(ep.statusOf(sub))

			if len(ep.eventCallbacks) > 0 {
				public := toPublicEvent(ev)
				for _, cb := range ep.eventCallbacks {
					invokeCallbackSafe(cb, public, ep.logger)
				}
			}
		}
		// events closes after the terminal state is set
		eventStore.SetStatus(ep.statusOf(sub))
	}()

	<-ctx.Done()
	sub.Cancel()
	wg.Wait()

	err = ep.shutdown(srv, client, tp)
	ep.logger.Info("eventpipe stopped")
	return err
}

func (ep *EventPipe) newTracerProvider(ctx context.Context) (*tracing.Provider, error) {
	if ep.tracerProvider != nil {
		// caller-owned, never shut down here
		return &tracing.Provider{TracerProvider: ep.tracerProvider}, nil
	}
	return tracing.NewProvider(ctx, tracing.Config{
		Enabled:      ep.tracing.Enabled,
		ServiceName:  ep.tracing.ServiceName,
		OTLPEndpoint: ep.tracing.OTLPEndpoint,
		Insecure:     ep.tracing.Insecure,
		SampleRatio:  ep.tracing.SampleRatio,
	})
}

func (ep *EventPipe) newPipeline(tp trace.TracerProvider, getter pipeline.Getter) (*pipeline.Pipeline, error) {
	strategy, err := pipeline.StrategyByName(ep.strategy, getter, ep.path)
	if err != nil {
		return nil, err
	}

	source, err := ticker.New(ep.period)
	if err != nil {
		return nil, err
	}

	return pipeline.New(source, strategy,
		pipeline.WithHooks(pipeline.NewLogHooks(ep.logger)),
		pipeline.WithTracer(tp.Tracer(pipeline.TracerName)),
		pipeline.WithMetrics(metrics.NewPipelineCollector(ep.registry)),
		pipeline.WithLogger(ep.logger),
	)
}

// shutdown stops the status server and flushes the tracer provider,
// collecting every failure.
func (ep *EventPipe) shutdown(srv *server.Server, client *fetch.Client, tp *tracing.Provider) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var result *multierror.Error
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	client.Close()
	if err := tp.Shutdown(ctx); err != nil {
		result = multierror.Append(result, fmt.Errorf("tracer provider shutdown: %w", err))
	}
	return result.ErrorOrNil()
}

// abortSetup releases the tracer provider after a failed Start.
func abortSetup(ctx context.Context, err error, tp *tracing.Provider) error {
	if shutdownErr := tp.Shutdown(ctx); shutdownErr != nil {
		return multierror.Append(err, fmt.Errorf("tracer provider shutdown: %w", shutdownErr))
	}
	return err
}

func (ep *EventPipe) statusOf(sub *pipeline.Subscription) store.PipelineStatus {
	var errStr *string
	if err := sub.Err(); err != nil {
		s := err.Error()
		errStr = &s
	}
	return store.PipelineStatus{
		State:          string(sub.State()),
		Strategy:       ep.strategy,
		SubscriptionID: sub.ID(),
		Published:      sub.Published(),
		Error:          errStr,
		UpdatedAt:      time.Now(),
	}
}

// State returns the pipeline state, [StateIdle] before Start.
func (ep *EventPipe) State() State {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	if ep.sub == nil {
		return StateIdle
	}
	return State(ep.sub.State())
}

// Err returns the error that terminated the pipeline, or nil.
//
// Cancellation is not an error.
func (ep *EventPipe) Err() error {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	if ep.sub == nil {
		return nil
	}
	return ep.sub.Err()
}

// StatusAddr returns the bound status server address, or "" if the server
// is disabled or not yet started.
func (ep *EventPipe) StatusAddr() string {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	if ep.srv == nil {
		return ""
	}
	return ep.srv.Addr()
}

// Strategy returns the configured strategy name.
func (ep *EventPipe) Strategy() string {
	return ep.strategy
}

// Period returns the configured tick period.
func (ep *EventPipe) Period() time.Duration {
	return ep.period
}

// BaseURL returns the configured remote base URL.
func (ep *EventPipe) BaseURL() string {
	return ep.baseURL
}

// Path returns the path requested beneath the base URL.
func (ep *EventPipe) Path() string {
	return ep.path
}

// toRecord converts a pipeline event to its storage representation.
func toRecord(ev pipeline.Event) store.EventRecord {
	return store.EventRecord{
		Seq:            ev.Seq,
		Payload:        ev.Payload,
		Strategy:       ev.Strategy,
		SubscriptionID: ev.SubscriptionID,
		TraceID:        ev.TraceID,
		GeneratedAt:    ev.GeneratedAt,
		PublishedAt:    ev.PublishedAt,
	}
}

// invokeCallbackSafe calls an event callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(Event), ev Event, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("event callback panicked",
				"panic", r,
				"seq", ev.Seq,
			)
		}
	}()
	cb(ev)
}
