package eventpipe

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

// epConfig holds mutable state during EventPipe construction.
type epConfig struct {
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
}

// TracingConfig controls the tracer provider [EventPipe] creates for itself.
//
// Ignored when [WithTracerProvider] is used.
type TracingConfig struct {
	// Enabled turns span creation on. Disabled tracing uses a no-op tracer.
	Enabled bool

	// ServiceName is reported as service.name. Defaults to "eventpipe".
	ServiceName string

	// OTLPEndpoint is the host:port of an OTLP/gRPC collector. Empty means
	// spans are created but not exported.
	OTLPEndpoint string

	// Insecure disables TLS towards the collector.
	Insecure bool

	// SampleRatio is the fraction of subscriptions traced, in [0, 1].
	// Zero means 1; disable tracing to record nothing.
	SampleRatio float64
}

// Option is a function that configures an [EventPipe] during construction.
//
// Options return an error if validation fails.
type Option func(*epConfig) error

// WithStrategy selects how ticks become events: [StrategyLocal] or
// [StrategyRemote]. Defaults to remote.
func WithStrategy(name string) Option {
	return func(cfg *epConfig) error {
		if name != StrategyLocal && name != StrategyRemote {
			return fmt.Errorf("unknown strategy %q (expected %q or %q)", name, StrategyLocal, StrategyRemote)
		}
		cfg.strategy = name
		return nil
	}
}

// WithPeriod sets the tick period. Defaults to 5 seconds.
//
// Returns an error if the duration is zero or negative.
func WithPeriod(d time.Duration) Option {
	return func(cfg *epConfig) error {
		if d <= 0 {
			return errors.New("period must be positive")
		}
		cfg.period = d
		return nil
	}
}

// WithBaseURL sets the base URL the remote strategy requests against.
// Defaults to https://httpbin.org/.
//
// Returns an error unless the URL is absolute with an http or https scheme.
func WithBaseURL(raw string) Option {
	return func(cfg *epConfig) error {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid base url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("base url scheme must be http or https, got %q", u.Scheme)
		}
		if u.Host == "" {
			return errors.New("base url must have a host")
		}
		cfg.baseURL = raw
		return nil
	}
}

// WithPath sets the path requested beneath the base URL. Defaults to "get".
func WithPath(path string) Option {
	return func(cfg *epConfig) error {
		if path == "" {
			return errors.New("path cannot be empty")
		}
		cfg.path = path
		return nil
	}
}

// WithFetchTimeout bounds each remote request. Zero (the default) leaves
// requests bounded only by shutdown.
func WithFetchTimeout(d time.Duration) Option {
	return func(cfg *epConfig) error {
		if d < 0 {
			return errors.New("fetch timeout cannot be negative")
		}
		cfg.fetchTimeout = d
		return nil
	}
}

// WithListenAddr enables the status server (dashboard, event API, metrics)
// on addr, e.g. ":8080". Disabled by default.
func WithListenAddr(addr string) Option {
	return func(cfg *epConfig) error {
		cfg.listenAddr = addr
		return nil
	}
}

// WithTitle sets the dashboard title. Defaults to "eventpipe".
func WithTitle(title string) Option {
	return func(cfg *epConfig) error {
		cfg.title = title
		return nil
	}
}

// WithHistorySize sets how many published events the status server retains.
// Defaults to 100.
func WithHistorySize(n int) Option {
	return func(cfg *epConfig) error {
		if n <= 0 {
			return errors.New("history size must be positive")
		}
		cfg.historySize = n
		return nil
	}
}

// WithLogger sets a custom [slog.Logger]. If not specified, [slog.Default]
// is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *epConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithTracing configures the tracer provider EventPipe builds and shuts down.
func WithTracing(tc TracingConfig) Option {
	return func(cfg *epConfig) error {
		if tc.SampleRatio < 0 || tc.SampleRatio > 1 {
			return fmt.Errorf("sample ratio must be between 0 and 1, got %v", tc.SampleRatio)
		}
		if tc.SampleRatio == 0 {
			tc.SampleRatio = 1
		}
		cfg.tracing = tc
		return nil
	}
}

// WithTracerProvider uses a caller-owned tracer provider. EventPipe never
// shuts it down.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(cfg *epConfig) error {
		if tp == nil {
			return errors.New("tracer provider cannot be nil")
		}
		cfg.tracerProvider = tp
		return nil
	}
}

// WithMetricsRegistry registers pipeline metrics on reg and serves reg at
// /metrics. By default each EventPipe gets its own registry. A registry can
// back only one EventPipe; registering the metrics twice panics.
func WithMetricsRegistry(reg *prometheus.Registry) Option {
	return func(cfg *epConfig) error {
		if reg == nil {
			return errors.New("metrics registry cannot be nil")
		}
		cfg.registry = reg
		return nil
	}
}

// WithEventCallback registers a function called for every published event.
//
// Callbacks run in registration order on a single goroutine after the
// published hook. They must be non-blocking; panics are recovered and
// logged. Nil callbacks are ignored.
func WithEventCallback(cb func(Event)) Option {
	return func(cfg *epConfig) error {
		if cb == nil {
			return nil
		}
		cfg.eventCallbacks = append(cfg.eventCallbacks, cb)
		return nil
	}
}
