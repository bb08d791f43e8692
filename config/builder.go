package config

import (
	"github.com/jpalmerr/eventpipe"
)

// BuildOptions converts parsed configuration into SDK options.
//
// Logging, callbacks and metrics registries are not file-configurable; append
// those options to the result.
func BuildOptions(cfg *Config) []eventpipe.Option {
	opts := []eventpipe.Option{
		eventpipe.WithStrategy(cfg.Strategy),
		eventpipe.WithBaseURL(cfg.BaseURL),
		eventpipe.WithPath(cfg.Path),
		eventpipe.WithPeriod(cfg.Period.Duration()),
		eventpipe.WithFetchTimeout(cfg.FetchTimeout.Duration()),
		eventpipe.WithHistorySize(cfg.HistorySize),
	}

	if cfg.Title != "" {
		opts = append(opts, eventpipe.WithTitle(cfg.Title))
	}

	if cfg.ListenAddr != "" {
		opts = append(opts, eventpipe.WithListenAddr(cfg.ListenAddr))
	}

	if cfg.Tracing.Enabled {
		opts = append(opts, eventpipe.WithTracing(eventpipe.TracingConfig{
			Enabled:      true,
			ServiceName:  cfg.Tracing.ServiceName,
			OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
			Insecure:     cfg.Tracing.Insecure,
			SampleRatio:  cfg.Tracing.SampleRatio,
		}))
	}

	return opts
}
